package service

import (
	"context"

	"chore-planner/internal/model"
)

// HistoryLimit caps the history listing at the most recent entries.
const HistoryLimit = 30

// HistoryService reads the recent audit trail of task events.
type HistoryService struct {
	logs LogStore
}

func NewHistoryService(logs LogStore) *HistoryService {
	return &HistoryService{logs: logs}
}

func (s *HistoryService) Recent(ctx context.Context) ([]model.HistoryEntry, error) {
	return s.logs.Recent(ctx, HistoryLimit)
}
