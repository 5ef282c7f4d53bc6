package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"chore-planner/internal/model"
)

// MaxLocations caps the number of rooms the planner tracks.
const MaxLocations = 30

// LocationStore is the persistence collaborator for rooms.
type LocationStore interface {
	Create(ctx context.Context, name string) (*model.Location, error)
	List(ctx context.Context) ([]model.Location, error)
	ReplaceAll(ctx context.Context, names []string) error
}

// LocationUpdate is one pending edit to the room list: a rename of the
// room with this id, or an addition when the id is new.
type LocationUpdate struct {
	ID   uint
	Name string
}

// SanitizeUpdates collapses a batch of edits so that only the latest
// edit per id survives, ordered by id ascending. Gaps in the id
// sequence are tolerated.
func SanitizeUpdates(updates []LocationUpdate) []LocationUpdate {
	seen := make(map[uint]bool, len(updates))
	out := make([]LocationUpdate, 0, len(updates))
	for i := len(updates) - 1; i >= 0; i-- {
		u := updates[i]
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LocationService manages the room list tasks are grouped under.
type LocationService struct {
	locations LocationStore
}

func NewLocationService(locations LocationStore) *LocationService {
	return &LocationService{locations: locations}
}

func (s *LocationService) List(ctx context.Context) ([]model.Location, error) {
	return s.locations.List(ctx)
}

// Add appends one room to the list.
func (s *LocationService) Add(ctx context.Context, name string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	existing, err := s.locations.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) >= MaxLocations {
		return nil, fmt.Errorf("%w: at most %d rooms are supported", ErrValidation, MaxLocations)
	}
	return s.locations.Create(ctx, name)
}

// ReplaceAll rewrites the room list from a batch of edits. Ids are
// reassigned from 1 in the resulting order.
func (s *LocationService) ReplaceAll(ctx context.Context, updates []LocationUpdate) ([]model.Location, error) {
	sanitized := SanitizeUpdates(updates)
	if len(sanitized) == 0 {
		return nil, fmt.Errorf("%w: at least one room is required", ErrValidation)
	}
	if len(sanitized) > MaxLocations {
		return nil, fmt.Errorf("%w: at most %d rooms are supported", ErrValidation, MaxLocations)
	}
	names := make([]string, 0, len(sanitized))
	for _, u := range sanitized {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: room name is required", ErrValidation)
		}
		names = append(names, name)
	}
	if err := s.locations.ReplaceAll(ctx, names); err != nil {
		return nil, err
	}
	return s.locations.List(ctx)
}
