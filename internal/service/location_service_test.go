package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"chore-planner/internal/model"
)

type fakeLocationStore struct {
	locations []model.Location
}

func (s *fakeLocationStore) Create(_ context.Context, name string) (*model.Location, error) {
	loc := model.Location{ID: uint(len(s.locations) + 1), Name: name}
	s.locations = append(s.locations, loc)
	return &loc, nil
}

func (s *fakeLocationStore) List(context.Context) ([]model.Location, error) {
	out := make([]model.Location, len(s.locations))
	copy(out, s.locations)
	return out, nil
}

func (s *fakeLocationStore) ReplaceAll(_ context.Context, names []string) error {
	s.locations = s.locations[:0]
	for i, name := range names {
		s.locations = append(s.locations, model.Location{ID: uint(i + 1), Name: name})
	}
	return nil
}

func TestSanitizeUpdates(t *testing.T) {
	tests := []struct {
		name    string
		updates []LocationUpdate
		want    []LocationUpdate
	}{
		{
			name: "last edit per id wins",
			updates: []LocationUpdate{
				{ID: 1, Name: "Kitchen"},
				{ID: 2, Name: "Bath"},
				{ID: 1, Name: "Kitchenette"},
			},
			want: []LocationUpdate{{ID: 1, Name: "Kitchenette"}, {ID: 2, Name: "Bath"}},
		},
		{
			name: "gaps in the id sequence are tolerated",
			updates: []LocationUpdate{
				{ID: 5, Name: "Attic"},
				{ID: 2, Name: "Bath"},
			},
			want: []LocationUpdate{{ID: 2, Name: "Bath"}, {ID: 5, Name: "Attic"}},
		},
		{
			name:    "empty input",
			updates: nil,
			want:    []LocationUpdate{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeUpdates(tt.updates)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAddRoom(t *testing.T) {
	store := &fakeLocationStore{}
	svc := NewLocationService(store)

	loc, err := svc.Add(context.Background(), "  Kitchen  ")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if loc.Name != "Kitchen" {
		t.Errorf("name = %q, want trimmed", loc.Name)
	}

	if _, err := svc.Add(context.Background(), "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: expected ErrValidation, got %v", err)
	}
}

func TestAddRoomEnforcesLimit(t *testing.T) {
	store := &fakeLocationStore{}
	svc := NewLocationService(store)
	for i := 0; i < MaxLocations; i++ {
		if _, err := svc.Add(context.Background(), fmt.Sprintf("Room %d", i)); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if _, err := svc.Add(context.Background(), "One too many"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation at the limit, got %v", err)
	}
}

func TestReplaceAllReassignsIDs(t *testing.T) {
	store := &fakeLocationStore{locations: []model.Location{{ID: 1, Name: "Old"}, {ID: 2, Name: "Older"}}}
	svc := NewLocationService(store)

	updates := []LocationUpdate{
		{ID: 4, Name: "Bedroom"},
		{ID: 2, Name: "Bath"},
		{ID: 2, Name: "Bathroom"},
	}
	locations, err := svc.ReplaceAll(context.Background(), updates)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	// Sanitized order is by original id; fresh ids count from 1.
	want := []model.Location{{ID: 1, Name: "Bathroom"}, {ID: 2, Name: "Bedroom"}}
	if len(locations) != len(want) {
		t.Fatalf("got %v, want %v", locations, want)
	}
	for i := range want {
		if locations[i] != want[i] {
			t.Fatalf("got %v, want %v", locations, want)
		}
	}
}

func TestReplaceAllValidation(t *testing.T) {
	svc := NewLocationService(&fakeLocationStore{})

	if _, err := svc.ReplaceAll(context.Background(), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty updates: expected ErrValidation, got %v", err)
	}
	if _, err := svc.ReplaceAll(context.Background(), []LocationUpdate{{ID: 1, Name: " "}}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: expected ErrValidation, got %v", err)
	}
}
