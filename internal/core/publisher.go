package core

import (
	"context"
	"slices"
	"time"

	"github.com/JonMunkholm/menusync/internal/logging"
)

// ChangeEvent announces that a committed batch changed the catalog.
type ChangeEvent struct {
	BatchID       string    `json:"batch_id"`
	RestaurantIDs []int64   `json:"restaurant_ids"`
	MenuIDs       []int64   `json:"menu_ids"`
	Applied       int       `json:"applied"`
	Failed        int       `json:"failed"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers change events to downstream consumers.
type Publisher interface {
	PublishChange(ctx context.Context, ev ChangeEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// PublishChange implements Publisher.
func (NopPublisher) PublishChange(context.Context, ChangeEvent) error { return nil }

// NewChangeEvent builds the event for a committed batch from its applied rows.
// Menu rows contribute their own id and restaurant, item rows their menu.
func NewChangeEvent(batchID string, outcomes []RowOutcome, result *BatchResult) ChangeEvent {
	ev := ChangeEvent{
		BatchID:    batchID,
		Applied:    result.Applied,
		Failed:     result.Failed,
		OccurredAt: time.Now().UTC(),
	}

	restaurants := make(map[int64]bool)
	menus := make(map[int64]bool)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		switch o.Kind {
		case EntityMenu:
			if o.ID != nil {
				menus[*o.ID] = true
			}
			if o.ParentID > 0 {
				restaurants[o.ParentID] = true
			}
		case EntityItem:
			if o.ParentID > 0 {
				menus[o.ParentID] = true
			}
		}
	}

	ev.RestaurantIDs = sortedKeys(restaurants)
	ev.MenuIDs = sortedKeys(menus)
	return ev
}

func sortedKeys(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// publishChange sends the change event for a committed batch. Failures are
// logged; the batch has already committed.
func (s *Service) publishChange(ctx context.Context, batchID string, outcomes []RowOutcome, result *BatchResult) {
	ev := NewChangeEvent(batchID, outcomes, result)
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		logging.WithFields(ctx, "batch_id", batchID).Warn("publish change event failed",
			"error", err,
			"restaurants", len(ev.RestaurantIDs),
		)
	}
}
