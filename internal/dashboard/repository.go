package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaanmmoool/finboard/internal/kvstore"
)

// WidgetsKey is the store key holding the widget configuration.
const WidgetsKey = "finboard-widgets"

// Store is the durable key-value storage the repository writes to.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Repository persists the widget configuration as one JSON array.
type Repository struct {
	store Store
}

// NewRepository creates a new widget repository
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Load returns the saved widgets, or none if nothing was saved yet.
func (r *Repository) Load() ([]Widget, error) {
	raw, err := r.store.Get(WidgetsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read widgets: %w", err)
	}

	var widgets []Widget
	if err := json.Unmarshal(raw, &widgets); err != nil {
		return nil, fmt.Errorf("failed to decode widgets: %w", err)
	}
	return widgets, nil
}

// Save replaces the saved widgets.
func (r *Repository) Save(widgets []Widget) error {
	if widgets == nil {
		widgets = []Widget{}
	}
	raw, err := json.Marshal(widgets)
	if err != nil {
		return fmt.Errorf("failed to encode widgets: %w", err)
	}
	if err := r.store.Set(WidgetsKey, raw); err != nil {
		return fmt.Errorf("failed to save widgets: %w", err)
	}
	return nil
}
