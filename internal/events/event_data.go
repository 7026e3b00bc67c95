package events

import "time"

// EventData is the interface that all event data types must implement
type EventData interface {
	EventType() EventType
}

// WidgetDataUpdatedData is emitted when a widget receives a new payload.
type WidgetDataUpdatedData struct {
	WidgetID    string    `json:"widget_id"`
	FromCache   bool      `json:"from_cache"`
	Streamed    bool      `json:"streamed,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func (d *WidgetDataUpdatedData) EventType() EventType {
	return WidgetDataUpdated
}

// WidgetStatusData carries a stream connection status change.
type WidgetStatusData struct {
	WidgetID string `json:"widget_id"`
	Status   string `json:"status"`
}

func (d *WidgetStatusData) EventType() EventType {
	return WidgetStatusChanged
}

// WidgetErrorData is emitted when a refresh or stream fails.
type WidgetErrorData struct {
	WidgetID string `json:"widget_id"`
	Error    string `json:"error"`
}

func (d *WidgetErrorData) EventType() EventType {
	return WidgetError
}

// DashboardChangedData describes a change to the widget configuration.
type DashboardChangedData struct {
	Action   string `json:"action"`
	WidgetID string `json:"widget_id,omitempty"`
	Count    int    `json:"count"`
}

func (d *DashboardChangedData) EventType() EventType {
	return DashboardChanged
}

// CacheClearedData reports how many entries an invalidation removed.
type CacheClearedData struct {
	Pattern string `json:"pattern,omitempty"`
	Removed int    `json:"removed"`
}

func (d *CacheClearedData) EventType() EventType {
	return CacheCleared
}
