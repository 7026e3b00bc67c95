// Package events provides the in-process event bus that carries live widget
// updates to stream subscribers.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	WidgetDataUpdated   EventType = "WIDGET_DATA_UPDATED"
	WidgetStatusChanged EventType = "WIDGET_STATUS_CHANGED"
	WidgetError         EventType = "WIDGET_ERROR"
	DashboardChanged    EventType = "DASHBOARD_CHANGED"
	CacheCleared        EventType = "CACHE_CLEARED"
)

// AllTypes lists every event type, in a stable order.
var AllTypes = []EventType{
	WidgetDataUpdated,
	WidgetStatusChanged,
	WidgetError,
	DashboardChanged,
	CacheCleared,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data,omitempty"`
}

// GetTypedData returns the event payload, or nil.
func (e *Event) GetTypedData() EventData {
	return e.Data
}
