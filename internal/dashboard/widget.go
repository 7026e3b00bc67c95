// Package dashboard owns widget configuration and live widget state, and is
// the entry point the UI layer uses to test, fetch and stream widget data.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
	"github.com/aaanmmoool/finboard/internal/stream"
)

var (
	ErrWidgetNotFound   = errors.New("widget not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidWidget    = errors.New("invalid widget")
	ErrInvalidMode      = errors.New("invalid template mode")
)

var validate = validator.New()

type DisplayMode string

const (
	DisplayCard  DisplayMode = "card"
	DisplayTable DisplayMode = "table"
	DisplayChart DisplayMode = "chart"
)

type ConnectionType string

const (
	ConnectionHTTP      ConnectionType = "http"
	ConnectionWebSocket ConnectionType = "websocket"
)

// WidgetField binds a JSON path in the payload to a display label.
type WidgetField struct {
	Path  string `json:"path" validate:"required,max=500"`
	Label string `json:"label" validate:"max=100"`
}

// Widget is the declarative configuration of one widget. It is what gets
// persisted; live data is kept in LiveState.
type Widget struct {
	ID              string         `json:"id"`
	Name            string         `json:"name" validate:"required,max=100"`
	APIURL          string         `json:"apiUrl" validate:"omitempty,url"`
	RefreshInterval int            `json:"refreshInterval" validate:"gte=0,lte=86400"` // seconds, 0 = manual
	DisplayMode     DisplayMode    `json:"displayMode" validate:"oneof=card table chart"`
	SelectedFields  []WidgetField  `json:"selectedFields" validate:"dive"`
	ConnectionType  ConnectionType `json:"connectionType" validate:"oneof=http websocket"`
	SocketURL       string         `json:"socketUrl,omitempty" validate:"omitempty,url"`
	IsPinned        bool           `json:"isPinned,omitempty"`
}

// Validate checks w using go-playground/validator plus the connection rules.
func (w *Widget) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWidget, err.Error())
	}

	switch w.ConnectionType {
	case ConnectionHTTP:
		if w.APIURL == "" {
			return fmt.Errorf("%w: apiUrl is required for http widgets", ErrInvalidWidget)
		}
	case ConnectionWebSocket:
		if w.streamURL() == "" {
			return fmt.Errorf("%w: socketUrl is required for websocket widgets", ErrInvalidWidget)
		}
	}
	return nil
}

// streamURL falls back to APIURL when no dedicated socket URL is set.
func (w *Widget) streamURL() string {
	if w.SocketURL != "" {
		return w.SocketURL
	}
	return w.APIURL
}

func (w *Widget) isStreaming() bool {
	return w.ConnectionType == ConnectionWebSocket
}

func (w Widget) clone() Widget {
	w.SelectedFields = append([]WidgetField(nil), w.SelectedFields...)
	return w
}

// WidgetPatch is a partial update. Nil fields are left unchanged.
type WidgetPatch struct {
	Name            *string         `json:"name,omitempty"`
	APIURL          *string         `json:"apiUrl,omitempty"`
	RefreshInterval *int            `json:"refreshInterval,omitempty"`
	DisplayMode     *DisplayMode    `json:"displayMode,omitempty"`
	SelectedFields  *[]WidgetField  `json:"selectedFields,omitempty"`
	ConnectionType  *ConnectionType `json:"connectionType,omitempty"`
	SocketURL       *string         `json:"socketUrl,omitempty"`
}

func (p WidgetPatch) apply(w *Widget) (connectionChanged bool) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.APIURL != nil && *p.APIURL != w.APIURL {
		w.APIURL = *p.APIURL
		connectionChanged = true
	}
	if p.RefreshInterval != nil {
		w.RefreshInterval = *p.RefreshInterval
	}
	if p.DisplayMode != nil {
		w.DisplayMode = *p.DisplayMode
	}
	if p.SelectedFields != nil {
		w.SelectedFields = append([]WidgetField(nil), (*p.SelectedFields)...)
	}
	if p.ConnectionType != nil && *p.ConnectionType != w.ConnectionType {
		w.ConnectionType = *p.ConnectionType
		connectionChanged = true
	}
	if p.SocketURL != nil && *p.SocketURL != w.SocketURL {
		w.SocketURL = *p.SocketURL
		connectionChanged = true
	}
	return connectionChanged
}

// LiveState is the transient, never persisted state of a widget.
type LiveState struct {
	Data             jsonvalue.Value `json:"data"`
	IsLoading        bool            `json:"isLoading"`
	Error            string          `json:"error,omitempty"`
	LastUpdated      *time.Time      `json:"lastUpdated,omitempty"`
	FromCache        bool            `json:"fromCache"`
	ConnectionStatus stream.Status   `json:"connectionStatus,omitempty"`
}

// DisplayField is one selected field resolved against the live data.
type DisplayField struct {
	Path    string          `json:"path"`
	Label   string          `json:"label"`
	Value   jsonvalue.Value `json:"value"`
	Found   bool            `json:"found"`
	Display string          `json:"display"`
}
