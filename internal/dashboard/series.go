package dashboard

import (
	"github.com/aaanmmoool/finboard/internal/indicators"
	"github.com/aaanmmoool/finboard/internal/normalize"
)

// rsiPeriod is the conventional RSI lookback.
const rsiPeriod = 14

// SeriesOptions selects the moving-average overlays. A zero period omits
// that overlay.
type SeriesOptions struct {
	SMAPeriod int
	EMAPeriod int
}

// SeriesView is a widget's live data as an OHLCV series.
type SeriesView struct {
	WidgetID string             `json:"widgetId"`
	Format   normalize.Format   `json:"format"`
	Points   []normalize.Point  `json:"points"`
	Summary  indicators.Summary `json:"summary"`
	SMA      []*float64         `json:"sma,omitempty"`
	EMA      []*float64         `json:"ema,omitempty"`
	RSI      *float64           `json:"rsi,omitempty"`
}

// Series normalizes the live data of a widget into a time series. Payloads
// without a native series use the widget's first selected field as the path
// to a date-keyed object.
func (s *Service) Series(id string, opts SeriesOptions) (SeriesView, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return SeriesView{}, ErrWidgetNotFound
	}
	var fieldPath string
	if fields := s.widgets[idx].SelectedFields; len(fields) > 0 {
		fieldPath = fields[0].Path
	}
	data := s.live[id].Data
	s.mu.Unlock()

	points := normalize.ExtractTimeSeries(data, fieldPath)
	closes := normalize.Closes(points)

	view := SeriesView{
		WidgetID: id,
		Format:   normalize.DetectFormat(data),
		Points:   points,
		Summary:  indicators.Summarize(closes),
		RSI:      indicators.RSI(closes, rsiPeriod),
	}
	if opts.SMAPeriod > 0 {
		view.SMA = indicators.SMA(closes, opts.SMAPeriod)
	}
	if opts.EMAPeriod > 0 {
		view.EMA = indicators.EMA(closes, opts.EMAPeriod)
	}
	return view, nil
}
