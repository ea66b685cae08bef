package service

import (
	"encoding/json"
)

const (
	EventSessionStart          = "session_start"
	EventPageView              = "page_view"
	EventPageTime              = "page_time"
	EventScroll                = "scroll"
	EventTimeSpent             = "time_spent"
	EventSessionEnd            = "session_end"
	EventHeatmapClick          = "heatmap_click"
	EventHeatmapMove           = "heatmap_move"
	EventHeatmapScrollPosition = "heatmap_scroll_position"
	EventIntentSignal          = "intent_signal"
	EventDownloadAttempt       = "download_attempt"
	EventDownloadSuccess       = "download_success"
	EventPrintAttempt          = "print_attempt"
	EventPresencePing          = "presence_ping"
)

// TrackEvent 客户端上报的事件体，只有 event 是所有事件都必须的
type TrackEvent struct {
	Event       string          `json:"event"`
	SessionID   string          `json:"sessionId"`
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	Page        float64         `json:"page"`
	TotalPages  int             `json:"totalPages"`
	ScrollDepth float64         `json:"scrollDepth"`
	TimeSpent   float64         `json:"timeSpent"`
	Duration    *float64        `json:"duration"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	ScrollY     float64         `json:"scrollY"`
	Points      []HeatmapPoint  `json:"points"`
	Signal      string          `json:"signal"`
	Allowed     bool            `json:"allowed"`
	Metadata    json.RawMessage `json:"metadata"`
}

type HeatmapPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t,omitempty"`
}

func (e *TrackEvent) PageNumber() int {
	return int(e.Page)
}
