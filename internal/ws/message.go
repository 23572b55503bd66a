package ws

import (
	"encoding/json"

	"github.com/cuckooeats/backoffice/internal/detail"
	"github.com/cuckooeats/backoffice/internal/kanban"
	"github.com/cuckooeats/backoffice/internal/order"
	"github.com/cuckooeats/backoffice/internal/realtime"
)

// Envelope is the frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ── Client → server payloads ──

type helloPayload struct {
	Capabilities  kanban.Capabilities `json:"capabilities"`
	Permission    realtime.Permission `json:"permission"`
	AudioUnlocked bool                `json:"audio_unlocked"`
}

type permissionPayload struct {
	Permission realtime.Permission `json:"permission"`
}

// Pointer phases.
const (
	phaseDown = "down"
	phaseMove = "move"
	phaseHold = "hold"
	phaseUp   = "up"
)

type pointerPayload struct {
	Phase   string        `json:"phase"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	T       int64         `json:"t"` // client clock, unix millis
	OrderID int64         `json:"order_id"`
	Over    *order.Status `json:"over"`
}

type dragStartPayload struct {
	OrderID int64 `json:"order_id"`
}

type dragEndPayload struct {
	Over *order.Status `json:"over"`
}

type cardClickPayload struct {
	OrderID int64 `json:"order_id"`
}

type detailStatusPayload struct {
	Status order.Status `json:"status"`
}

type historyFilterPayload struct {
	Date string `json:"date"`
}

// ── Server → client payloads ──

type profilePayload struct {
	Kind      kanban.PointerKind `json:"kind"`
	Distance  float64            `json:"distance,omitempty"`
	DelayMS   int64              `json:"delay_ms,omitempty"`
	Tolerance float64            `json:"tolerance,omitempty"`
}

type historyView struct {
	Date    string        `json:"date,omitempty"`
	Orders  []order.Order `json:"orders"`
	Empty   string        `json:"empty,omitempty"`
	Message string        `json:"message,omitempty"`
}

type snapshotPayload struct {
	Columns    []kanban.Column `json:"columns"`
	Overlay    *kanban.Card    `json:"overlay,omitempty"`
	Loading    bool            `json:"loading"`
	Error      string          `json:"error,omitempty"`
	DetailOpen bool            `json:"detail_open"`
	Detail     *detail.View    `json:"detail,omitempty"`
	History    historyView     `json:"history"`
}

type toastPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type notifyPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
