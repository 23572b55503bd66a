package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/cuckooeats/backoffice/internal/enum"
)

// ChangeEvent is one row-level change on a watched table.
type ChangeEvent struct {
	Type    string `json:"type"`
	Table   string `json:"table"`
	OrderID int64  `json:"id"`
	Status  string `json:"status,omitempty"`
}

// ParseChangeEvent decodes the JSON payload emitted by the orders trigger and
// relayed verbatim by the broker drivers.
func ParseChangeEvent(payload []byte) (ChangeEvent, error) {
	var evt ChangeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	switch evt.Type {
	case enum.ChangeInsert, enum.ChangeUpdate:
	default:
		return ChangeEvent{}, fmt.Errorf("unsupported change type %q", evt.Type)
	}
	if evt.Table == "" {
		evt.Table = enum.TableOrders
	}
	return evt, nil
}

func (e ChangeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
