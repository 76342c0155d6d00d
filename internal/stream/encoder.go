package stream

import (
	"encoding/json"
	"time"

	"autoguard/internal/model"
)

// RawEnvelope is the receiving side of model.Envelope with the payload left
// undecoded.
type RawEnvelope struct {
	ID        string          `json:"id"`
	Event     model.EventName `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(data []byte) (RawEnvelope, error) {
	var e RawEnvelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// eventFilter matches everything when built from an empty list.
type eventFilter map[model.EventName]struct{}

func newEventFilter(events []model.EventName) eventFilter {
	if len(events) == 0 {
		return nil
	}
	f := make(eventFilter, len(events))
	for _, e := range events {
		f[e] = struct{}{}
	}
	return f
}

func (f eventFilter) match(e model.EventName) bool {
	if f == nil {
		return true
	}
	_, ok := f[e]
	return ok
}
