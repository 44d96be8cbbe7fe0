package ws

import (
	"encoding/json"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server -> Client messages
const (
	TypeHello           = "hello"
	TypePredictionAdded = "prediction:added"
)

type HelloPayload struct {
	Records int `json:"records"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// PredictionAdded encodes a freshly stored record for broadcast.
func PredictionAdded(rec models.PredictionRecord) ([]byte, error) {
	return NewEnvelope(TypePredictionAdded, rec)
}
