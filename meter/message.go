package meter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angas/gasquota/dates"
)

// ReadingMessage is the payload a smart meter or a home automation bridge
// publishes, e.g. {"date":"2024-01-31","m3":1234.5,"note":"auto"}.
type ReadingMessage struct {
	Date dates.Date `json:"date"`
	M3   *float64   `json:"m3"`
	Note string     `json:"note,omitempty"`
}

func ParseReadingMessage(payload []byte) (ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ReadingMessage{}, fmt.Errorf("decoding reading message: %w", err)
	}
	if msg.Date.IsZero() {
		return ReadingMessage{}, errors.New("reading message without date")
	}
	if msg.M3 == nil {
		return ReadingMessage{}, errors.New("reading message without m3")
	}
	msg.Note = strings.TrimSpace(msg.Note)
	return msg, nil
}
