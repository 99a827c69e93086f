package stream

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/longkey1/chatai/internal/chatai"
)

// DataPrefix marks a data-bearing event line.
const DataPrefix = "data: "

// Delta is a fragment of the assistant reply.
type Delta struct {
	Text string
}

type eventPayload struct {
	Message *string `json:"message"`
}

var errMissingMessage = errors.New("payload has no message field")

// ParseLine extracts a Delta from one decoded line.
// Lines without DataPrefix are ignored and return ok=false with a nil error.
// A data line whose payload is not an object with a string "message" field
// returns a *chatai.MalformedEventError. An empty message yields no delta.
func ParseLine(line string) (Delta, bool, error) {
	if !strings.HasPrefix(line, DataPrefix) {
		return Delta{}, false, nil
	}

	raw := strings.TrimPrefix(line, DataPrefix)
	var p eventPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Delta{}, false, chatai.NewMalformedEventError(line, err)
	}
	if p.Message == nil {
		return Delta{}, false, chatai.NewMalformedEventError(line, errMissingMessage)
	}
	if *p.Message == "" {
		return Delta{}, false, nil
	}

	return Delta{Text: *p.Message}, true, nil
}
