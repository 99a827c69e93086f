package session

import "github.com/longkey1/chatai/internal/chatai"

// State is the phase of the current exchange.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleting:
		return "completing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether an exchange in this state blocks new submissions.
func (s State) Busy() bool {
	return s == StateSending || s == StateStreaming || s == StateCompleting
}

// StreamSession is the ephemeral state of one in-flight exchange.
type StreamSession struct {
	ID              string
	ConversationID  chatai.ID
	AccumulatedText string
	Active          bool

	discarded bool // guarded by Orchestrator.foldMu
}

// GetShortID returns the shortened exchange ID (first 8 characters)
func (s *StreamSession) GetShortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}
