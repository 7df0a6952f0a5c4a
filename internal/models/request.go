package models

import "regexp"

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidSessionID reports whether id can name a conversation.
func ValidSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// ChatRequest for POST /api/v1/chat
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Timeout   int    `json:"timeout"` // seconds
}

func (r *ChatRequest) SetDefaults(maxTimeout int) {
	if maxTimeout <= 0 {
		maxTimeout = 600
	}
	if r.Timeout == 0 {
		r.Timeout = maxTimeout
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > maxTimeout {
		r.Timeout = maxTimeout
	}
}
