package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogToolCall records one tool execution.
func (a *AuditLogger) LogToolCall(
	sessionID, tool string,
	args map[string]any,
	executionTimeMs int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "tool_audit").
		Str("session", sessionID).
		Str("tool", tool).
		Interface("arguments", args).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogChatRequest records one chat turn. The prompt and key are hashed.
func (a *AuditLogger) LogChatRequest(
	prompt, apiKey, backend string,
	validationPassed bool,
	iterations int,
	executionTimeMs int64,
) {
	if !a.enabled {
		return
	}
	log.Info().
		Str("event", "chat_audit").
		Str("prompt_hash", HashID(prompt)).
		Str("api_key_hash", HashID(apiKey)).
		Str("backend", backend).
		Bool("validation_passed", validationPassed).
		Int("iterations", iterations).
		Int64("execution_time_ms", executionTimeMs).
		Msg("chat audit")
}

// HashID returns a short, stable fingerprint of s.
func HashID(s string) string {
	return hashStr(s)[:16]
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
