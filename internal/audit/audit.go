// Package audit records every tool execution to the configured sinks: the
// structured log, an Elasticsearch index, a BigQuery table.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/security"
)

const queueSize = 256

// Record is one audited tool execution. Arguments are masked.
type Record struct {
	Time       time.Time      `json:"@timestamp"`
	RequestID  string         `json:"request_id"`
	SessionID  string         `json:"session_id"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Sink stores audit records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// LogSink writes records through the security audit logger.
type LogSink struct {
	logger *security.AuditLogger
}

func NewLogSink(l *security.AuditLogger) *LogSink {
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, rec Record) error {
	s.logger.LogToolCall(rec.SessionID, rec.Tool, rec.Arguments, rec.DurationMs, rec.Success, rec.Error)
	return nil
}

// Recorder turns dispatcher events into records and hands them to the sinks
// on a background goroutine, so a slow sink never delays a tool call. When
// the queue is full the record is dropped with a warning.
type Recorder struct {
	sinks  []Sink
	masker *security.DataMasker
	queue  chan Record

	// mu guards closed; sends on queue hold it for reading
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder. Call Close to flush it.
func NewRecorder(masker *security.DataMasker, sinks ...Sink) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		masker: masker,
		queue:  make(chan Record, queueSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Observe implements protocol.Observer.
func (r *Recorder) Observe(ctx context.Context, ev protocol.Event) {
	args := ev.Arguments
	if r.masker != nil {
		args = r.masker.MaskArguments(args)
	}
	rec := Record{
		Time:       time.Now().UTC(),
		RequestID:  ev.RequestID,
		SessionID:  ev.SessionID,
		Tool:       ev.Tool,
		Arguments:  args,
		Success:    ev.Success,
		Error:      ev.Error,
		DurationMs: ev.Duration.Milliseconds(),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Warn().Str("tool", ev.Tool).Str("session", ev.SessionID).Msg("audit recorder closed, record dropped")
		return
	}
	select {
	case r.queue <- rec:
	default:
		log.Warn().Str("tool", ev.Tool).Msg("audit queue full, record dropped")
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.queue {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Write(ctx, rec); err != nil {
				log.Warn().Err(err).Str("sink", s.Name()).Str("tool", rec.Tool).Msg("audit write failed")
			}
			cancel()
		}
	}
}

// Close stops accepting records and waits until queued ones are written.
// Events observed afterwards are dropped.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
