package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"subbot/core/logger"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 10 * time.Minute

const (
	cancelledText = "Cancelled. Nothing was changed."
	retryText     = "Something went wrong. Try again."
)

// Result tells the bot layer what happened to an input.
type Result struct {
	// Prompt is the next message to render, when the session continues.
	Prompt Prompt
	// Done is set when the session ended, by commit or cancellation.
	Done bool
	// Committed is set when the form's commit action ran successfully.
	Committed bool
	// Message is the closing text for a finished session.
	Message string
	// Err carries a failed commit. The session is discarded either way.
	Err error
}

// Engine keys sessions by conversation id. Sessions are mutually
// exclusive per key; starting a new form replaces any open one.
type Engine struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewEngine creates an engine. ttl <= 0 selects DefaultIdleTTL.
func NewEngine(ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Engine{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start opens a session for the form and returns the first step's prompt.
// Any session already open under the key is discarded.
func (e *Engine) Start(ctx context.Context, key int64, form *Form) Prompt {
	s := &Session{
		form:    form,
		values:  make(map[string]string),
		touched: e.now(),
	}

	e.mu.Lock()
	if _, replaced := e.sessions[key]; replaced {
		logger.Forms.LogAttrs(ctx, slog.LevelDebug, "session replaced",
			slog.String("event", "session.replace"),
			slog.Int64("chat_id", key),
			slog.String("form", form.Name),
		)
	}
	e.sessions[key] = s
	e.mu.Unlock()

	logger.Forms.LogAttrs(ctx, slog.LevelInfo, "session started",
		slog.String("event", "session.start"),
		slog.Int64("chat_id", key),
		slog.String("form", form.Name),
	)
	return s.current().BuildPrompt(ctx, s)
}

// Active reports whether a live session exists for the key. Expired
// sessions are discarded on the way.
func (e *Engine) Active(key int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookup(key) != nil
}

// Cancel drops the session, if any.
func (e *Engine) Cancel(key int64) {
	e.mu.Lock()
	delete(e.sessions, key)
	e.mu.Unlock()
}

// Sweep removes idle-expired sessions and returns how many were dropped.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	dropped := 0
	cutoff := e.now().Add(-e.ttl)
	for key, s := range e.sessions {
		if s.touched.Before(cutoff) {
			delete(e.sessions, key)
			dropped++
		}
	}
	return dropped
}

// lookup returns the live session or nil, dropping it when expired.
// Caller holds e.mu.
func (e *Engine) lookup(key int64) *Session {
	s, ok := e.sessions[key]
	if !ok {
		return nil
	}
	if e.now().Sub(s.touched) > e.ttl {
		delete(e.sessions, key)
		return nil
	}
	return s
}

// Handle feeds one inbound message into the open session. The second
// return is false when no session exists, so the caller can fall through
// to command handling.
func (e *Engine) Handle(ctx context.Context, key int64, input string) (Result, bool) {
	e.mu.Lock()
	s := e.lookup(key)
	if s == nil {
		e.mu.Unlock()
		return Result{}, false
	}
	s.touched = e.now()
	e.mu.Unlock()

	switch s.phase {
	case phaseConfirm:
		return e.handleConfirm(ctx, key, s, input), true
	default:
		return e.handleCollect(ctx, key, s, input), true
	}
}

func (e *Engine) handleCollect(ctx context.Context, key int64, s *Session, input string) Result {
	step := s.current()
	value, err := step.Validate(ctx, s, input)
	if err != nil {
		logger.Forms.LogAttrs(ctx, slog.LevelDebug, "input rejected",
			slog.String("event", "step.invalid"),
			slog.Int64("chat_id", key),
			slog.String("form", s.form.Name),
			slog.String("step", step.Name),
		)
		var rej *Rejection
		if errors.As(err, &rej) {
			return Result{Prompt: Prompt{Text: rej.Text}}
		}
		return Result{Prompt: Prompt{Text: retryText}}
	}

	s.values[step.Name] = value
	s.phase = phaseConfirm
	return Result{Prompt: confirmPrompt(value)}
}

func (e *Engine) handleConfirm(ctx context.Context, key int64, s *Session, input string) Result {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes":
		if s.last() {
			return e.commit(ctx, key, s)
		}
		s.step++
		s.phase = phaseCollect
		return Result{Prompt: s.current().BuildPrompt(ctx, s)}
	case "no":
		// Re-collect the same step, not the first one.
		s.phase = phaseCollect
		return Result{Prompt: s.current().BuildPrompt(ctx, s)}
	default:
		e.Cancel(key)
		logger.Forms.LogAttrs(ctx, slog.LevelInfo, "session cancelled",
			slog.String("event", "session.cancel"),
			slog.Int64("chat_id", key),
			slog.String("form", s.form.Name),
			slog.String("step", s.current().Name),
		)
		return Result{Done: true, Message: cancelledText}
	}
}

func (e *Engine) commit(ctx context.Context, key int64, s *Session) Result {
	e.Cancel(key)

	msg, err := s.form.Commit(ctx, s.values)
	if err != nil {
		logger.Forms.LogAttrs(ctx, slog.LevelWarn, "commit failed",
			slog.String("event", "session.commit"),
			slog.String("status", "fail"),
			slog.Int64("chat_id", key),
			slog.String("form", s.form.Name),
			slog.String("err", err.Error()),
		)
		return Result{Done: true, Message: msg, Err: err}
	}

	logger.Forms.LogAttrs(ctx, slog.LevelInfo, "committed",
		slog.String("event", "session.commit"),
		slog.String("status", "ok"),
		slog.Int64("chat_id", key),
		slog.String("form", s.form.Name),
	)
	return Result{Done: true, Committed: true, Message: msg}
}

func confirmPrompt(value string) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("You entered: %s\nIs this correct? Answer yes or no; anything else exits.", value),
		Options: []string{"yes", "no"},
	}
}
