// Package forms drives multi-step conversational workflows. It is
// transport-free: the engine hands back Prompts and the bot layer decides
// how to render them.
package forms

import (
	"context"
	"fmt"
	"time"
)

// Prompt is one message the bot should show, with optional one-tap reply
// options.
type Prompt struct {
	Text    string
	Options []string
}

// Rejection is a validation failure whose Text is shown to the user
// verbatim. Validators return it for input the user can correct; any
// other error renders as a generic retry message.
type Rejection struct {
	Text string
}

func (r *Rejection) Error() string { return r.Text }

// Rejectf builds a Rejection from a format string.
func Rejectf(format string, args ...any) error {
	return &Rejection{Text: fmt.Sprintf(format, args...)}
}

// Step collects a single field. Validate returns the normalized value or
// an error; the step re-prompts until it passes. BuildPrompt may consult
// already-collected values, e.g. to offer a default.
type Step struct {
	Name        string
	BuildPrompt func(ctx context.Context, s *Session) Prompt
	Validate    func(ctx context.Context, s *Session, raw string) (string, error)
}

// Form is an ordered sequence of steps with a final commit action.
// Commit receives every collected value and returns the closing message.
type Form struct {
	Name   string
	Steps  []Step
	Commit func(ctx context.Context, values map[string]string) (string, error)
}

type phase int

const (
	phaseCollect phase = iota
	phaseConfirm
)

// Session is one in-progress form bound to a single conversation.
// Position is an index into the form's steps.
type Session struct {
	form    *Form
	step    int
	phase   phase
	values  map[string]string
	touched time.Time
}

// Value returns a collected field by step name.
func (s *Session) Value(name string) string {
	return s.values[name]
}

// FormName identifies the form the session belongs to.
func (s *Session) FormName() string {
	return s.form.Name
}

// StepName identifies the step currently being collected or confirmed.
func (s *Session) StepName() string {
	return s.form.Steps[s.step].Name
}

func (s *Session) current() Step {
	return s.form.Steps[s.step]
}

func (s *Session) last() bool {
	return s.step == len(s.form.Steps)-1
}
