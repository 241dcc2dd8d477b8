package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func staticPrompt(text string) func(ctx context.Context, s *Session) Prompt {
	return func(ctx context.Context, s *Session) Prompt {
		return Prompt{Text: text}
	}
}

func acceptNonEmpty(ctx context.Context, s *Session, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", Rejectf("value must not be empty")
	}
	return v, nil
}

func twoStepForm(committed *map[string]string) *Form {
	return &Form{
		Name: "link",
		Steps: []Step{
			{Name: "username", BuildPrompt: staticPrompt("Enter username"), Validate: acceptNonEmpty},
			{Name: "group_name", BuildPrompt: staticPrompt("Enter group name"), Validate: acceptNonEmpty},
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			*committed = values
			return "done", nil
		},
	}
}

func TestEngineHappyPath(t *testing.T) {
	var committed map[string]string
	e := NewEngine(0)
	ctx := context.Background()

	p := e.Start(ctx, 1, twoStepForm(&committed))
	if p.Text != "Enter username" {
		t.Fatalf("first prompt = %q", p.Text)
	}

	res, ok := e.Handle(ctx, 1, "bob_marley")
	if !ok || !strings.Contains(res.Prompt.Text, "bob_marley") {
		t.Fatalf("confirm prompt = %+v, ok=%v", res, ok)
	}
	if len(res.Prompt.Options) != 2 {
		t.Fatalf("confirm options = %v", res.Prompt.Options)
	}

	res, _ = e.Handle(ctx, 1, "yes")
	if res.Prompt.Text != "Enter group name" {
		t.Fatalf("second prompt = %q", res.Prompt.Text)
	}

	res, _ = e.Handle(ctx, 1, "spotify 001")
	res, _ = e.Handle(ctx, 1, "yes")
	if !res.Done || !res.Committed || res.Message != "done" {
		t.Fatalf("commit result = %+v", res)
	}
	if committed["username"] != "bob_marley" || committed["group_name"] != "spotify 001" {
		t.Fatalf("committed values = %v", committed)
	}
	if e.Active(1) {
		t.Fatalf("session still active after commit")
	}
}

func TestEngineRewindReturnsToSameStep(t *testing.T) {
	var committed map[string]string
	e := NewEngine(0)
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	e.Handle(ctx, 1, "bob_marley")
	e.Handle(ctx, 1, "yes")

	// Step 2 entered and confirmed with "no": re-collect step 2, not step 1.
	e.Handle(ctx, 1, "spotify 001")
	res, _ := e.Handle(ctx, 1, "no")
	if res.Done {
		t.Fatalf("session ended on rewind")
	}
	if res.Prompt.Text != "Enter group name" {
		t.Fatalf("rewind prompt = %q, want step 2 prompt", res.Prompt.Text)
	}

	res, _ = e.Handle(ctx, 1, "spotify 002")
	res, _ = e.Handle(ctx, 1, "yes")
	if !res.Committed || committed["group_name"] != "spotify 002" {
		t.Fatalf("retyped value not committed: %+v / %v", res, committed)
	}
}

func TestEngineCancelOnAnythingElse(t *testing.T) {
	var committed map[string]string
	e := NewEngine(0)
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	e.Handle(ctx, 1, "bob_marley")

	res, _ := e.Handle(ctx, 1, "exit")
	if !res.Done || res.Committed {
		t.Fatalf("cancel result = %+v", res)
	}
	if committed != nil {
		t.Fatalf("commit ran on cancel")
	}
	if e.Active(1) {
		t.Fatalf("session survived cancel")
	}

	// A fresh start begins at the first step again.
	p := e.Start(ctx, 1, twoStepForm(&committed))
	if p.Text != "Enter username" {
		t.Fatalf("restart prompt = %q", p.Text)
	}
}

func TestEngineInvalidInputReprompts(t *testing.T) {
	var committed map[string]string
	e := NewEngine(0)
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	res, _ := e.Handle(ctx, 1, "   ")
	if res.Done {
		t.Fatalf("invalid input ended session")
	}
	if res.Prompt.Text != "value must not be empty" {
		t.Fatalf("error prompt = %q", res.Prompt.Text)
	}

	// Still on step 1.
	res, _ = e.Handle(ctx, 1, "bob_marley")
	if !strings.Contains(res.Prompt.Text, "bob_marley") {
		t.Fatalf("expected confirm after valid retry, got %q", res.Prompt.Text)
	}
}

func TestEngineOpaqueValidatorErrorHidesDetails(t *testing.T) {
	e := NewEngine(0)
	ctx := context.Background()

	form := &Form{
		Name: "lookup",
		Steps: []Step{
			{
				Name:        "name",
				BuildPrompt: staticPrompt("name?"),
				Validate: func(ctx context.Context, s *Session, raw string) (string, error) {
					return "", errors.New("pq: connection refused")
				},
			},
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			return "done", nil
		},
	}

	e.Start(ctx, 1, form)
	res, _ := e.Handle(ctx, 1, "anything")
	if res.Done {
		t.Fatalf("lookup failure ended session")
	}
	if res.Prompt.Text != retryText {
		t.Fatalf("prompt = %q, want generic retry text", res.Prompt.Text)
	}
	if strings.Contains(res.Prompt.Text, "pq:") {
		t.Fatalf("internal error leaked to user: %q", res.Prompt.Text)
	}
}

func TestEngineCommitErrorDiscardsSession(t *testing.T) {
	e := NewEngine(0)
	ctx := context.Background()

	form := &Form{
		Name: "broken",
		Steps: []Step{
			{Name: "v", BuildPrompt: staticPrompt("v?"), Validate: acceptNonEmpty},
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			return "", fmt.Errorf("store unavailable")
		},
	}

	e.Start(ctx, 1, form)
	e.Handle(ctx, 1, "x")
	res, _ := e.Handle(ctx, 1, "yes")
	if !res.Done || res.Committed || res.Err == nil {
		t.Fatalf("commit error result = %+v", res)
	}
	if e.Active(1) {
		t.Fatalf("session survived failed commit")
	}
}

func TestEngineIdleExpiry(t *testing.T) {
	var committed map[string]string
	e := NewEngine(time.Minute)
	base := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	if !e.Active(1) {
		t.Fatalf("fresh session not active")
	}

	base = base.Add(2 * time.Minute)
	if e.Active(1) {
		t.Fatalf("expired session still active")
	}
	if _, ok := e.Handle(ctx, 1, "bob_marley"); ok {
		t.Fatalf("expired session handled input")
	}
}

func TestEngineSweep(t *testing.T) {
	var committed map[string]string
	e := NewEngine(time.Minute)
	base := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	e.Start(ctx, 2, twoStepForm(&committed))

	base = base.Add(30 * time.Second)
	e.Handle(ctx, 2, "bob_marley")

	base = base.Add(45 * time.Second)
	if n := e.Sweep(); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if e.Active(1) || !e.Active(2) {
		t.Fatalf("wrong session swept")
	}
}

func TestEngineStartReplacesOpenSession(t *testing.T) {
	var committed map[string]string
	e := NewEngine(0)
	ctx := context.Background()

	e.Start(ctx, 1, twoStepForm(&committed))
	e.Handle(ctx, 1, "bob_marley")
	e.Handle(ctx, 1, "yes")

	// New form starts over from its first step.
	p := e.Start(ctx, 1, twoStepForm(&committed))
	if p.Text != "Enter username" {
		t.Fatalf("replacement prompt = %q", p.Text)
	}
	res, _ := e.Handle(ctx, 1, "alice_smith")
	if !strings.Contains(res.Prompt.Text, "alice_smith") {
		t.Fatalf("replacement session not collecting step 1: %q", res.Prompt.Text)
	}
}
