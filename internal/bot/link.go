package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"subbot/internal/forms"
	"subbot/internal/ledger"
)

const (
	stepUsername  = "username"
	stepGroupName = "group_name"
	stepPaymentAt = "payment_at"
)

func (a *App) handleLink(c tele.Context) error {
	return a.startForm(c, a.linkForm())
}

// linkForm collects username -> group name -> payment date and commits
// the subscription link. The date step offers the group's own due date as
// the default.
func (a *App) linkForm() *forms.Form {
	return &forms.Form{
		Name: "link",
		Steps: []forms.Step{
			{
				Name: stepUsername,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					return forms.Prompt{Text: "Enter the username to link (with or without @)."}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					name, err := validUsername(raw)
					if err != nil {
						return "", err
					}
					if _, err := a.store.UserByName(ctx, name); err != nil {
						if errors.Is(err, ledger.ErrNotFound) {
							return "", forms.Rejectf("No such user: %s. Try again.", name)
						}
						return "", fmt.Errorf("resolve user: %w", err)
					}
					return name, nil
				},
			},
			{
				Name: stepGroupName,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					return forms.Prompt{Text: "Enter the group name."}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					name, err := validGroupName(raw)
					if err != nil {
						return "", err
					}
					if _, err := a.store.GroupByName(ctx, name); err != nil {
						if errors.Is(err, ledger.ErrNotFound) {
							return "", forms.Rejectf("No such group: %s. Try again.", name)
						}
						return "", fmt.Errorf("resolve group: %w", err)
					}
					return name, nil
				},
			},
			{
				Name: stepPaymentAt,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					text := "Enter the payment date (YYYY-MM-DD)."
					if g, err := a.store.GroupByName(ctx, s.Value(stepGroupName)); err == nil {
						text = fmt.Sprintf(
							"Enter the payment date (YYYY-MM-DD), or send %q to use the group default.",
							g.PaymentAt.Format(dateLayout),
						)
						return forms.Prompt{Text: text, Options: []string{g.PaymentAt.Format(dateLayout)}}
					}
					return forms.Prompt{Text: text}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					t, err := parseDate(raw)
					if err != nil {
						return "", err
					}
					return t.Format(dateLayout), nil
				},
			},
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			user, err := a.store.UserByName(ctx, values[stepUsername])
			if err != nil {
				return apologyText, err
			}
			group, err := a.store.GroupByName(ctx, values[stepGroupName])
			if err != nil {
				return apologyText, err
			}
			paymentAt, err := parseDate(values[stepPaymentAt])
			if err != nil {
				return apologyText, err
			}

			err = a.store.LinkUserToGroup(ctx, user.ID, group.ID, paymentAt)
			if errors.Is(err, ledger.ErrConflict) {
				return fmt.Sprintf("%s is already linked to a group.", user.Username), err
			}
			if err != nil {
				return apologyText, err
			}
			return fmt.Sprintf("Linked %s to %s.", user.Username, group.Name), nil
		},
	}
}
