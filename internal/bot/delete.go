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
	stepTarget = "target"
	stepValue  = "value"

	targetUser  = "user"
	targetGroup = "group"
)

func (a *App) handleDelete(c tele.Context) error {
	return a.startForm(c, a.deleteForm())
}

// deleteForm collects what to delete (user or group) and the name, then
// commits the cascading delete.
func (a *App) deleteForm() *forms.Form {
	return &forms.Form{
		Name: "delete",
		Steps: []forms.Step{
			{
				Name: stepTarget,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					return forms.Prompt{
						Text:    "What do you want to delete?",
						Options: []string{targetUser, targetGroup},
					}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					return validToken(raw, targetUser, targetGroup)
				},
			},
			{
				Name: stepValue,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					if s.Value(stepTarget) == targetGroup {
						return forms.Prompt{Text: "Enter the group name to delete."}
					}
					return forms.Prompt{Text: "Enter the username to delete (with or without @)."}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					if s.Value(stepTarget) == targetGroup {
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
					}

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
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			name := values[stepValue]
			var (
				removed bool
				err     error
			)
			if values[stepTarget] == targetGroup {
				removed, err = a.store.DeleteGroup(ctx, name)
			} else {
				removed, err = a.store.DeleteUser(ctx, name)
			}
			if err != nil {
				return apologyText, err
			}
			if !removed {
				return fmt.Sprintf("Nothing to delete: %s is already gone.", name), nil
			}
			return fmt.Sprintf("Deleted %s.", name), nil
		},
	}
}
