package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"subbot/internal/forms"
)

const targetPrice = "price"

func (a *App) handleUpdate(c tele.Context) error {
	return a.startForm(c, a.settingsForm())
}

// settingsForm collects which setting to change and its new value. Only
// the price key has a validated contract today.
func (a *App) settingsForm() *forms.Form {
	return &forms.Form{
		Name: "settings",
		Steps: []forms.Step{
			{
				Name: stepTarget,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					return forms.Prompt{
						Text:    "Which setting do you want to change?",
						Options: []string{targetPrice},
					}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					return validToken(raw, targetPrice)
				},
			},
			{
				Name: stepValue,
				BuildPrompt: func(ctx context.Context, s *forms.Session) forms.Prompt {
					text := "Enter the new price."
					if current := a.settings.Price(); current > 0 {
						text = fmt.Sprintf("Enter the new price (current: %d).", current)
					}
					return forms.Prompt{Text: text}
				},
				Validate: func(ctx context.Context, s *forms.Session, raw string) (string, error) {
					n, err := parsePositiveInt(raw)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d", n), nil
				},
			},
		},
		Commit: func(ctx context.Context, values map[string]string) (string, error) {
			price, err := parsePositiveInt(values[stepValue])
			if err != nil {
				return apologyText, err
			}
			if err := a.settings.SetPrice(price); err != nil {
				return apologyText, err
			}
			return fmt.Sprintf("Price updated to %d.", price), nil
		},
	}
}
