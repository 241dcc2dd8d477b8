package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	coretelegram "subbot/core/telegram"
	"subbot/core/telegram/callbacks"
	tghelpers "subbot/core/telegram/helpers"
	"subbot/core/telegram/keyboard"
	"subbot/internal/ledger"
)

const payCallbackKey = "pay"

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	if err := reg.RegisterCallback(payCallbackKey, a.handlePayChoice); err != nil {
		panic(err)
	}
}

// handlePay offers 1-6 months as inline buttons.
func (a *App) handlePay(c tele.Context) error {
	buttons := make([]keyboard.InlineBtn, 0, 6)
	for months := 1; months <= 6; months++ {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%d", months),
			Unique: payCallbackKey,
			Data:   fmt.Sprintf("%d", months),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 3)
	return tghelpers.SendText(c, "How many months are you paying for?", &tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handlePayChoice(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "cb:"+payCallbackKey)
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	months, err := callbacks.PayloadInt(c)
	if err != nil || months <= 0 {
		return c.Respond(&tele.CallbackResponse{Text: "Pick a number of months."})
	}

	err = a.store.MarkPayment(ctx, sender.ID, months)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		_ = c.Respond(&tele.CallbackResponse{})
		return tghelpers.EditOrSendHTML(c, "You are not linked to any group yet.")
	case err != nil:
		_ = c.Respond(&tele.CallbackResponse{})
		return tghelpers.EditOrSendHTML(c, apologyText)
	}

	_ = c.Respond(&tele.CallbackResponse{Text: "Recorded!"})
	plural := "s"
	if months == 1 {
		plural = ""
	}
	return tghelpers.EditOrSendHTML(c, fmt.Sprintf("Payment for %d month%s recorded. Thank you!", months, plural))
}
