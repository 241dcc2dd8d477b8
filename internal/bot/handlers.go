package bot

import (
	"errors"
	"strings"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"subbot/core/logger"
	coretelegram "subbot/core/telegram"
	"subbot/core/telegram/commands"
	"subbot/core/telegram/format"
	tghelpers "subbot/core/telegram/helpers"
	"subbot/core/telegram/keyboard"
	"subbot/internal/forms"
	"subbot/internal/ledger"
)

const apologyText = "Something went wrong, please try again later."

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "What this bot does",
	})
	reg.RegisterCommand("/unpaid", commands.Command{
		Handler:     a.handleUnpaid,
		Description: "Show groups with members who owe money",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/link", commands.Command{
		Handler:     a.handleLink,
		Description: "Link a user to a subscription group",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/delete", commands.Command{
		Handler:     a.handleDelete,
		Description: "Delete a user or a group",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/update", commands.Command{
		Handler:     a.handleUpdate,
		Description: "Update bot settings",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/add_me", commands.Command{
		Handler:     a.handleAddMe,
		Description: "Register this chat (group) or yourself (private)",
	})
	reg.RegisterCommand("/pay", commands.Command{
		Handler:     a.handlePay,
		Description: "Mark your subscription as paid",
	})
}

func (a *App) handleStart(c tele.Context) error {
	if isPrivate(c) {
		return tghelpers.SendHTML(c,
			format.Bold("Subscription tracker")+"\n"+
				"/pay marks your own payment, /add_me registers you.\n"+
				format.Italic("Admins drive /link, /delete, /update and /unpaid here."))
	}
	return tghelpers.SendHTML(c,
		format.Bold("Subscription tracker")+"\n"+
			"An admin can register this group with /add_me [YYYY-MM-DD].")
}

func (a *App) handleUnpaid(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "/unpaid")
	start := time.Now()
	reports, err := a.store.UnpaidGroups(ctx)
	logger.Info(ctx, "tg", "unpaid.report",
		slog.String("status", logger.Status(err)),
		slog.Int("groups", len(reports)),
		slog.Duration("took", logger.Took(start)),
	)
	if err != nil {
		return tghelpers.SendText(c, apologyText)
	}
	return tghelpers.SendHTML(c, renderUnpaid(reports))
}

// handleAddMe registers the chat as a group when invoked in a group chat
// by an admin, or the sender as a user in private.
func (a *App) handleAddMe(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "/add_me")
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	if isPrivate(c) {
		err := a.store.AddUser(ctx, sender.ID, sender.Username)
		switch {
		case errors.Is(err, ledger.ErrConflict):
			return tghelpers.SendText(c, "You are already registered.")
		case errors.Is(err, ledger.ErrInvalidInput):
			return tghelpers.SendText(c, "Set a Telegram username first, then try again.")
		case err != nil:
			return tghelpers.SendText(c, apologyText)
		}
		return tghelpers.SendText(c, "You are registered. An admin can now link you to a group.")
	}

	if !a.cfg.Telegram.IsAdmin(sender.ID) {
		return tghelpers.SendText(c, "Only an admin can register a group.")
	}

	due := time.Now()
	if arg := commandArgument(c.Text()); arg != "" {
		parsed, err := parseDate(arg)
		if err != nil {
			return tghelpers.SendText(c, err.Error())
		}
		due = parsed
	}

	err := a.store.AddGroup(ctx, chat.ID, chat.Title, due)
	switch {
	case errors.Is(err, ledger.ErrConflict):
		return tghelpers.SendText(c, "This group is already registered.")
	case errors.Is(err, ledger.ErrInvalidInput):
		return tghelpers.SendText(c, "Could not register the group: invalid name or date.")
	case err != nil:
		return tghelpers.SendText(c, apologyText)
	}
	return tghelpers.SendText(c, "Group registered.")
}

// handleFormInput feeds text into an open dialogue session. It reports
// whether the update was consumed so command dispatch can run otherwise.
func (a *App) handleFormInput(c tele.Context) (bool, error) {
	chat := c.Chat()
	if chat == nil || !a.engine.Active(chat.ID) {
		return false, nil
	}

	ctx := tghelpers.BuildContext(c)
	res, ok := a.engine.Handle(ctx, chat.ID, c.Text())
	if !ok {
		return false, nil
	}

	if res.Done {
		msg := res.Message
		if res.Err != nil && msg == "" {
			msg = apologyText
		}
		return true, tghelpers.SendText(c, msg, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
	}
	return true, sendPrompt(c, res.Prompt)
}

// startForm opens a session and sends the first prompt. Forms run only in
// private chats so group noise cannot feed a session.
func (a *App) startForm(c tele.Context, form *forms.Form) error {
	if !isPrivate(c) {
		return tghelpers.SendText(c, "Run this in a private chat with me.")
	}
	ctx := tghelpers.BuildContext(c)
	prompt := a.engine.Start(ctx, c.Chat().ID, form)
	return sendPrompt(c, prompt)
}

func sendPrompt(c tele.Context, p forms.Prompt) error {
	markup := keyboard.RemoveKeyboard()
	if len(p.Options) > 0 {
		markup = keyboard.ReplyButtons(p.Options)
	}
	return tghelpers.SendText(c, p.Text, &tele.SendOptions{ReplyMarkup: markup})
}

func isPrivate(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type == tele.ChatPrivate
}

// commandArgument returns the text after the command token, if any.
func commandArgument(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
