package bot

import (
	"context"
	"strings"

	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const privacyText = `Hello! 👋 This bot prices magazine adverts and leaflet drops in our distribution areas.

⚠️ Before we start: to send you a quote we store the areas and options you pick and the contact details you give us. We only use them to follow up on your quote.

If that's OK, tap the button below 👇`

const helpText = `Commands:
/start - Start a new quote
/cancel - Go back one step
/help - Show this help

Pick your areas, size and campaign length and the bot shows the price as you go. Nothing is booked until our sales team contacts you.`

const adminHelpText = `

Admin:
/stats - Quote statistics
/export [id] - Excel export of one or all quotes
/status <id> <new|contacted|booked|cancelled> - Change a quote's status
/sync - Retry pushing unsynced quotes to the backend`

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch cmd := msg.Command(); cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "cancel":
		b.handleCancel(ctx, chatID)
	case "stats", "export", "status", "sync":
		b.handleAdminCommand(ctx, chatID, cmd, strings.Fields(msg.CommandArguments()))
	default:
		b.handleUnknownCommand(chatID)
	}
}

func (b *Bot) handleDefault(ctx context.Context, state *redis.UserState, chatID int64) {
	if state.Step == "" {
		b.sendError(chatID, "Send /start to get a quote.")
		return
	}
	b.sendError(chatID, "Please use the buttons above.")
}

func (b *Bot) handleUnknownCommand(chatID int64) {
	b.sendError(chatID, "Unknown command. Send /start to begin.")
}

func (b *Bot) handleHelp(chatID int64) {
	text := helpText
	if b.cfg.IsAdmin(chatID) {
		text += adminHelpText
	}
	b.sendText(chatID, text, nil)
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if err := b.state.DropUserDialogState(ctx, chatID); err != nil {
		b.logger.Warn("Failed to drop user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	state := &redis.UserState{Step: StepPrivacyAgreement}
	if !b.saveState(ctx, chatID, state) {
		return
	}
	b.renderStep(ctx, chatID, state)
}

// handleCancel steps back to the previous wizard step.
func (b *Bot) handleCancel(ctx context.Context, chatID int64) {
	state, ok := b.loadState(ctx, chatID)
	if !ok {
		return
	}
	if !state.Back() {
		b.sendError(chatID, "Nothing to go back to. Send /start to begin a new quote.")
		return
	}
	if !b.saveState(ctx, chatID, state) {
		return
	}
	b.renderStep(ctx, chatID, state)
}

// renderStep shows the prompt for the state's current step.
func (b *Bot) renderStep(ctx context.Context, chatID int64, state *redis.UserState) {
	switch state.Step {
	case StepPrivacyAgreement:
		b.sendText(chatID, privacyText, privacyKeyboard())
	case StepProduct:
		b.askProduct(chatID)
	case StepAreas:
		b.askAreas(ctx, chatID, state)
	case StepAdSize:
		b.askAdSize(ctx, chatID, state)
	case StepLeafletSize:
		b.askLeafletSize(ctx, chatID, state)
	case StepDuration:
		b.askDuration(ctx, chatID, state)
	case StepSchedule:
		b.askSchedule(ctx, chatID, state)
	case StepVoucher:
		b.askVoucher(ctx, chatID, state)
	case StepContact:
		b.askContact(chatID)
	case StepSummary:
		b.showSummary(ctx, chatID, state)
	default:
		b.sendError(chatID, "Send /start to get a quote.")
	}
}

// advance saves the state at the next step and shows its prompt.
func (b *Bot) advance(ctx context.Context, chatID int64, state *redis.UserState, step string) {
	state.Advance(step)
	if !b.saveState(ctx, chatID, state) {
		return
	}
	b.renderStep(ctx, chatID, state)
}
