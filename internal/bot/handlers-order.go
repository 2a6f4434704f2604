package bot

import (
	"context"
	"errors"
	"fmt"

	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) showSummary(ctx context.Context, chatID int64, state *redis.UserState) {
	price, err := b.quotes.PriceDraft(ctx, state.Draft)
	if err != nil {
		b.logger.Error("Failed to price draft for summary",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not price your quote. Tap "+btnBack+" to change your answers.")
		return
	}

	areas, err := b.quotes.Catalog(ctx)
	if err != nil {
		b.logger.Error("Failed to load areas", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendError(chatID, "Could not load the distribution areas, please try again later.")
		return
	}

	b.sendText(chatID, formatSummary(b.quotes.RateCard(), areas, state.Draft, state.Contact, price), summaryKeyboard())
}

func (b *Bot) handleSummary(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message) {
	if msg.Text != btnConfirm {
		b.sendError(msg.Chat.ID, fmt.Sprintf("Tap %q to send your quote, or %s to change it.", btnConfirm, btnBack))
		return
	}
	b.submitQuote(ctx, msg.Chat.ID, state)
}

func (b *Bot) submitQuote(ctx context.Context, chatID int64, state *redis.UserState) {
	q, err := b.quotes.Submit(ctx, quote.Submission{
		Draft:   state.Draft,
		Contact: state.Contact,
		Source:  quote.SourceTelegram,
		ChatID:  chatID,
	})
	if err != nil {
		b.handleSubmitError(ctx, chatID, state, err)
		return
	}

	if err := b.state.DropUserDialogState(ctx, chatID); err != nil {
		b.logger.Warn("Failed to drop user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	symbol := pricing.CurrencySymbol(b.quotes.RateCard().Currency)
	text := fmt.Sprintf(
		"✅ Thank you! Your quote #%d has been sent.\n"+
			"Total: %s (inc. VAT)\n"+
			"Reference: %s\n\n"+
			"Our sales team will be in touch shortly. Nothing is booked until we confirm with you.",
		q.ID, pricing.FormatMoney(symbol, q.Price.Total), q.Ref)
	b.sendText(chatID, text, tgbotapi.NewRemoveKeyboard(true))

	b.NotifyNewQuote(ctx, q)
}

func (b *Bot) handleSubmitError(ctx context.Context, chatID int64, state *redis.UserState, err error) {
	var sv *pricing.ScheduleViolations
	switch {
	case errors.As(err, &sv):
		b.sendError(chatID, "Some of your months can no longer be booked. Please pick them again.")
		state.Draft.Schedule = nil
		state.ScheduleArea = ""
		state.Advance(StepSchedule)
		if b.saveState(ctx, chatID, state) {
			b.renderStep(ctx, chatID, state)
		}
	case errors.Is(err, quote.ErrVoucherExhausted):
		b.sendError(chatID, "One of your vouchers has just run out. It was removed, please check your price again.")
		state.Draft.Vouchers = nil
		if b.saveState(ctx, chatID, state) {
			b.renderStep(ctx, chatID, state)
		}
	case quote.IsUserError(err):
		b.sendError(chatID, "Your quote could not be sent: "+err.Error())
	default:
		b.logger.Error("Failed to submit quote",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not send your quote, please try again in a few minutes.")
	}
}
