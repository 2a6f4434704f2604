package bot

import (
	"context"
	"fmt"

	"adportal/internal/quote"
	"adportal/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NotifyNewQuote sends the quote details and its workbook to every admin and
// a short note to the channel when one is configured.
func (b *Bot) NotifyNewQuote(ctx context.Context, q *quote.Quote) {
	for _, adminID := range b.cfg.AdminIDs() {
		b.sendAdminNotification(ctx, adminID, q)
	}
	b.notifyChannel(q)
}

func (b *Bot) notifyChannel(q *quote.Quote) {
	if b.cfg.Admin.ChannelID == 0 {
		b.logger.Debug("Channel notifications disabled - no channel ID configured")
		return
	}

	msg := tgbotapi.NewMessage(b.cfg.Admin.ChannelID, formatChannelNotification(b.quotes.RateCard(), q))
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send channel notification",
			zap.Int64("channel_id", b.cfg.Admin.ChannelID),
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
	}
}

func (b *Bot) sendAdminNotification(ctx context.Context, chatID int64, q *quote.Quote) {
	msg := tgbotapi.NewMessage(chatID, formatQuoteNotification(b.quotes.RateCard(), q))
	if markup, ok := adminStatusKeyboard(q); ok {
		msg.ReplyMarkup = markup
	}
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send admin notification",
			zap.Int64("chat_id", chatID),
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
		return
	}

	path, err := storage.ExportQuoteToExcel(b.cfg.ReportDir, q)
	if err != nil {
		b.logger.Error("Failed to create Excel file for quote",
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📊 Quote #%d details", q.ID)
	if _, err := b.bot.Send(doc); err != nil {
		b.logger.Error("Failed to send Excel file to admin",
			zap.Int64("chat_id", chatID),
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
	}
}

// NotifyStatusChange tells a Telegram customer their quote moved on.
// Web quotes have no chat to reach.
func (b *Bot) NotifyStatusChange(ctx context.Context, q *quote.Quote) {
	if q.Source != quote.SourceTelegram || q.ChatID == 0 {
		return
	}

	msg := tgbotapi.NewMessage(q.ChatID, formatStatusChange(b.quotes.RateCard(), q))
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Warn("Failed to notify user about status change",
			zap.Int64("chat_id", q.ChatID),
			zap.Int64("quote_id", q.ID),
			zap.Error(err))
	}
}
