package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"adportal/internal/quote"
	"adportal/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	exportLimit = 1000
	syncBatch   = 50
)

func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	if !b.cfg.IsAdmin(chatID) {
		b.handleUnknownCommand(chatID)
		return
	}

	switch cmd {
	case "export":
		if len(args) == 0 {
			b.handleExportAllQuotes(ctx, chatID)
			return
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendError(chatID, "Invalid quote ID")
			return
		}
		b.handleExportSingleQuote(ctx, chatID, id)
	case "stats":
		b.handleQuoteStats(ctx, chatID)
	case "status":
		if len(args) < 2 {
			b.sendError(chatID, "Usage: /status <quote_id> <new|contacted|booked|cancelled>")
			return
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendError(chatID, "Invalid quote ID")
			return
		}
		if _, err := b.changeStatus(ctx, id, args[1]); err != nil {
			b.sendError(chatID, statusErrorText(err))
			return
		}
		b.sendText(chatID, fmt.Sprintf("✅ Quote #%d status set to: %s", id, args[1]), nil)
	case "sync":
		b.handleSync(ctx, chatID)
	default:
		b.sendError(chatID, "Unknown admin command")
	}
}

// handleStatusCallback applies a status button from an admin notification.
// value is "<quote_id>:<status>".
func (b *Bot) handleStatusCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, value string) string {
	chatID := cb.Message.Chat.ID
	if !b.cfg.IsAdmin(chatID) && (cb.From == nil || !b.cfg.IsAdmin(cb.From.ID)) {
		return "Not allowed."
	}

	idStr, status, _ := strings.Cut(value, ":")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "Invalid quote ID."
	}

	q, err := b.changeStatus(ctx, id, status)
	if err != nil {
		return statusErrorText(err)
	}

	edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, formatQuoteNotification(b.quotes.RateCard(), q))
	if markup, ok := adminStatusKeyboard(q); ok {
		edit.ReplyMarkup = &markup
	}
	b.sendMessage(edit)

	return "Status: " + statusLabel(q.Status)
}

// changeStatus moves quote id to status and tells the customer when it
// actually changed.
func (b *Bot) changeStatus(ctx context.Context, id int64, raw string) (*quote.Quote, error) {
	status, err := quote.ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	current, err := b.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := current.Status

	q, err := b.quotes.UpdateStatus(ctx, id, status)
	if err != nil {
		if !quote.IsUserError(err) {
			b.logger.Error("Failed to update quote status",
				zap.Int64("quote_id", id),
				zap.String("status", raw),
				zap.Error(err))
		}
		return nil, err
	}

	if previous != q.Status {
		b.NotifyStatusChange(ctx, q)
	}
	return q, nil
}

func statusErrorText(err error) string {
	switch {
	case errors.Is(err, quote.ErrNotFound):
		return "Quote not found"
	case errors.Is(err, quote.ErrInvalidStatus):
		return "Unknown status. Use one of: new, contacted, booked, cancelled"
	case errors.Is(err, quote.ErrInvalidTransition):
		return "That status change is not allowed: " + err.Error()
	}
	return "Failed to update the status"
}

func (b *Bot) handleQuoteStats(ctx context.Context, chatID int64) {
	stats, err := b.quotes.Stats(ctx)
	if err != nil {
		b.logger.Error("Failed to get quote statistics", zap.Error(err))
		b.sendError(chatID, "Failed to load statistics")
		return
	}
	b.sendText(chatID, formatStats(b.quotes.RateCard(), stats), nil)
}

func (b *Bot) handleExportAllQuotes(ctx context.Context, chatID int64) {
	quotes, err := b.quotes.Recent(ctx, exportLimit)
	if err != nil {
		b.logger.Error("Failed to load quotes for export", zap.Error(err))
		b.sendError(chatID, "Failed to export quotes")
		return
	}
	if len(quotes) == 0 {
		b.sendText(chatID, "No quotes yet.", nil)
		return
	}

	name := fmt.Sprintf("quotes_report_%s", b.quotes.Now().Format("20060102"))
	path, err := storage.ExportQuotesToExcel(b.cfg.ReportDir, name, quotes)
	if err != nil {
		b.logger.Error("Failed to export all quotes", zap.Error(err))
		b.sendError(chatID, "Failed to export quotes")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📊 Quotes export (%d)", len(quotes))
	if _, err := b.bot.Send(doc); err != nil {
		b.logger.Error("Failed to send Excel file", zap.Error(err))
		b.sendError(chatID, "Failed to send exported file")
	}
}

func (b *Bot) handleExportSingleQuote(ctx context.Context, chatID int64, id int64) {
	q, err := b.quotes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			b.sendError(chatID, "Quote not found")
			return
		}
		b.logger.Error("Failed to get quote",
			zap.Int64("quote_id", id),
			zap.Error(err))
		b.sendError(chatID, "Failed to export quote")
		return
	}

	path, err := storage.ExportQuoteToExcel(b.cfg.ReportDir, q)
	if err != nil {
		b.logger.Error("Failed to export quote",
			zap.Int64("quote_id", id),
			zap.Error(err))
		b.sendError(chatID, "Failed to export quote")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📊 Quote #%d export", id)
	if _, err := b.bot.Send(doc); err != nil {
		b.logger.Error("Failed to send Excel file", zap.Error(err))
		b.sendError(chatID, "Failed to send exported file")
	}
}

func (b *Bot) handleSync(ctx context.Context, chatID int64) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := b.quotes.SyncPending(ctx, syncBatch)
	if err != nil {
		b.logger.Error("Failed to sync pending quotes", zap.Error(err))
		b.sendError(chatID, fmt.Sprintf("Sync stopped after %d quote(s): %v", n, err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("🔄 Synced %d quote(s) to the backend.", n), nil)
}
