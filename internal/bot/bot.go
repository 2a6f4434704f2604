package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"adportal/internal/config"
	"adportal/internal/quote"
	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramAPI is the part of tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type (
	messageHandler  func(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message)
	callbackHandler func(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string
)

type Bot struct {
	bot       telegramAPI
	logger    *zap.Logger
	state     StateStore
	quotes    *quote.Service
	cfg       *config.Config
	mu        sync.Mutex
	handlers  map[string]messageHandler
	callbacks map[string]callbackHandler
}

func New(cfg *config.Config, quotes *quote.Service, state StateStore, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	botAPI.Debug = cfg.Telegram.Debug

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	return newBot(botAPI, cfg, quotes, state, logger), nil
}

func newBot(api telegramAPI, cfg *config.Config, quotes *quote.Service, state StateStore, logger *zap.Logger) *Bot {
	b := &Bot{
		bot:    api,
		logger: logger,
		state:  state,
		quotes: quotes,
		cfg:    cfg,
	}
	b.registerHandlers()
	return b
}

func (b *Bot) registerHandlers() {
	b.handlers = map[string]messageHandler{
		StepPrivacyAgreement: b.handlePrivacyAgreement,
		StepVoucher:          b.handleVoucherInput,
		StepContact:          b.handleContactInput,
		StepSummary:          b.handleSummary,
	}
	b.callbacks = map[string]callbackHandler{
		cbProduct:  b.handleProductSelection,
		cbArea:     b.handleAreaToggle,
		cbAreas:    b.handleAreasDone,
		cbSize:     b.handleAdSizeSelection,
		cbLeaflet:  b.handleLeafletSizeSelection,
		cbDuration: b.handleDurationSelection,
		cbMonth:    b.handleMonthToggle,
		cbSchedule: b.handleScheduleAction,
	}
}

// Start polls Telegram until ctx is cancelled. Updates are handled one at a
// time.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			b.bot.StopReceivingUpdates()
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if update.Message != nil {
		b.processMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.processCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.logger.Debug("Processing message",
		zap.Int64("chat_id", chatID),
		zap.String("text", msg.Text))

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	switch msg.Text {
	case btnRestart:
		b.handleStart(ctx, chatID)
		return
	case btnBack:
		b.handleCancel(ctx, chatID)
		return
	}

	state, ok := b.loadState(ctx, chatID)
	if !ok {
		return
	}

	if msg.Contact != nil && state.Step == StepContact {
		b.handleSharedContact(ctx, state, msg)
		return
	}

	if handler, exists := b.handlers[state.Step]; exists {
		handler(ctx, state, msg)
		return
	}
	b.handleDefault(ctx, state, chatID)
}

func (b *Bot) processCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	b.logger.Debug("Processing callback",
		zap.Int64("chat_id", chatID),
		zap.String("data", cb.Data))

	prefix, value, _ := strings.Cut(cb.Data, ":")

	var notice string
	if prefix == cbStatus {
		notice = b.handleStatusCallback(ctx, cb, value)
	} else if handler, exists := b.callbacks[prefix]; exists {
		if state, ok := b.loadState(ctx, chatID); ok {
			if state.Step != callbackStep(prefix) {
				notice = "This menu has expired."
				b.renderStep(ctx, chatID, state)
			} else {
				notice = handler(ctx, state, cb, value)
			}
		}
	}

	if _, err := b.bot.Request(tgbotapi.NewCallback(cb.ID, notice)); err != nil {
		b.logger.Warn("Failed to answer callback",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}

// callbackStep is the step an inline keyboard with this prefix belongs to.
func callbackStep(prefix string) string {
	switch prefix {
	case cbProduct:
		return StepProduct
	case cbArea, cbAreas:
		return StepAreas
	case cbSize:
		return StepAdSize
	case cbLeaflet:
		return StepLeafletSize
	case cbDuration:
		return StepDuration
	case cbMonth, cbSchedule:
		return StepSchedule
	}
	return ""
}

func (b *Bot) loadState(ctx context.Context, chatID int64) (*redis.UserState, bool) {
	state, err := b.state.GetUserDialogState(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get user state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Something went wrong, please try again.")
		return nil, false
	}
	return state, true
}

func (b *Bot) saveState(ctx context.Context, chatID int64, state *redis.UserState) bool {
	if err := b.state.SetUserDialogState(ctx, chatID, state); err != nil {
		b.logger.Error("Failed to save user state",
			zap.Int64("chat_id", chatID),
			zap.String("step", state.Step),
			zap.Error(err))
		b.sendError(chatID, "Something went wrong, please try again.")
		return false
	}
	return true
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.sendMessage(msg)
}

func (b *Bot) sendError(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, "❌ "+text))
}
