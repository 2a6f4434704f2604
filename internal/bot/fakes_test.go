package bot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"adportal/internal/config"
	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	customerID int64 = 42
	adminID    int64 = 7
	channelID  int64 = -100500
)

var testNow = time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)

// fakeTelegram records everything the bot sends.
type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// texts returns the text of every message and edit sent to chatID.
func (f *fakeTelegram) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if m.ChatID == chatID {
				out = append(out, m.Text)
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ChatID == chatID {
				out = append(out, m.Text)
			}
		}
	}
	return out
}

func (f *fakeTelegram) lastText(chatID int64) string {
	texts := f.texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeTelegram) anyText(chatID int64, substr string) bool {
	for _, t := range f.texts(chatID) {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func (f *fakeTelegram) documents(chatID int64) []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok && d.ChatID == chatID {
			out = append(out, d)
		}
	}
	return out
}

// lastNotice is the text of the most recent callback answer.
func (f *fakeTelegram) lastNotice() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb.Text
		}
	}
	return ""
}

// memoryStates round-trips states through JSON the way the Redis store does.
type memoryStates struct {
	mu     sync.Mutex
	states map[int64][]byte
}

func newMemoryStates() *memoryStates {
	return &memoryStates{states: make(map[int64][]byte)}
}

func (m *memoryStates) GetUserDialogState(ctx context.Context, chatID int64) (*redis.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := &redis.UserState{}
	data, ok := m.states[chatID]
	if !ok {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (m *memoryStates) SetUserDialogState(ctx context.Context, chatID int64, state *redis.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.states[chatID] = data
	return nil
}

func (m *memoryStates) DropUserDialogState(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
	return nil
}

func (m *memoryStates) has(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[chatID]
	return ok
}

type fixture struct {
	bot    *Bot
	api    *fakeTelegram
	states *memoryStates
	repo   *quote.MemoryRepository
	quotes *quote.Service
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAreas() []pricing.Area {
	return []pricing.Area{
		{ID: "north", Name: "North", Circulation: 5000, Households: 4800,
			Prices: map[pricing.AdSize]decimal.Decimal{"eighth": dec("40"), "quarter": dec("100"), "half": dec("180")}},
		{ID: "south", Name: "South", Circulation: 3000, Households: 3100,
			Prices: map[pricing.AdSize]decimal.Decimal{"eighth": dec("50"), "quarter": dec("80"), "half": dec("150")}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	card, err := pricing.DefaultRateCard()
	require.NoError(t, err)

	repo := quote.NewMemoryRepository(testAreas(),
		pricing.Voucher{Code: "SAVE10", Kind: pricing.VoucherPercent, Value: dec("10"),
			Product: pricing.ProductAny, Stackable: true, Active: true},
		pricing.Voucher{Code: "LEAF5", Kind: pricing.VoucherFixed, Value: dec("5"),
			Product: pricing.ProductLeafleting, Stackable: true, Active: true},
		pricing.Voucher{Code: "ONCE", Kind: pricing.VoucherFixed, Value: dec("20"),
			Product: pricing.ProductAny, Stackable: true, Active: true, MaxUses: 1, Used: 1},
	)
	log := zaptest.NewLogger(t)
	svc := quote.NewService(repo, nil, card, log, quote.WithClock(func() time.Time { return testNow }))

	cfg := &config.Config{
		ReportDir: t.TempDir(),
		Admin:     config.AdminConfig{ChatID: adminID, ChannelID: channelID},
	}

	f := &fixture{
		api:    &fakeTelegram{updates: make(chan tgbotapi.Update, 1)},
		states: newMemoryStates(),
		repo:   repo,
		quotes: svc,
	}
	f.bot = newBot(f.api, cfg, svc, f.states, log)
	return f
}

func (f *fixture) text(chatID int64, text string) {
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, FirstName: "Jane", LastName: "Doe"},
		Text: text,
	}})
}

func (f *fixture) command(chatID int64, text string) {
	name, _, _ := strings.Cut(text, " ")
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Jane"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}})
}

func (f *fixture) press(chatID int64, data string) string {
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 100, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}})
	return f.api.lastNotice()
}

func (f *fixture) state(t *testing.T, chatID int64) *redis.UserState {
	t.Helper()
	state, err := f.states.GetUserDialogState(context.Background(), chatID)
	require.NoError(t, err)
	return state
}

func (f *fixture) seed(t *testing.T, chatID int64, state *redis.UserState) {
	t.Helper()
	require.NoError(t, f.states.SetUserDialogState(context.Background(), chatID, state))
}

// completeDraft is north, quarter page, three months from October 2026.
func completeDraft() quote.Draft {
	oct := pricing.Month{Year: 2026, Month: time.October}
	return quote.Draft{
		Product:   quote.ProductAdvertising,
		Selection: pricing.Selection{Paid: []string{"north"}},
		AdSize:    "quarter",
		Months:    3,
		Schedule:  pricing.Schedule{"north": {oct, oct.AddMonths(1), oct.AddMonths(2)}},
	}
}

func (f *fixture) submitted(t *testing.T) *quote.Quote {
	t.Helper()
	q, err := f.quotes.Submit(context.Background(), quote.Submission{
		Draft:   completeDraft(),
		Contact: quote.Contact{Name: "Jane", Phone: "07700 900123"},
		Source:  quote.SourceTelegram,
		ChatID:  customerID,
	})
	require.NoError(t, err)
	return q
}
