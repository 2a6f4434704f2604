package bot

import (
	"context"
	"testing"
	"time"

	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard_FullFlow(t *testing.T) {
	f := newFixture(t)

	f.command(customerID, "/start")
	assert.Equal(t, StepPrivacyAgreement, f.state(t, customerID).Step)

	f.text(customerID, "sure")
	assert.Equal(t, StepPrivacyAgreement, f.state(t, customerID).Step)

	f.text(customerID, btnAgree)
	assert.Equal(t, StepProduct, f.state(t, customerID).Step)

	f.press(customerID, "product:advertising")
	assert.Equal(t, StepAreas, f.state(t, customerID).Step)

	assert.Equal(t, "Pick at least one area.", f.press(customerID, "areas:done"))
	f.press(customerID, "area:north")
	f.press(customerID, "areas:done")
	assert.Equal(t, StepAdSize, f.state(t, customerID).Step)

	f.press(customerID, "size:quarter")
	assert.Equal(t, StepDuration, f.state(t, customerID).Step)

	assert.Equal(t, "Unknown option.", f.press(customerID, "months:2"))
	f.press(customerID, "months:3")
	state := f.state(t, customerID)
	assert.Equal(t, StepSchedule, state.Step)
	assert.Equal(t, "north", state.ScheduleArea)

	assert.Equal(t, "That month can no longer be booked.", f.press(customerID, "month:2026-09"))
	f.press(customerID, "month:2026-10")
	assert.Equal(t, "Pick 2 more month(s) first.", f.press(customerID, "schedule:next"))
	f.press(customerID, "month:2026-11")
	f.press(customerID, "month:2026-12")
	assert.Contains(t, f.press(customerID, "month:2027-01"), "already picked 3")
	f.press(customerID, "schedule:next")
	assert.Equal(t, StepVoucher, f.state(t, customerID).Step)

	f.text(customerID, "nope")
	assert.Contains(t, f.api.lastText(customerID), "don't recognise")
	f.text(customerID, "leaf5")
	assert.Contains(t, f.api.lastText(customerID), "isn't valid for this product")
	f.text(customerID, " save10 ")
	assert.True(t, f.api.anyText(customerID, "Voucher SAVE10 applied"))
	assert.Equal(t, []string{"SAVE10"}, f.state(t, customerID).Draft.Vouchers)

	f.text(customerID, btnContinue)
	assert.Equal(t, StepContact, f.state(t, customerID).Step)

	f.text(customerID, "not a number")
	assert.Equal(t, StepContact, f.state(t, customerID).Step)
	f.text(customerID, "07700 900123")
	state = f.state(t, customerID)
	assert.Equal(t, StepSummary, state.Step)
	assert.Equal(t, "+447700900123", state.Contact.Phone)
	assert.Contains(t, f.api.lastText(customerID), "Total: £307.80")

	f.text(customerID, btnConfirm)

	quotes, err := f.repo.ListQuotes(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	q := quotes[0]
	assert.True(t, dec("307.8").Equal(q.Price.Total), q.Price.Total.String())
	assert.Equal(t, quote.SourceTelegram, q.Source)
	assert.Equal(t, customerID, q.ChatID)
	assert.Equal(t, "Jane Doe", q.Contact.Name)
	assert.Len(t, q.Draft.Schedule["north"], 3)

	assert.False(t, f.states.has(customerID))
	assert.Contains(t, f.api.lastText(customerID), "Your quote #1 has been sent")

	assert.True(t, f.api.anyText(adminID, "New quote #1 (telegram)"))
	assert.Len(t, f.api.documents(adminID), 1)
	assert.True(t, f.api.anyText(channelID, "Total: £307.80"))
}

func TestAreaToggle_BOGOFCycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{Step: StepAreas, Draft: quote.Draft{Product: quote.ProductAdvertising}})

	f.press(customerID, "area:south")
	f.press(customerID, "area:north")
	assert.Equal(t, "Added free 🎁", f.press(customerID, "area:south"))
	sel := f.state(t, customerID).Draft.Selection
	assert.Equal(t, []string{"north"}, sel.Paid)
	assert.Equal(t, []string{"south"}, sel.Free)

	// north has nothing to cover it, so the tap removes it and south loses its cover
	assert.Equal(t, "No longer free: South", f.press(customerID, "area:north"))
	sel = f.state(t, customerID).Draft.Selection
	assert.Empty(t, sel.Paid)
	assert.Empty(t, sel.Free)

	f.press(customerID, "area:north")
	f.press(customerID, "area:north")
	sel = f.state(t, customerID).Draft.Selection
	assert.Empty(t, sel.Paid, "a lone paid area is deselected, not made free")

	assert.Equal(t, "That area is no longer available.", f.press(customerID, "area:east"))
}

func TestAdSizeSelection_ReleasesUncoveredFreeAreas(t *testing.T) {
	f := newFixture(t)
	// by households north covers south; at eighth page south is worth more
	f.seed(t, customerID, &redis.UserState{Step: StepAdSize, Draft: quote.Draft{
		Product:   quote.ProductAdvertising,
		Selection: pricing.Selection{Paid: []string{"north"}, Free: []string{"south"}},
	}})

	assert.Equal(t, "Unknown size.", f.press(customerID, "size:giant"))

	f.press(customerID, "size:eighth")
	state := f.state(t, customerID)
	assert.Equal(t, StepDuration, state.Step)
	assert.Equal(t, pricing.AdSize("eighth"), state.Draft.AdSize)
	assert.Equal(t, []string{"north"}, state.Draft.Selection.Paid)
	assert.Empty(t, state.Draft.Selection.Free)
	assert.True(t, f.api.anyText(customerID, "were removed: South"))
}

func TestAdSizeSelection_KeepsCoveredFreeAreas(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{Step: StepAdSize, Draft: quote.Draft{
		Product:   quote.ProductBoth,
		Selection: pricing.Selection{Paid: []string{"north"}, Free: []string{"south"}},
	}})

	f.press(customerID, "size:quarter")
	state := f.state(t, customerID)
	assert.Equal(t, StepLeafletSize, state.Step)
	assert.Equal(t, []string{"south"}, state.Draft.Selection.Free)
}

func TestProcessCallback_StaleMenu(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{Step: StepProduct})

	assert.Equal(t, "This menu has expired.", f.press(customerID, "area:north"))
	assert.Equal(t, "What would you like to book?", f.api.lastText(customerID))
	assert.Empty(t, f.state(t, customerID).Draft.Selection.Paid)
}

func TestProductChange_ResetsDuration(t *testing.T) {
	f := newFixture(t)
	draft := completeDraft()
	f.seed(t, customerID, &redis.UserState{Step: StepProduct, Draft: draft})

	f.press(customerID, "product:leafleting")
	state := f.state(t, customerID)
	assert.Equal(t, quote.ProductLeafleting, state.Draft.Product)
	assert.Empty(t, state.Draft.AdSize)
	assert.Zero(t, state.Draft.Months)
	assert.Nil(t, state.Draft.Schedule)
	assert.Equal(t, []string{"north"}, state.Draft.Selection.Paid)
}

func TestSchedule_SameMonthsEverywhere(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{Step: StepSchedule, ScheduleArea: "north", Draft: quote.Draft{
		Product:   quote.ProductAdvertising,
		Selection: pricing.Selection{Paid: []string{"north", "south"}},
		AdSize:    "quarter",
		Months:    1,
	}})

	f.press(customerID, "month:2026-11")
	f.press(customerID, "schedule:same")

	state := f.state(t, customerID)
	assert.Equal(t, StepVoucher, state.Step)
	nov := pricing.Month{Year: 2026, Month: time.November}
	assert.Equal(t, []pricing.Month{nov}, state.Draft.Schedule["south"])
}

func TestBackAndRestart(t *testing.T) {
	f := newFixture(t)
	f.command(customerID, "/start")
	f.text(customerID, btnAgree)
	f.press(customerID, "product:both")
	assert.Equal(t, StepAreas, f.state(t, customerID).Step)

	f.text(customerID, btnBack)
	assert.Equal(t, StepProduct, f.state(t, customerID).Step)

	f.command(customerID, "/cancel")
	assert.Equal(t, StepPrivacyAgreement, f.state(t, customerID).Step)

	f.command(customerID, "/cancel")
	assert.Contains(t, f.api.lastText(customerID), "Nothing to go back to")

	f.text(customerID, btnRestart)
	state := f.state(t, customerID)
	assert.Equal(t, StepPrivacyAgreement, state.Step)
	assert.Empty(t, state.History)
}

func TestVoucherInput_Rejections(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{Step: StepVoucher, Draft: completeDraft()})

	f.text(customerID, "once")
	assert.Contains(t, f.api.lastText(customerID), "fully used")

	f.text(customerID, "SAVE10")
	f.text(customerID, "save10")
	assert.Contains(t, f.api.lastText(customerID), "already applied")
	assert.Equal(t, []string{"SAVE10"}, f.state(t, customerID).Draft.Vouchers)
}

func TestSummary_RequiresConfirm(t *testing.T) {
	f := newFixture(t)
	f.seed(t, customerID, &redis.UserState{
		Step:    StepSummary,
		Draft:   completeDraft(),
		Contact: quote.Contact{Name: "Jane", Phone: "+447700900123"},
	})

	f.text(customerID, "ok")
	assert.Contains(t, f.api.lastText(customerID), "to send your quote")

	quotes, err := f.repo.ListQuotes(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestUnknownInput(t *testing.T) {
	f := newFixture(t)

	f.text(customerID, "hello")
	assert.Contains(t, f.api.lastText(customerID), "Send /start")

	f.command(customerID, "/frobnicate")
	assert.Contains(t, f.api.lastText(customerID), "Unknown command")

	f.command(customerID, "/stats")
	assert.Contains(t, f.api.lastText(customerID), "Unknown command")
}

func TestStart_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Start(ctx) }()

	f.api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: customerID},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Length: 5}},
	}}
	require.Eventually(t, func() bool { return f.api.anyText(customerID, "/start - Start a new quote") },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, f.api.stopped)
}
