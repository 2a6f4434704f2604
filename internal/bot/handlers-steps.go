package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) handlePrivacyAgreement(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message) {
	if msg.Text != btnAgree {
		b.sendError(msg.Chat.ID, fmt.Sprintf("Please tap %q to continue.", btnAgree))
		return
	}
	state.PrivacyAccepted = true
	b.sendText(msg.Chat.ID, "Thanks! Use "+btnBack+" at any time to change an earlier answer.", navigationKeyboard())
	b.advance(ctx, msg.Chat.ID, state, StepProduct)
}

func (b *Bot) askProduct(chatID int64) {
	b.sendText(chatID, "What would you like to book?", productKeyboard())
}

func (b *Bot) handleProductSelection(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string {
	p := quote.Product(value)
	if !p.Valid() {
		return "Unknown option."
	}

	d := &state.Draft
	if d.Product != p {
		d.Product = p
		if !p.HasAdvertising() {
			d.AdSize = ""
		}
		if !p.HasLeafleting() {
			d.LeafletSize = ""
		}
		d.Months = 0
		d.Schedule = nil
	}
	b.advance(ctx, cb.Message.Chat.ID, state, StepAreas)
	return p.Title()
}

func (b *Bot) askAreas(ctx context.Context, chatID int64, state *redis.UserState) {
	sel, areas, ok := b.selector(ctx, chatID, state)
	if !ok {
		return
	}
	b.sendText(chatID, b.areasText(sel), areasKeyboard(areas, sel))
}

// selector rebuilds the area selector for the draft and stores any areas the
// catalog no longer supports.
func (b *Bot) selector(ctx context.Context, chatID int64, state *redis.UserState) (*pricing.AreaSelector, []pricing.Area, bool) {
	sel, dropped, err := b.quotes.Selector(ctx, state.Draft)
	if err == nil {
		var areas []pricing.Area
		areas, err = b.quotes.Catalog(ctx)
		if err == nil {
			if len(dropped) > 0 {
				state.Draft.Selection = sel.Selection()
				state.Draft.Schedule.Retain(state.Draft.Selection)
				b.saveState(ctx, chatID, state)
			}
			return sel, areas, true
		}
	}

	b.logger.Error("Failed to load areas",
		zap.Int64("chat_id", chatID),
		zap.Error(err))
	b.sendError(chatID, "Could not load the distribution areas, please try again later.")
	return nil, nil, false
}

func (b *Bot) areasText(sel *pricing.AreaSelector) string {
	var sb strings.Builder
	sb.WriteString("📍 Tap the areas you want.")
	if b.quotes.RateCard().BOGOFEnabled {
		sb.WriteString("\n🎁 Buy one get one free: tap a selected area again to take it free. Every free area needs its own paid area of equal or higher value.")
	}
	s := sel.Selection()
	fmt.Fprintf(&sb, "\n\nSelected: %d paid, %d free.", len(s.Paid), len(s.Free))
	return sb.String()
}

func (b *Bot) handleAreaToggle(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, id string) string {
	chatID := cb.Message.Chat.ID
	sel, areas, ok := b.selector(ctx, chatID, state)
	if !ok {
		return ""
	}

	var notice string
	var released []string
	switch sel.Kind(id) {
	case pricing.KindNone:
		if err := sel.Select(id, pricing.KindPaid); err != nil {
			return "That area is no longer available."
		}
	case pricing.KindPaid:
		if b.quotes.RateCard().BOGOFEnabled && sel.Select(id, pricing.KindFree) == nil {
			notice = "Added free 🎁"
		} else {
			released = sel.Deselect(id)
		}
	case pricing.KindFree:
		sel.Deselect(id)
	}
	if len(released) > 0 {
		notice = fmt.Sprintf("No longer free: %s", strings.Join(areaNames(areas, released), ", "))
	}

	state.Draft.Selection = sel.Selection()
	state.Draft.Schedule.Retain(state.Draft.Selection)
	if !b.saveState(ctx, chatID, state) {
		return ""
	}

	b.sendMessage(tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, b.areasText(sel), areasKeyboard(areas, sel)))
	return notice
}

func (b *Bot) handleAreasDone(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, _ string) string {
	if len(state.Draft.Selection.Paid) == 0 {
		return "Pick at least one area."
	}
	next := StepLeafletSize
	if state.Draft.Product.HasAdvertising() {
		next = StepAdSize
	}
	b.advance(ctx, cb.Message.Chat.ID, state, next)
	return ""
}

func (b *Bot) askAdSize(ctx context.Context, chatID int64, state *redis.UserState) {
	areas, err := b.quotes.Catalog(ctx)
	if err != nil {
		b.logger.Error("Failed to load areas", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendError(chatID, "Could not load prices, please try again later.")
		return
	}

	card := b.quotes.RateCard()
	paid := selectedAreas(areas, state.Draft.Selection.Paid)
	options := adSizeOptions(card, paid)
	if len(options) == 0 {
		b.sendError(chatID, "No advert size is available in every area you picked. Tap "+btnBack+" to change your areas.")
		return
	}
	b.sendText(chatID, "📐 Which advert size? Prices are per issue for your paid areas, before discounts.", adSizeKeyboard(card, options))
}

func (b *Bot) handleAdSizeSelection(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string {
	chatID := cb.Message.Chat.ID
	size := pricing.AdSize(value)
	if _, ok := b.quotes.RateCard().AdSize(size); !ok {
		return "Unknown size."
	}

	sel, areas, ok := b.selector(ctx, chatID, state)
	if !ok {
		return ""
	}
	state.Draft.AdSize = size
	if released := sel.SetSize(size); len(released) > 0 {
		state.Draft.Selection = sel.Selection()
		state.Draft.Schedule.Retain(state.Draft.Selection)
		b.sendText(chatID, fmt.Sprintf("ℹ️ At this size these areas are no longer covered by a paid area and were removed: %s",
			strings.Join(areaNames(areas, released), ", ")), nil)
	}

	next := StepDuration
	if state.Draft.Product.HasLeafleting() {
		next = StepLeafletSize
	}
	b.advance(ctx, chatID, state, next)
	return ""
}

func (b *Bot) askLeafletSize(ctx context.Context, chatID int64, state *redis.UserState) {
	b.sendText(chatID, "📄 Which leaflet size? Prices are per 1,000 households per drop.", leafletSizeKeyboard(b.quotes.RateCard()))
}

func (b *Bot) handleLeafletSizeSelection(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string {
	if _, ok := b.quotes.RateCard().LeafletSize(value); !ok {
		return "Unknown size."
	}
	state.Draft.LeafletSize = value
	b.advance(ctx, cb.Message.Chat.ID, state, StepDuration)
	return ""
}

func (b *Bot) askDuration(ctx context.Context, chatID int64, state *redis.UserState) {
	options := durationOptions(b.quotes.RateCard(), state.Draft.Product)
	b.sendText(chatID, "🗓 How many months should the campaign run in each area?", durationKeyboard(options))
}

func (b *Bot) handleDurationSelection(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string {
	months, err := strconv.Atoi(value)
	options := durationOptions(b.quotes.RateCard(), state.Draft.Product)
	if err != nil || !slices.ContainsFunc(options, func(o pricing.DurationOption) bool { return o.Months == months }) {
		return "Unknown option."
	}

	d := &state.Draft
	d.Months = months
	for id, ms := range d.Schedule {
		if len(ms) > months {
			d.Schedule[id] = ms[:months]
		}
	}
	state.ScheduleArea = ""
	b.advance(ctx, cb.Message.Chat.ID, state, StepSchedule)
	return ""
}

func (b *Bot) askSchedule(ctx context.Context, chatID int64, state *redis.UserState) {
	d := &state.Draft
	selected := slices.Concat(d.Selection.Paid, d.Selection.Free)
	if !slices.Contains(selected, state.ScheduleArea) {
		state.ScheduleArea = nextScheduleArea(d, selected, "")
		if state.ScheduleArea == "" && len(selected) > 0 {
			state.ScheduleArea = selected[0]
		}
		if !b.saveState(ctx, chatID, state) {
			return
		}
	}

	if text, ok := b.priceText(ctx, chatID, *d); ok {
		b.sendText(chatID, text, nil)
	}
	b.sendScheduleKeyboard(ctx, chatID, 0, state)
}

// sendScheduleKeyboard sends the month picker, or edits messageID in place
// when it is not zero.
func (b *Bot) sendScheduleKeyboard(ctx context.Context, chatID int64, messageID int, state *redis.UserState) {
	areas, err := b.quotes.Catalog(ctx)
	if err != nil {
		b.logger.Error("Failed to load areas", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendError(chatID, "Could not load the distribution areas, please try again later.")
		return
	}

	d := state.Draft
	area := state.ScheduleArea
	name := strings.Join(areaNames(areas, []string{area}), "")
	text := fmt.Sprintf("📅 %s: pick %d month(s). %d left to pick.", name, d.Months, d.Schedule.Remaining(area, d.Months))

	bookable := pricing.BookableMonths(b.quotes.RateCard(), b.quotes.Now())
	multi := d.Selection.Count() > 1
	markup := monthsKeyboard(bookable, d.Schedule[area], multi)

	if messageID != 0 {
		b.sendMessage(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup))
		return
	}
	b.sendText(chatID, text, markup)
}

func (b *Bot) handleMonthToggle(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, value string) string {
	chatID := cb.Message.Chat.ID
	m, err := pricing.ParseMonth(value)
	if err != nil {
		return "Unknown month."
	}
	if !slices.Contains(pricing.BookableMonths(b.quotes.RateCard(), b.quotes.Now()), m) {
		return "That month can no longer be booked."
	}

	d := &state.Draft
	if d.Schedule == nil {
		d.Schedule = pricing.Schedule{}
	}
	if err := d.Schedule.Toggle(state.ScheduleArea, m, d.Months); err != nil {
		if errors.Is(err, pricing.ErrAllowanceExceeded) {
			return fmt.Sprintf("You already picked %d month(s) here. Tap a picked month to remove it.", d.Months)
		}
		return "Could not pick that month."
	}
	if !b.saveState(ctx, chatID, state) {
		return ""
	}
	b.sendScheduleKeyboard(ctx, chatID, cb.Message.MessageID, state)
	return ""
}

func (b *Bot) handleScheduleAction(ctx context.Context, state *redis.UserState, cb *tgbotapi.CallbackQuery, action string) string {
	chatID := cb.Message.Chat.ID
	d := &state.Draft
	current := state.ScheduleArea
	if left := d.Schedule.Remaining(current, d.Months); left > 0 {
		return fmt.Sprintf("Pick %d more month(s) first.", left)
	}

	selected := slices.Concat(d.Selection.Paid, d.Selection.Free)
	if action == "same" {
		for _, id := range selected {
			d.Schedule[id] = slices.Clone(d.Schedule[current])
		}
	}

	if next := nextScheduleArea(d, selected, current); next != "" {
		state.ScheduleArea = next
		if b.saveState(ctx, chatID, state) {
			b.sendScheduleKeyboard(ctx, chatID, 0, state)
		}
		return ""
	}

	d.Schedule.Retain(d.Selection)
	if err := b.quotes.ValidateSchedule(*d, true); err != nil {
		var sv *pricing.ScheduleViolations
		if !errors.As(err, &sv) || len(sv.Violations) == 0 {
			b.logger.Error("Failed to validate schedule", zap.Int64("chat_id", chatID), zap.Error(err))
			return "Something went wrong."
		}
		for _, v := range sv.Violations {
			if v.Month != "" {
				if m, err := pricing.ParseMonth(v.Month); err == nil {
					_ = d.Schedule.Toggle(v.AreaID, m, d.Months)
				}
			}
		}
		state.ScheduleArea = sv.Violations[0].AreaID
		if b.saveState(ctx, chatID, state) {
			b.sendError(chatID, "Some months can no longer be booked and were removed, please pick again.")
			b.sendScheduleKeyboard(ctx, chatID, 0, state)
		}
		return ""
	}

	state.ScheduleArea = ""
	b.advance(ctx, chatID, state, StepVoucher)
	return ""
}

// nextScheduleArea returns the first area after current that still needs
// months, wrapping around.
func nextScheduleArea(d *quote.Draft, selected []string, current string) string {
	start := slices.Index(selected, current) + 1
	for i := range selected {
		id := selected[(start+i)%len(selected)]
		if id != current && d.Schedule.Remaining(id, d.Months) > 0 {
			return id
		}
	}
	return ""
}

func (b *Bot) askVoucher(ctx context.Context, chatID int64, state *redis.UserState) {
	if text, ok := b.priceText(ctx, chatID, state.Draft); ok {
		b.sendText(chatID, text, nil)
	}

	text := "🏷 Got a voucher code? Type it now, or tap " + btnContinue + "."
	if len(state.Draft.Vouchers) > 0 {
		text = fmt.Sprintf("🏷 Vouchers applied: %s. Type another code, or tap %s.",
			strings.Join(state.Draft.Vouchers, ", "), btnContinue)
	}
	b.sendText(chatID, text, voucherKeyboard())
}

func (b *Bot) handleVoucherInput(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.Text == btnContinue {
		b.advance(ctx, chatID, state, StepContact)
		return
	}

	code := pricing.NormalizeCode(msg.Text)
	switch {
	case code == "" || len(code) > 64:
		b.sendError(chatID, "Please type a voucher code.")
		return
	case slices.Contains(state.Draft.Vouchers, code):
		b.sendError(chatID, "That voucher is already applied.")
		return
	case len(state.Draft.Vouchers) >= maxVoucherCodes:
		b.sendError(chatID, fmt.Sprintf("You can use at most %d vouchers.", maxVoucherCodes))
		return
	}

	draft := state.Draft
	draft.Vouchers = append(slices.Clone(draft.Vouchers), code)
	price, err := b.quotes.PriceDraft(ctx, draft)
	if errors.Is(err, pricing.ErrVoucherNotStackable) {
		b.sendError(chatID, "That voucher can't be combined with other vouchers.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to price voucher",
			zap.Int64("chat_id", chatID),
			zap.String("code", code),
			zap.Error(err))
		b.sendError(chatID, "Could not check that voucher, please try again.")
		return
	}

	if reason, applied := voucherOutcome(price, code); !applied {
		b.sendError(chatID, voucherReasonText(reason))
		return
	}

	state.Draft = draft
	if !b.saveState(ctx, chatID, state) {
		return
	}
	b.sendText(chatID, "✅ Voucher "+code+" applied.", nil)
	b.renderStep(ctx, chatID, state)
}

func (b *Bot) askContact(chatID int64) {
	b.sendText(chatID, "📞 How can our sales team reach you? Share your phone number or type a phone number or email address.", contactKeyboard())
}

func (b *Bot) handleSharedContact(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
	if name == "" {
		name = senderName(msg.From)
	}
	b.setContact(ctx, state, msg.Chat.ID, quote.Contact{Name: name, Phone: msg.Contact.PhoneNumber})
}

func (b *Bot) handleContactInput(ctx context.Context, state *redis.UserState, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == btnTypeIt {
		b.sendText(chatID, "Type your phone number or email address.", nil)
		return
	}

	c := quote.Contact{Name: senderName(msg.From)}
	if strings.Contains(text, "@") {
		c.Email = text
	} else {
		c.Phone = text
	}
	b.setContact(ctx, state, chatID, c)
}

func (b *Bot) setContact(ctx context.Context, state *redis.UserState, chatID int64, c quote.Contact) {
	if err := b.quotes.ValidateContact(&c); err != nil {
		b.sendError(chatID, "That doesn't look like a valid phone number or email address. Please try again.")
		return
	}
	state.Contact = c
	b.advance(ctx, chatID, state, StepSummary)
}

// priceText prices the draft for display. It reports false when the draft
// can't be priced yet.
func (b *Bot) priceText(ctx context.Context, chatID int64, d quote.Draft) (string, bool) {
	price, err := b.quotes.PriceDraft(ctx, d)
	if err != nil {
		if !quote.IsUserError(err) {
			b.logger.Error("Failed to price draft",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
		return "", false
	}
	return "💷 Your price so far:\n\n" + formatBreakdown(b.quotes.RateCard(), price), true
}

func senderName(u *tgbotapi.User) string {
	if u == nil {
		return "Telegram user"
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	if name == "" {
		return "Telegram user"
	}
	return name
}
