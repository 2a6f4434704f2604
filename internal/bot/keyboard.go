package bot

import (
	"fmt"
	"slices"

	"adportal/internal/pricing"
	"adportal/internal/quote"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// BOT KEYBOARDS

const monthsPerRow = 3

func callbackData(prefix, value string) string {
	return prefix + ":" + value
}

func privacyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAgree),
		),
	)
}

func navigationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBack),
			tgbotapi.NewKeyboardButton(btnRestart),
		),
	)
}

func voucherKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnContinue),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBack),
			tgbotapi.NewKeyboardButton(btnRestart),
		),
	)
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(btnShareTel),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnTypeIt),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBack),
		),
	)
}

func summaryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBack),
			tgbotapi.NewKeyboardButton(btnRestart),
		),
	)
}

func productKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range []quote.Product{quote.ProductAdvertising, quote.ProductLeafleting, quote.ProductBoth} {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Title(), callbackData(cbProduct, string(p))),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func areasKeyboard(areas []pricing.Area, sel *pricing.AreaSelector) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(areas)+1)
	for _, a := range areas {
		label := fmt.Sprintf("%s · %s homes", a.Name, formatCount(a.Households))
		switch sel.Kind(a.ID) {
		case pricing.KindPaid:
			label = "✅ " + label
		case pricing.KindFree:
			label = "🎁 " + label + " (free)"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbArea, a.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Done ✔️", callbackData(cbAreas, cbDone)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// sizeOption is an advert size with its per-issue cost for the paid areas.
type sizeOption struct {
	Size     pricing.SizeOption
	PerIssue decimal.Decimal
}

// adSizeOptions lists the sizes every paid area has a price for.
func adSizeOptions(card *pricing.RateCard, paid []pricing.Area) []sizeOption {
	var out []sizeOption
	for _, s := range card.AdSizes {
		total := decimal.Zero
		ok := true
		for _, a := range paid {
			p, priced := a.Price(s.Code)
			if !priced {
				ok = false
				break
			}
			total = total.Add(p)
		}
		if ok {
			out = append(out, sizeOption{Size: s, PerIssue: total})
		}
	}
	return out
}

func adSizeKeyboard(card *pricing.RateCard, options []sizeOption) tgbotapi.InlineKeyboardMarkup {
	symbol := pricing.CurrencySymbol(card.Currency)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		label := fmt.Sprintf("%s · %s", o.Size.Name, pricing.FormatMoney(symbol, o.PerIssue))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbSize, string(o.Size.Code))),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func leafletSizeKeyboard(card *pricing.RateCard) tgbotapi.InlineKeyboardMarkup {
	symbol := pricing.CurrencySymbol(card.Currency)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(card.LeafletSizes))
	for _, s := range card.LeafletSizes {
		label := fmt.Sprintf("%s · %s", s.Name, pricing.FormatMoney(symbol, s.PricePerThousand))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbLeaflet, s.Code)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// durationOptions lists the campaign lengths for product. A combined booking
// runs adverts and leaflets for the same number of months, so only lengths
// both tables offer are listed; the percent shown is the advertising one.
func durationOptions(card *pricing.RateCard, product quote.Product) []pricing.DurationOption {
	switch product {
	case quote.ProductAdvertising:
		return card.Durations
	case quote.ProductLeafleting:
		return card.LeafletDurations
	}
	var out []pricing.DurationOption
	for _, d := range card.Durations {
		if slices.ContainsFunc(card.LeafletDurations, func(l pricing.DurationOption) bool { return l.Months == d.Months }) {
			out = append(out, d)
		}
	}
	return out
}

func durationKeyboard(options []pricing.DurationOption) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		label := fmt.Sprintf("%d month", o.Months)
		if o.Months > 1 {
			label += "s"
		}
		if o.Percent.IsPositive() {
			label += fmt.Sprintf(" · %s%% off", o.Percent.String())
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbDuration, fmt.Sprint(o.Months))),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func monthsKeyboard(bookable, chosen []pricing.Month, multipleAreas bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range bookable {
		label := m.Label()
		if slices.Contains(chosen, m) {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbMonth, m.String())))
		if len(row) == monthsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	actions := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Next ➡️", callbackData(cbSchedule, "next")),
	)
	if multipleAreas {
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("Same months everywhere", callbackData(cbSchedule, "same")))
	}
	rows = append(rows, actions)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// adminStatusKeyboard offers the statuses q may move to next.
func adminStatusKeyboard(q *quote.Quote) (tgbotapi.InlineKeyboardMarkup, bool) {
	var row []tgbotapi.InlineKeyboardButton
	for _, st := range []quote.Status{quote.StatusContacted, quote.StatusBooked, quote.StatusCancelled} {
		if q.Status.CanTransition(st) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				statusLabel(st),
				callbackData(cbStatus, fmt.Sprintf("%d:%s", q.ID, st)),
			))
		}
	}
	if len(row) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}
