package bot

import (
	"fmt"
	"slices"
	"strings"

	"adportal/internal/pricing"
	"adportal/internal/quote"

	"github.com/shopspring/decimal"
)

const timeLayout = "02 Jan 2006 15:04"

// formatCount renders 12500 as "12,500".
func formatCount(n int) string {
	s := pricing.FormatMoney("", decimal.NewFromInt(int64(n)))
	return strings.TrimSuffix(s, ".00")
}

func areaNames(areas []pricing.Area, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(areas, func(a pricing.Area) bool { return a.ID == id })
		if i < 0 {
			out = append(out, id)
			continue
		}
		out = append(out, areas[i].Name)
	}
	return out
}

func selectedAreas(areas []pricing.Area, ids []string) []pricing.Area {
	out := make([]pricing.Area, 0, len(ids))
	for _, a := range areas {
		if slices.Contains(ids, a.ID) {
			out = append(out, a)
		}
	}
	return out
}

func lineTitle(p pricing.Product) string {
	switch p {
	case pricing.ProductAdvertising:
		return "📰 Advertising"
	case pricing.ProductLeafleting:
		return "📬 Leaflet distribution"
	}
	return string(p)
}

// formatBreakdown lists every product line and the combined total.
func formatBreakdown(card *pricing.RateCard, q pricing.Quote) string {
	symbol := pricing.CurrencySymbol(card.Currency)

	var sb strings.Builder
	for _, b := range []*pricing.Breakdown{q.Advertising, q.Leafleting} {
		if b == nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(lineTitle(b.Product) + "\n")
		for _, l := range b.Lines() {
			fmt.Fprintf(&sb, "%s: %s\n", l.Label, pricing.FormatMoney(symbol, l.Amount))
		}
		for _, r := range b.Rejected {
			fmt.Fprintf(&sb, "Voucher %s not applied: %s\n", r.Code, voucherReasonText(r.Reason))
		}
		fmt.Fprintf(&sb, "Reach: %s homes per month\n", formatCount(b.Circulation))
	}

	if q.Advertising != nil && q.Leafleting != nil {
		fmt.Fprintf(&sb, "\n💷 Quote total: %s (%s + %s VAT)\n",
			pricing.FormatMoney(symbol, q.Total),
			pricing.FormatMoney(symbol, q.Net),
			pricing.FormatMoney(symbol, q.VAT))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSchedule(areas []pricing.Area, s pricing.Schedule, order []string) string {
	var sb strings.Builder
	for _, id := range order {
		months := s[id]
		labels := make([]string, 0, len(months))
		for _, m := range months {
			labels = append(labels, m.Label())
		}
		fmt.Fprintf(&sb, "• %s: %s\n", strings.Join(areaNames(areas, []string{id}), ""), strings.Join(labels, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSummary(card *pricing.RateCard, areas []pricing.Area, d quote.Draft, c quote.Contact, price pricing.Quote) string {
	var sb strings.Builder
	sb.WriteString("📋 Your quote\n\n")
	fmt.Fprintf(&sb, "Product: %s\n", d.Product.Title())
	fmt.Fprintf(&sb, "Areas: %s\n", strings.Join(areaNames(areas, d.Selection.Paid), ", "))
	if len(d.Selection.Free) > 0 {
		fmt.Fprintf(&sb, "Free areas 🎁: %s\n", strings.Join(areaNames(areas, d.Selection.Free), ", "))
	}
	if d.Product.HasAdvertising() {
		name := string(d.AdSize)
		if s, ok := card.AdSize(d.AdSize); ok {
			name = s.Name
		}
		fmt.Fprintf(&sb, "Advert size: %s\n", name)
	}
	if d.Product.HasLeafleting() {
		name := d.LeafletSize
		if s, ok := card.LeafletSize(d.LeafletSize); ok {
			name = s.Name
		}
		fmt.Fprintf(&sb, "Leaflet size: %s\n", name)
	}
	fmt.Fprintf(&sb, "Months: %d\n", d.Months)
	if len(d.Schedule) > 0 {
		sb.WriteString("\n📅 Schedule\n")
		sb.WriteString(formatSchedule(areas, d.Schedule, slices.Concat(d.Selection.Paid, d.Selection.Free)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(formatBreakdown(card, price))
	fmt.Fprintf(&sb, "\n\n📞 Contact: %s", c.Display())
	return sb.String()
}

// voucherOutcome reports whether code was applied to any line of q and, when
// it was not, why.
func voucherOutcome(q pricing.Quote, code string) (string, bool) {
	reason := ""
	for _, b := range []*pricing.Breakdown{q.Advertising, q.Leafleting} {
		if b == nil {
			continue
		}
		for _, v := range b.Vouchers {
			if v.Code == code {
				return "", true
			}
		}
		for _, r := range b.Rejected {
			if r.Code == code {
				reason = r.Reason
			}
		}
	}
	if reason == "" {
		reason = pricing.VoucherWrongProduct
	}
	return reason, false
}

func voucherReasonText(reason string) string {
	switch reason {
	case quote.VoucherUnknown:
		return "we don't recognise that voucher code"
	case pricing.VoucherInactive:
		return "that voucher is no longer active"
	case pricing.VoucherNotStarted:
		return "that voucher can't be used yet"
	case pricing.VoucherExpired:
		return "that voucher has expired"
	case pricing.VoucherUsageLimit:
		return "that voucher has been fully used"
	case pricing.VoucherWrongProduct:
		return "that voucher isn't valid for this product"
	case pricing.VoucherBelowMin:
		return "your order is below the voucher's minimum spend"
	case pricing.VoucherUnsupported:
		return "that voucher can't be used online, please contact us"
	}
	return "that voucher can't be used"
}

func statusLabel(s quote.Status) string {
	switch s {
	case quote.StatusNew:
		return "🆕 New"
	case quote.StatusContacted:
		return "📞 Contacted"
	case quote.StatusBooked:
		return "✅ Booked"
	case quote.StatusCancelled:
		return "❌ Cancelled"
	}
	return string(s)
}

func formatQuoteNotification(card *pricing.RateCard, q *quote.Quote) string {
	symbol := pricing.CurrencySymbol(card.Currency)
	d := q.Draft

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 New quote #%d (%s)\n\n", q.ID, q.Source)
	fmt.Fprintf(&sb, "Product: %s\n", d.Product.Title())
	fmt.Fprintf(&sb, "Areas: %s\n", strings.Join(d.Selection.Paid, ", "))
	if len(d.Selection.Free) > 0 {
		fmt.Fprintf(&sb, "Free areas: %s\n", strings.Join(d.Selection.Free, ", "))
	}
	if d.AdSize != "" {
		fmt.Fprintf(&sb, "Advert size: %s\n", d.AdSize)
	}
	if d.LeafletSize != "" {
		fmt.Fprintf(&sb, "Leaflet size: %s\n", d.LeafletSize)
	}
	fmt.Fprintf(&sb, "Months: %d\n", d.Months)
	if len(d.Vouchers) > 0 {
		fmt.Fprintf(&sb, "Vouchers: %s\n", strings.Join(d.Vouchers, ", "))
	}
	sb.WriteString("──────────────────\n")
	for _, l := range q.Lines() {
		fmt.Fprintf(&sb, "%s: %s\n", l.Label, pricing.FormatMoney(symbol, l.Amount))
	}
	fmt.Fprintf(&sb, "Quote total: %s\n", pricing.FormatMoney(symbol, q.Price.Total))
	sb.WriteString("──────────────────\n")
	fmt.Fprintf(&sb, "Contact: %s\n", q.Contact.Display())
	fmt.Fprintf(&sb, "Status: %s\n", statusLabel(q.Status))
	fmt.Fprintf(&sb, "Reference: %s\n", q.Ref)
	fmt.Fprintf(&sb, "Date: %s", q.CreatedAt.Format(timeLayout))
	if !q.Synced {
		sb.WriteString("\n⚠️ Not yet synced to the backend")
	}
	return sb.String()
}

func formatChannelNotification(card *pricing.RateCard, q *quote.Quote) string {
	symbol := pricing.CurrencySymbol(card.Currency)
	return fmt.Sprintf(
		"📦 New quote #%d\n"+
			"%s in %d area(s) for %d month(s)\n"+
			"Total: %s",
		q.ID,
		q.Draft.Product.Title(), q.Draft.Selection.Count(), q.Draft.Months,
		pricing.FormatMoney(symbol, q.Price.Total),
	)
}

func formatStatusChange(card *pricing.RateCard, q *quote.Quote) string {
	text := fmt.Sprintf("ℹ️ Your quote #%d is now: %s", q.ID, statusLabel(q.Status))
	switch q.Status {
	case quote.StatusBooked:
		text += fmt.Sprintf("\nTotal: %s. Thank you for booking with us!",
			pricing.FormatMoney(pricing.CurrencySymbol(card.Currency), q.Price.Total))
	case quote.StatusCancelled:
		text += "\nSend /start whenever you'd like a new quote."
	}
	return text
}

func formatStats(card *pricing.RateCard, s *quote.Stats) string {
	symbol := pricing.CurrencySymbol(card.Currency)
	money := func(d decimal.Decimal) string { return pricing.FormatMoney(symbol, d) }

	return fmt.Sprintf(
		"📊 Quote statistics\n\n"+
			"📌 Total quotes: %d\n"+
			"💰 Total value: %s\n"+
			"📅 Today: %d (%s)\n"+
			"📅 Last 7 days: %d (%s)\n"+
			"📅 Last 30 days: %d (%s)\n"+
			"✅ Booked value: %s\n\n"+
			"By status:\n"+
			"%s: %d\n"+
			"%s: %d\n"+
			"%s: %d\n"+
			"%s: %d\n\n"+
			"⚠️ Unsynced: %d",
		s.TotalQuotes, money(s.TotalValue),
		s.TodayQuotes, money(s.TodayValue),
		s.WeekQuotes, money(s.WeekValue),
		s.MonthQuotes, money(s.MonthValue),
		money(s.BookedValue),
		statusLabel(quote.StatusNew), s.StatusCounts[quote.StatusNew],
		statusLabel(quote.StatusContacted), s.StatusCounts[quote.StatusContacted],
		statusLabel(quote.StatusBooked), s.StatusCounts[quote.StatusBooked],
		statusLabel(quote.StatusCancelled), s.StatusCounts[quote.StatusCancelled],
		s.Unsynced,
	)
}
