package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adportal/internal/pricing"
	"adportal/pkg/api"
)

// APIBackend pushes quotes to the hosted backend over its REST API.
type APIBackend struct {
	client *api.Client
}

func NewAPIBackend(client *api.Client) *APIBackend {
	return &APIBackend{client: client}
}

func (b *APIBackend) PushQuote(ctx context.Context, q *Quote) (string, error) {
	accountID, err := b.client.UpsertAccount(ctx, api.Account{
		ExternalID: accountKey(q),
		Name:       q.Contact.Name,
		Company:    q.Contact.Company,
		Email:      q.Contact.Email,
		Phone:      q.Contact.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("upsert account: %w", err)
	}

	id, err := b.client.CreateQuote(ctx, quoteRequest(q, accountID))
	if err != nil {
		return "", fmt.Errorf("create quote: %w", err)
	}
	return id, nil
}

// accountKey identifies the customer across quotes: Telegram chat first,
// then email, then phone.
func accountKey(q *Quote) string {
	switch {
	case q.ChatID != 0:
		return fmt.Sprintf("tg-%d", q.ChatID)
	case q.Contact.Email != "":
		return "email-" + q.Contact.Email
	default:
		return "phone-" + strings.TrimPrefix(q.Contact.Phone, "+")
	}
}

func quoteRequest(q *Quote, accountID string) api.QuoteRequest {
	req := api.QuoteRequest{
		Reference: q.Ref,
		AccountID: accountID,
		Product:   string(q.Draft.Product),
		Areas:     q.Draft.Selection.Paid,
		FreeAreas: q.Draft.Selection.Free,
		Months:    q.Draft.Months,
		Schedule:  make(map[string][]string, len(q.Draft.Schedule)),
		Net:       q.Price.Net.StringFixed(2),
		VAT:       q.Price.VAT.StringFixed(2),
		Total:     q.Price.Total.StringFixed(2),
		Status:    string(q.Status),
		CreatedAt: q.CreatedAt,
	}
	if q.Draft.Product.HasAdvertising() {
		req.AdSize = string(q.Draft.AdSize)
	}
	if q.Draft.Product.HasLeafleting() {
		req.Leaflet = q.Draft.LeafletSize
	}
	for area, months := range q.Draft.Schedule {
		for _, m := range months {
			req.Schedule[area] = append(req.Schedule[area], m.String())
		}
	}
	for _, b := range []*pricing.Breakdown{q.Price.Advertising, q.Price.Leafleting} {
		if b == nil {
			continue
		}
		req.Currency = b.Currency
		for _, v := range b.Vouchers {
			req.Vouchers = append(req.Vouchers, v.Code)
		}
		for _, l := range b.Lines() {
			req.Lines = append(req.Lines, api.QuoteLine{
				Label:  fmt.Sprintf("%s: %s", b.Product, l.Label),
				Amount: l.Amount.StringFixed(2),
			})
		}
	}
	return req
}

// isTemporary treats every failure as retryable except a backend response
// that says otherwise.
func isTemporary(err error) bool {
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
