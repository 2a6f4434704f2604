package pricing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRateCard(t *testing.T) {
	card := testCard(t)

	assert.Equal(t, "GBP", card.Currency)
	assertMoney(t, "0.2", card.VATRate, "vat")
	assert.True(t, card.BOGOFEnabled)

	tests := []struct {
		areas int
		want  string
	}{
		{0, "0"}, {1, "0"}, {2, "5"}, {3, "5"}, {4, "10"}, {9, "15"}, {10, "20"}, {40, "20"},
	}
	for _, tt := range tests {
		assertMoney(t, tt.want, card.VolumePercent(tt.areas), "volume tier")
	}

	pct, err := card.DurationPercent(12)
	require.NoError(t, err)
	assertMoney(t, "15", pct, "12 months")

	_, err = card.DurationPercent(5)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	pct, err = card.LeafletDurationPercent(3)
	require.NoError(t, err)
	assertMoney(t, "7.5", pct, "3 drops")
}

func TestLoadRateCard_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"vat too high", `vat_rate: "1.5"`},
		{"no durations", `vat_rate: "0.2"`},
		{"negative percent", `
vat_rate: "0.2"
durations: [{months: 1, percent: "-5"}]
leaflet_durations: [{months: 1, percent: "0"}]
booking_horizon_months: 6`},
		{"duplicate tier", `
vat_rate: "0.2"
volume_tiers: [{min_areas: 2, percent: "5"}, {min_areas: 2, percent: "10"}]
durations: [{months: 1, percent: "0"}]
leaflet_durations: [{months: 1, percent: "0"}]
booking_horizon_months: 6`},
		{"unknown field", `vat_ratee: "0.2"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRateCard(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRateCardFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency: EUR
vat_rate: "0.23"
durations: [{months: 6, percent: "10"}, {months: 1, percent: "0"}]
leaflet_durations: [{months: 1, percent: "0"}]
booking_horizon_months: 6
`), 0o600))

	card, err := LoadRateCardFile(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", card.Currency)
	assert.Equal(t, 1, card.Durations[0].Months, "durations are sorted")

	_, err = LoadRateCardFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "£0.00", FormatMoney("£", d("0")))
	assert.Equal(t, "£999.00", FormatMoney("£", d("999")))
	assert.Equal(t, "£1,234.50", FormatMoney("£", d("1234.5")))
	assert.Equal(t, "£1,234,567.89", FormatMoney("£", d("1234567.891")))
	assert.Equal(t, "-£12.50", FormatMoney("£", d("-12.5")))
	assert.Equal(t, "€", CurrencySymbol("eur"))
}
