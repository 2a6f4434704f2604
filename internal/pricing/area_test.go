package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaSelector(t *testing.T) {
	s := NewAreaSelector(pick("north", "south", "east", "west"), true)

	require.NoError(t, s.Select("north", KindPaid))
	require.NoError(t, s.Select("south", KindFree), "valued by households before a size is chosen")
	assert.Empty(t, s.SetSize("quarter"))

	err := s.Select("east", KindFree)
	require.ErrorIs(t, err, ErrNoBOGOFMatch, "one paid area covers one free area")
	assert.Equal(t, KindNone, s.Kind("east"))

	require.NoError(t, s.Select("west", KindPaid))
	require.NoError(t, s.Select("east", KindFree))
	assert.Equal(t, 4, s.Len())

	released := s.Deselect("west")
	assert.Equal(t, []string{"east"}, released, "newest free area goes first")
	assert.Equal(t, KindFree, s.Kind("south"))

	released = s.Deselect("north")
	assert.Equal(t, []string{"south"}, released)
	assert.Zero(t, s.Len())

	err = s.Select("nowhere", KindPaid)
	assert.ErrorIs(t, err, ErrUnknownArea)
}

func TestAreaSelector_PromoteFreeToPaid(t *testing.T) {
	s := NewAreaSelector(pick("north", "south"), true)
	require.NoError(t, s.Select("north", KindPaid))
	require.NoError(t, s.Select("south", KindFree))

	require.NoError(t, s.Select("south", KindPaid))
	sel := s.Selection()
	assert.Equal(t, []string{"north", "south"}, sel.Paid)
	assert.Empty(t, sel.Free)
}

func TestAreaSelector_SetSizeReleases(t *testing.T) {
	big := Area{ID: "big", Households: 5000, Prices: map[AdSize]decimal.Decimal{"quarter": d("50")}}
	pricey := Area{ID: "pricey", Households: 1000, Prices: map[AdSize]decimal.Decimal{"quarter": d("90")}}

	s := NewAreaSelector([]Area{big, pricey}, true)
	require.NoError(t, s.Select("big", KindPaid))
	require.NoError(t, s.Select("pricey", KindFree))

	assert.Equal(t, []string{"pricey"}, s.SetSize("quarter"))
	assert.Equal(t, KindNone, s.Kind("pricey"))
}

func TestAreaSelector_BOGOFDisabled(t *testing.T) {
	s := NewAreaSelector(pick("north", "south"), false)
	require.NoError(t, s.Select("north", KindPaid))
	assert.ErrorIs(t, s.Select("south", KindFree), ErrBOGOFDisabled)
}

func TestAreaSelector_Restore(t *testing.T) {
	s := NewAreaSelector(pick("north", "south", "east"), true)

	dropped := s.Restore(Selection{
		Paid: []string{"east", "gone"},
		Free: []string{"south", "north"},
	}, "quarter")

	assert.ElementsMatch(t, []string{"gone", "south", "north"}, dropped)
	require.Len(t, s.Paid(), 1)
	assert.Equal(t, "east", s.Paid()[0].ID)
	assert.Empty(t, s.Free())
}

func TestMatchBOGOF(t *testing.T) {
	assert.True(t, MatchBOGOF(pick("north"), nil, "quarter"))
	assert.True(t, MatchBOGOF(pick("north", "west"), pick("east", "south"), "quarter"))
	assert.True(t, MatchBOGOF(pick("north"), pick("north"), "quarter"), "equal value is allowed")
	assert.False(t, MatchBOGOF(pick("west", "east"), pick("north", "south"), "quarter"), "80 free against 60 paid")
	assert.False(t, MatchBOGOF(nil, pick("east"), "quarter"))
}
