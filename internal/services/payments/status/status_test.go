package status_test

import (
	"testing"

	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	table := status.NewTable(map[string]types.Status{
		"COMPLETED": types.StatusSuccess,
		"pending":   types.StatusPending,
		"bogus":     types.Status("settled"),
	})

	assert.Equal(t, types.StatusSuccess, table.Normalize("completed"))
	assert.Equal(t, types.StatusSuccess, table.Normalize(" COMPLETED "))
	assert.Equal(t, types.StatusPending, table.Normalize("PENDING"))
	assert.Equal(t, types.StatusUnknown, table.Normalize("bogus"), "invalid canonical values collapse to unknown")
	assert.Equal(t, types.StatusUnknown, table.Normalize(""))
	assert.True(t, table.Known("Completed"))
	assert.False(t, table.Known("voided"))
}

func TestNormalize_UnknownNeverPanics(t *testing.T) {
	table := status.NewTable(map[string]types.Status{"paid": types.StatusSuccess})
	var zero status.Table

	for range 500 {
		raw := gofakeit.LetterN(uint(gofakeit.Number(0, 12)))
		if table.Known(raw) {
			continue
		}
		assert.Equal(t, types.StatusUnknown, table.Normalize(raw))
		assert.Equal(t, types.StatusUnknown, zero.Normalize(raw))
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, types.StatusSuccess.Fulfillable())
	for _, s := range []types.Status{types.StatusPending, types.StatusFailed, types.StatusRefunded, types.StatusDisputed, types.StatusCancelled, types.StatusUnknown} {
		assert.False(t, s.Fulfillable(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.True(t, types.StatusFailed.Terminal())
	assert.False(t, types.StatusPending.Terminal())
	assert.False(t, types.Status("paid").Valid())
}
