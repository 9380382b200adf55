package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(&fakeProvider{name: "stripe"}, &fakeProvider{name: "PayPal"})
	require.NoError(t, err)

	p, err := r.Get("STRIPE")
	require.NoError(t, err)
	assert.Equal(t, "stripe", p.Name())

	_, err = r.Get("paypal")
	assert.NoError(t, err)

	_, err = r.Get("bitpay")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	assert.Equal(t, []string{"paypal", "stripe"}, r.Names())
}

func TestRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&fakeProvider{name: "stripe"}, &fakeProvider{name: "Stripe"})
	assert.Error(t, err)
}
