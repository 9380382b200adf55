package providers

import (
	"context"
	"errors"
	"testing"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialect struct {
	authErr  error
	parsed   int
	note     notification
	created  types.PaymentRequest
	wire     decimal.Decimal
	parseErr error
}

func (f *fakeDialect) create(_ context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	f.created, f.wire = req, wire
	return types.PaymentData{TransactionID: "tx-1"}, nil
}

func (f *fakeDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	if f.authErr != nil {
		return authentic{}, f.authErr
	}
	return authentic{env: env}, nil
}

func (f *fakeDialect) parse(context.Context, authentic) (notification, error) {
	f.parsed++
	return f.note, f.parseErr
}

var fakeProfile = profile{
	name:  "fake",
	units: amount.Cents,
	statuses: status.NewTable(map[string]types.Status{
		"ok":   types.StatusSuccess,
		"wait": types.StatusPending,
	}),
}

func newFake(d *fakeDialect) *Adapter {
	return newAdapter(fakeProfile, d, newOptions(nil))
}

func validRequest() types.PaymentRequest {
	return types.PaymentRequest{
		Amount:   decimal.RequireFromString("20.00"),
		Currency: "usd",
		OrderID:  "order-1",
	}
}

func TestCreatePayment_ConvertsAmount(t *testing.T) {
	d := &fakeDialect{}
	a := newFake(d)

	resp, err := a.CreatePayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, types.CreateStatusSuccess, resp.Status)
	assert.Equal(t, "order-1", resp.Data.OrderID)
	assert.Equal(t, "tx-1", resp.Data.TransactionID)
	assert.Equal(t, "2000", resp.Data.WireAmount)
	assert.True(t, d.wire.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "USD", d.created.Currency)
}

func TestCreatePayment_GeneratesOrderID(t *testing.T) {
	d := &fakeDialect{}
	a := newFake(d)

	req := validRequest()
	req.OrderID = ""
	first, err := a.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	second, err := a.CreatePayment(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, first.Data.OrderID)
	assert.Equal(t, second.Data.OrderID, d.created.OrderID)
	assert.NotEqual(t, first.Data.OrderID, second.Data.OrderID)
}

func TestCreatePayment_InvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PaymentRequest)
	}{
		{"zero amount", func(r *types.PaymentRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *types.PaymentRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{"missing currency", func(r *types.PaymentRequest) { r.Currency = "" }},
		{"bad currency", func(r *types.PaymentRequest) { r.Currency = "dollars" }},
		{"bad email", func(r *types.PaymentRequest) { r.Customer.Email = "nope" }},
		{"bad callback url", func(r *types.PaymentRequest) { r.CallbackURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialect{}
			req := validRequest()
			tt.mutate(&req)

			_, err := newFake(d).CreatePayment(context.Background(), req)
			require.ErrorIs(t, err, types.ErrInvalidRequest)
			assert.Empty(t, d.created.OrderID, "dialect must not be called")
		})
	}
}

func TestHandleCallback_VerifiesBeforeParsing(t *testing.T) {
	d := &fakeDialect{authErr: errors.New("digest mismatch")}
	a := newFake(d)

	_, err := a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(`{}`)})

	var sigErr *types.SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, "fake", sigErr.Provider)
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)
	assert.Zero(t, d.parsed)
}

func TestHandleCallback_UpstreamFailureDuringVerification(t *testing.T) {
	d := &fakeDialect{authErr: &types.UpstreamRequestError{Provider: "fake", StatusCode: 503}}

	_, err := newFake(d).HandleCallback(context.Background(), types.CallbackEnvelope{})

	var upstream *types.UpstreamRequestError
	require.ErrorAs(t, err, &upstream)
	assert.NotErrorIs(t, err, types.ErrSignatureMismatch)
}

func TestHandleCallback_Normalizes(t *testing.T) {
	d := &fakeDialect{note: notification{
		OrderID:       "order-1",
		TransactionID: "tx-1",
		RawStatus:     "OK",
		WireAmount:    "2000",
		Currency:      "usd",
	}}

	res, err := newFake(d).HandleCallback(context.Background(), types.CallbackEnvelope{})
	require.NoError(t, err)

	assert.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, "fake", res.Provider)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "OK", res.RawStatus)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("20")))
}

func TestHandleCallback_UnknownStatusAndBadAmount(t *testing.T) {
	d := &fakeDialect{note: notification{OrderID: "o", RawStatus: "weird", WireAmount: "2000"}}
	res, err := newFake(d).HandleCallback(context.Background(), types.CallbackEnvelope{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, res.Status)

	d = &fakeDialect{note: notification{OrderID: "o", RawStatus: "ok", WireAmount: "twenty"}}
	res, err = newFake(d).HandleCallback(context.Background(), types.CallbackEnvelope{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, res.Status)
	assert.True(t, res.Amount.IsZero())
}

func TestHandleCallback_Unrecognized(t *testing.T) {
	var unrecognized *types.UnrecognizedCallbackError

	_, err := newFake(&fakeDialect{note: notification{RawStatus: "ok"}}).HandleCallback(context.Background(), types.CallbackEnvelope{})
	require.ErrorAs(t, err, &unrecognized)
	assert.Equal(t, "order_id", unrecognized.Field)

	_, err = newFake(&fakeDialect{parseErr: missing("m_orderid")}).HandleCallback(context.Background(), types.CallbackEnvelope{})
	require.ErrorAs(t, err, &unrecognized)
	assert.Equal(t, "m_orderid", unrecognized.Field)
}

func TestUnsupportedOperations(t *testing.T) {
	a := newFake(&fakeDialect{})
	ctx := context.Background()

	_, err := a.VerifyPayment(ctx, types.PaymentReference{TransactionID: "x"})
	assert.ErrorIs(t, err, types.ErrUnsupportedOperation)
	_, err = a.Refund(ctx, types.RefundRequest{TransactionID: "x"})
	assert.ErrorIs(t, err, types.ErrUnsupportedOperation)
	_, err = a.GetStatus(ctx, "x")
	assert.ErrorIs(t, err, types.ErrUnsupportedOperation)
	assert.Empty(t, a.Supports())
}

func TestCheckConfig_FirstMissingField(t *testing.T) {
	_, err := NewRazorpay(config.RazorpayConfig{KeyID: "key"})

	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, RazorpayName, cfgErr.Provider)
	assert.Equal(t, "key_secret", cfgErr.Field)
}

func TestConstructors_RejectEmptyConfig(t *testing.T) {
	constructors := map[string]func() error{
		StripeName:    func() error { _, err := NewStripe(config.StripeConfig{}); return err },
		PayPalName:    func() error { _, err := NewPayPal(config.PaypalConfig{}); return err },
		RazorpayName:  func() error { _, err := NewRazorpay(config.RazorpayConfig{}); return err },
		PaystackName:  func() error { _, err := NewPaystack(config.PaystackConfig{}); return err },
		CryptomusName: func() error { _, err := NewCryptomus(config.CryptomusConfig{}); return err },
		PayeerName:    func() error { _, err := NewPayeer(config.PayeerConfig{}); return err },
		VNPayName:     func() error { _, err := NewVNPay(config.VNPayConfig{}); return err },
		ZarinpalName:  func() error { _, err := NewZarinpal(config.ZarinpalConfig{}); return err },
	}
	for name, build := range constructors {
		t.Run(name, func(t *testing.T) {
			var cfgErr *types.ConfigurationError
			require.ErrorAs(t, build(), &cfgErr)
			assert.Equal(t, name, cfgErr.Provider)
			assert.NotEmpty(t, cfgErr.Field)
		})
	}
}

func TestFromConfig_OnlyEnabled(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Paystack = config.PaystackConfig{ProviderCommon: config.ProviderCommon{Enabled: true}, SecretKey: "sk_test"}
	cfg.Stripe = config.StripeConfig{SecretKey: "sk"}

	adapters, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, PaystackName, adapters[0].Name())

	cfg.VNPay.Enabled = true
	_, err = FromConfig(cfg)
	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, VNPayName, cfgErr.Provider)
}
