package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paypalStub answers the OAuth exchange and delegates everything else.
func paypalStub(t *testing.T, next http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
				return
			}
			io.WriteString(w, `{"access_token":"A21AA-token","token_type":"Bearer","expires_in":32400}`)
			return
		}
		assert.Equal(t, "Bearer A21AA-token", r.Header.Get("Authorization"))
		next(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.PaypalConfig{ClientID: "client-id", SecretKey: "client-secret", WebhookID: "WH-1"}
	cfg.BaseURL = srv.URL
	a, err := NewPayPal(cfg)
	require.NoError(t, err)
	return a
}

func paypalHeaders() http.Header {
	h := http.Header{}
	h.Set("Paypal-Auth-Algo", "SHA256withRSA")
	h.Set("Paypal-Cert-Url", "https://api.paypal.com/v1/notifications/certs/CERT-1")
	h.Set("Paypal-Transmission-Id", "69cd13f0-d67a-11e5-baa3-778b53f4ae55")
	h.Set("Paypal-Transmission-Sig", "lmI95Jx3Y9nhR5SJWlHVIWpg4AgFk7n9bCHSRxbrd8A9zrhdu2rMyFrmz+Zjh3s3boXB07VXCXUZy/UFzUlnGJn0wDugt7FlSvdKeIJenLRemUxYCPVoEZzg9VFNqOa48gMkvF+XTpxBeUx/kWy6B5cp7GkT2+pOowfRK7OaynuxUoKW3JcMWw272VKjLTtTAShncla7tGF+55rxyt2KNZIIqxNMJ48RDZheGU5w1npu9dZHnPgTXB9iomeVRoD8O/jhRpnKsGrDschyNdkeh81BJJMH4Ctc6lnCCquoP/GzCzz33MMsNdid7vL/NIWaCsekQpW26FpWPi/tfj8nLA==")
	h.Set("Paypal-Transmission-Time", "2026-10-16T10:00:00Z")
	return h
}

const paypalCaptureEvent = `{"id":"WH-58D329510W468432D-8HN650336L201105X","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"42311647XV020574X","status":"COMPLETED","custom_id":"order-1","amount":{"currency_code":"USD","value":"100.00"},"supplementary_data":{"related_ids":{"order_id":"5O190127TN364715T"}}}}`

func TestPayPal_CreatePayment(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		assert.Equal(t, "order-1", r.Header.Get("PayPal-Request-Id"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				CustomID string      `json:"custom_id"`
				Amount   paypalMoney `json:"amount"`
			} `json:"purchase_units"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		if assert.Len(t, body.PurchaseUnits, 1) {
			assert.Equal(t, "order-1", body.PurchaseUnits[0].CustomID)
			assert.Equal(t, paypalMoney{CurrencyCode: "USD", Value: "100.00"}, body.PurchaseUnits[0].Amount)
		}

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"5O190127TN364715T","status":"PAYER_ACTION_REQUIRED","links":[{"href":"https://api-m.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self","method":"GET"},{"href":"https://www.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"payer-action","method":"GET"}]}`)
	})

	resp, err := a.CreatePayment(context.Background(), types.PaymentRequest{
		Amount:    decimal.NewFromInt(100),
		Currency:  "USD",
		OrderID:   "order-1",
		ReturnURL: "https://shop.example/paypal/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", resp.Data.TransactionID)
	assert.Equal(t, "https://www.paypal.com/checkoutnow?token=5O190127TN364715T", resp.Data.RedirectURL)
	assert.Equal(t, "100.00", resp.Data.WireAmount)
}

func TestPayPal_TokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
	}))
	t.Cleanup(srv.Close)
	cfg := config.PaypalConfig{ClientID: "client-id", SecretKey: "wrong", WebhookID: "WH-1"}
	cfg.BaseURL = srv.URL
	a, err := NewPayPal(cfg)
	require.NoError(t, err)

	_, err = a.CreatePayment(context.Background(), types.PaymentRequest{Amount: decimal.NewFromInt(1), Currency: "USD", OrderID: "o"})

	var upstream *types.UpstreamRequestError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.Equal(t, "Client Authentication failed", upstream.Message)
}

func TestPayPal_HandleCallback(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `"WH-1"`, string(body["webhook_id"]))
		assert.JSONEq(t, `"SHA256withRSA"`, string(body["auth_algo"]))
		assert.JSONEq(t, `"69cd13f0-d67a-11e5-baa3-778b53f4ae55"`, string(body["transmission_id"]))
		assert.JSONEq(t, paypalCaptureEvent, string(body["webhook_event"]))

		io.WriteString(w, `{"verification_status":"SUCCESS"}`)
	})

	res, err := a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(paypalCaptureEvent), Header: paypalHeaders()})
	require.NoError(t, err)

	assert.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, "42311647XV020574X", res.TransactionID)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "5O190127TN364715T", res.Metadata["paypal_order_id"])
}

func TestPayPal_HandleCallbackRejected(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"verification_status":"FAILURE"}`)
	})

	_, err := a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(paypalCaptureEvent), Header: paypalHeaders()})
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)

	h := paypalHeaders()
	h.Del("Paypal-Transmission-Sig")
	_, err = a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(paypalCaptureEvent), Header: h})
	assert.ErrorIs(t, err, types.ErrSignatureMismatch)
}

func TestPayPal_HandleCallbackVerificationUnavailable(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"name":"INTERNAL_SERVICE_ERROR","message":"An internal service error has occurred."}`)
	})

	_, err := a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(paypalCaptureEvent), Header: paypalHeaders()})

	var upstream *types.UpstreamRequestError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
	assert.NotErrorIs(t, err, types.ErrSignatureMismatch)
}

func TestPayPal_VerifyPaymentCaptures(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/5O190127TN364715T/capture", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"5O190127TN364715T","status":"COMPLETED","purchase_units":[{"reference_id":"order-1","custom_id":"order-1","payments":{"captures":[{"id":"3C679366HH908993F","status":"PENDING","amount":{"currency_code":"EUR","value":"49.90"}}]}}]}`)
	})

	res, err := a.VerifyPayment(context.Background(), types.PaymentReference{TransactionID: "5O190127TN364715T"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, res.Status)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, "3C679366HH908993F", res.TransactionID)
	assert.Equal(t, "EUR", res.Currency)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("49.9")))
}

func TestPayPal_Refund(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payments/captures/3C679366HH908993F/refund", r.URL.Path)
		var body struct {
			Amount *paypalMoney `json:"amount"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.NotNil(t, body.Amount) {
			assert.Equal(t, "10.00", body.Amount.Value)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"1JU08902781691411","status":"COMPLETED","amount":{"currency_code":"EUR","value":"10.00"}}`)
	})

	res, err := a.Refund(context.Background(), types.RefundRequest{TransactionID: "3C679366HH908993F", Amount: decimal.NewFromInt(10), Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "1JU08902781691411", res.RefundID)
	assert.Equal(t, types.StatusRefunded, res.Status)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(10)))

	_, err = a.Refund(context.Background(), types.RefundRequest{TransactionID: "3C679366HH908993F", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.ElementsMatch(t, []string{"verify", "refund"}, a.Supports())
}

func TestPayPal_HandleCallbackShapeDrift(t *testing.T) {
	a := paypalStub(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"verification_status":"SUCCESS"}`)
	})

	event := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"42311647XV020574X","status":"COMPLETED","custom_id":"order-1","amount":"100.00"}}`
	res, err := a.HandleCallback(context.Background(), types.CallbackEnvelope{Body: []byte(event), Header: paypalHeaders()})
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, res.Status)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, "42311647XV020574X", res.TransactionID)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", res.RawStatus)
}
