package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	PayPalName = "paypal"

	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

var paypalProfile = profile{
	name:  PayPalName,
	units: amount.Major.With(amount.New(0, 0), "JPY", "HUF", "TWD"),
	statuses: status.NewTable(map[string]types.Status{
		"PAYMENT.CAPTURE.COMPLETED":          types.StatusSuccess,
		"PAYMENT.CAPTURE.PENDING":            types.StatusPending,
		"PAYMENT.CAPTURE.DENIED":             types.StatusFailed,
		"PAYMENT.CAPTURE.DECLINED":           types.StatusFailed,
		"PAYMENT.CAPTURE.REFUNDED":           types.StatusRefunded,
		"PAYMENT.CAPTURE.REVERSED":           types.StatusRefunded,
		"CHECKOUT.ORDER.APPROVED":            types.StatusPending,
		"CHECKOUT.ORDER.COMPLETED":           types.StatusSuccess,
		"CHECKOUT.ORDER.VOIDED":              types.StatusCancelled,
		"CHECKOUT.PAYMENT-APPROVAL.REVERSED": types.StatusCancelled,
		"CUSTOMER.DISPUTE.CREATED":           types.StatusDisputed,

		// order and capture states, as returned by a capture
		"COMPLETED":             types.StatusSuccess,
		"PENDING":               types.StatusPending,
		"CREATED":               types.StatusPending,
		"SAVED":                 types.StatusPending,
		"APPROVED":              types.StatusPending,
		"PAYER_ACTION_REQUIRED": types.StatusPending,
		"DECLINED":              types.StatusFailed,
		"FAILED":                types.StatusFailed,
		"VOIDED":                types.StatusCancelled,
		"PARTIALLY_REFUNDED":    types.StatusRefunded,
		"REFUNDED":              types.StatusRefunded,
	}),
	refunds: status.NewTable(map[string]types.Status{
		"COMPLETED": types.StatusRefunded,
		"PENDING":   types.StatusPending,
		"FAILED":    types.StatusFailed,
		"CANCELLED": types.StatusCancelled,
	}),
}

var paypalSignatureHeaders = []string{
	"Paypal-Auth-Algo",
	"Paypal-Cert-Url",
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Sig",
	"Paypal-Transmission-Time",
}

type paypalDialect struct {
	http      *resty.Client
	clientID  string
	secretKey string
	webhookID string
}

// NewPayPal builds the PayPal adapter. Every call first exchanges the client
// credentials for an access token; webhooks are verified by PayPal itself.
func NewPayPal(cfg config.PaypalConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(PayPalName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &paypalDialect{
		http:      newClient(baseURL(cfg.ProviderCommon, paypalSandboxURL, paypalLiveURL), cfg.Timeout, o.logger),
		clientID:  cfg.ClientID,
		secretKey: cfg.SecretKey,
		webhookID: cfg.WebhookID,
	}
	return newAdapter(paypalProfile, d, o), nil
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalCapture struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Amount   *paypalMoney `json:"amount"`
	CustomID string       `json:"custom_id"`
}

type paypalUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id"`
	InvoiceID   string       `json:"invoice_id"`
	Amount      *paypalMoney `json:"amount"`
	Payments    struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments"`
}

type paypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []paypalUnit `json:"purchase_units"`
}

// paypalError covers both the REST error body and the OAuth one.
type paypalError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *paypalError) String() string {
	switch {
	case len(e.Details) > 0:
		return fmt.Sprintf("%s: %s", e.Details[0].Issue, e.Details[0].Description)
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	}
	return e.Error
}

func (d *paypalDialect) token(ctx context.Context) (string, error) {
	var (
		out struct {
			AccessToken string `json:"access_token"`
		}
		apiErr paypalError
	)
	res, err := d.http.R().
		SetContext(ctx).
		SetBasicAuth(d.clientID, d.secretKey).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/oauth2/token")
	if err := send(PayPalName, res, err, apiErr.String); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &types.UpstreamRequestError{Provider: PayPalName, StatusCode: res.StatusCode(), Message: "empty access token"}
	}
	return out.AccessToken, nil
}

func (d *paypalDialect) authed(ctx context.Context) (*resty.Request, error) {
	token, err := d.token(ctx)
	if err != nil {
		return nil, err
	}
	return d.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func (d *paypalDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	r, err := d.authed(ctx)
	if err != nil {
		return types.PaymentData{}, err
	}

	experience := map[string]any{
		"payment_method_preference": "IMMEDIATE_PAYMENT_REQUIRED",
		"landing_page":              "LOGIN",
		"shipping_preference":       "NO_SHIPPING",
		"user_action":               "PAY_NOW",
	}
	if req.ReturnURL != "" {
		experience["return_url"] = req.ReturnURL
	}
	if req.CancelURL != "" {
		experience["cancel_url"] = req.CancelURL
	}

	unit := map[string]any{
		"reference_id": req.OrderID,
		"custom_id":    req.OrderID,
		"invoice_id":   req.OrderID,
		"amount": paypalMoney{
			CurrencyCode: req.Currency,
			Value:        paypalProfile.units.FormatWire(wire, req.Currency),
		},
	}
	if req.Description != "" {
		unit["description"] = req.Description
	}

	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []map[string]any{unit},
		"payment_source": map[string]any{
			"paypal": map[string]any{"experience_context": experience},
		},
	}

	var (
		order  paypalOrder
		apiErr paypalError
	)
	res, err := r.
		SetHeader("PayPal-Request-Id", req.OrderID).
		SetBody(body).
		SetResult(&order).
		SetError(&apiErr).
		Post("/v2/checkout/orders")
	if err := send(PayPalName, res, err, apiErr.String); err != nil {
		return types.PaymentData{}, err
	}

	data := types.PaymentData{TransactionID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			data.RedirectURL = link.Href
			break
		}
	}
	return data, nil
}

func (d *paypalDialect) authenticate(ctx context.Context, env types.CallbackEnvelope) (authentic, error) {
	if !json.Valid(env.Body) {
		return authentic{}, errors.New("webhook body is not JSON")
	}

	body := map[string]any{
		"webhook_id":    d.webhookID,
		"webhook_event": json.RawMessage(env.Body),
	}
	for _, h := range paypalSignatureHeaders {
		v := env.Header.Get(h)
		if v == "" {
			return authentic{}, fmt.Errorf("missing %s header", h)
		}
		body[strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(h, "Paypal-")), "-", "_")] = v
	}

	r, err := d.authed(ctx)
	if err != nil {
		return authentic{}, err
	}
	var (
		out struct {
			VerificationStatus string `json:"verification_status"`
		}
		apiErr paypalError
	)
	res, err := r.SetBody(body).SetResult(&out).SetError(&apiErr).Post("/v1/notifications/verify-webhook-signature")
	if err := send(PayPalName, res, err, apiErr.String); err != nil {
		return authentic{}, err
	}
	if out.VerificationStatus != "SUCCESS" {
		return authentic{}, fmt.Errorf("verification status %q", out.VerificationStatus)
	}
	return authentic{env: env}, nil
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string         `json:"id"`
		Status            string         `json:"status"`
		CustomID          string         `json:"custom_id"`
		InvoiceID         string         `json:"invoice_id"`
		Amount            *paypalMoney   `json:"amount"`
		PurchaseUnits     []paypalUnit   `json:"purchase_units"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		DisputeID            string       `json:"dispute_id"`
		DisputeAmount        *paypalMoney `json:"dispute_amount"`
		DisputedTransactions []struct {
			SellerTransactionID string `json:"seller_transaction_id"`
			InvoiceNumber       string `json:"invoice_number"`
			Custom              string `json:"custom"`
		} `json:"disputed_transactions"`
	} `json:"resource"`
}

var paypalDrift = driftPaths{
	order: []string{
		"resource.custom_id",
		"resource.invoice_id",
		"resource.purchase_units.0.custom_id",
		"resource.purchase_units.0.invoice_id",
		"resource.purchase_units.0.reference_id",
		"resource.disputed_transactions.0.custom",
	},
	transaction: []string{"resource.dispute_id", "resource.id"},
	status:      []string{"event_type"},
	currency:    []string{"resource.amount.currency_code", "resource.purchase_units.0.amount.currency_code"},
}

func (d *paypalDialect) parse(_ context.Context, cb authentic) (notification, error) {
	var ev paypalEvent
	if err := json.Unmarshal(cb.env.Body, &ev); err != nil {
		return paypalDrift.salvage(cb.env.Body, fmt.Errorf("decoding webhook event: %w", err))
	}
	if ev.EventType == "" {
		return notification{}, missing("event_type")
	}

	res := ev.Resource
	n := notification{
		OrderID:       firstNonEmpty(res.CustomID, res.InvoiceID),
		TransactionID: res.ID,
		RawStatus:     ev.EventType,
		Metadata:      map[string]string{"event_id": ev.ID},
	}
	money := res.Amount

	if len(res.PurchaseUnits) > 0 {
		u := res.PurchaseUnits[0]
		n.OrderID = firstNonEmpty(n.OrderID, u.CustomID, u.InvoiceID, u.ReferenceID)
		if money == nil {
			money = u.Amount
		}
	}
	if res.DisputeID != "" {
		n.TransactionID = res.DisputeID
		money = res.DisputeAmount
		if len(res.DisputedTransactions) > 0 {
			t := res.DisputedTransactions[0]
			n.OrderID = firstNonEmpty(n.OrderID, t.Custom, t.InvoiceNumber)
		}
	}
	if related := res.SupplementaryData.RelatedIDs.OrderID; related != "" {
		n.Metadata["paypal_order_id"] = related
	}
	if money != nil {
		n.WireAmount, n.Currency = money.Value, money.CurrencyCode
	}
	return n, nil
}

// verifyPayment captures an approved order.
func (d *paypalDialect) verifyPayment(ctx context.Context, ref types.PaymentReference, _ decimal.Decimal) (notification, error) {
	if ref.TransactionID == "" {
		return notification{}, fmt.Errorf("%w: paypal order id is required", types.ErrInvalidRequest)
	}
	r, err := d.authed(ctx)
	if err != nil {
		return notification{}, err
	}

	var (
		order  paypalOrder
		apiErr paypalError
	)
	res, err := r.
		SetHeader("PayPal-Request-Id", "capture-"+ref.TransactionID).
		SetHeader("Content-Type", "application/json").
		SetBody("{}").
		SetResult(&order).
		SetError(&apiErr).
		Post("/v2/checkout/orders/" + ref.TransactionID + "/capture")
	if err := send(PayPalName, res, err, apiErr.String); err != nil {
		return notification{}, err
	}

	n := notification{
		OrderID:       ref.OrderID,
		TransactionID: order.ID,
		RawStatus:     order.Status,
		Metadata:      map[string]string{"paypal_order_id": order.ID},
	}
	if len(order.PurchaseUnits) > 0 {
		u := order.PurchaseUnits[0]
		n.OrderID = firstNonEmpty(u.CustomID, u.InvoiceID, u.ReferenceID, n.OrderID)
		if len(u.Payments.Captures) > 0 {
			c := u.Payments.Captures[0]
			n.TransactionID = c.ID
			n.RawStatus = c.Status
			if c.Amount != nil {
				n.WireAmount, n.Currency = c.Amount.Value, c.Amount.CurrencyCode
			}
		}
	}
	return n, nil
}

// refund refunds a capture. TransactionID is the capture id.
func (d *paypalDialect) refund(ctx context.Context, req types.RefundRequest, wire decimal.Decimal) (types.RefundResult, notification, error) {
	r, err := d.authed(ctx)
	if err != nil {
		return types.RefundResult{}, notification{}, err
	}

	body := map[string]any{}
	if wire.IsPositive() {
		if req.Currency == "" {
			return types.RefundResult{}, notification{}, fmt.Errorf("%w: currency is required for a partial refund", types.ErrInvalidRequest)
		}
		body["amount"] = paypalMoney{CurrencyCode: req.Currency, Value: paypalProfile.units.FormatWire(wire, req.Currency)}
	}
	if req.Reason != "" {
		body["note_to_payer"] = req.Reason
	}

	var (
		out struct {
			ID     string       `json:"id"`
			Status string       `json:"status"`
			Amount *paypalMoney `json:"amount"`
		}
		apiErr paypalError
	)
	res, err := r.SetBody(body).SetResult(&out).SetError(&apiErr).Post("/v2/payments/captures/" + req.TransactionID + "/refund")
	if err := send(PayPalName, res, err, apiErr.String); err != nil {
		return types.RefundResult{}, notification{}, err
	}

	result := types.RefundResult{RefundID: out.ID, TransactionID: req.TransactionID, RawStatus: out.Status}
	var n notification
	if out.Amount != nil {
		n.WireAmount, n.Currency = out.Amount.Value, out.Amount.CurrencyCode
	}
	return result, n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
