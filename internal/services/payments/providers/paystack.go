package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/signature"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	PaystackName = "paystack"

	paystackURL             = "https://api.paystack.co"
	paystackSignatureHeader = "X-Paystack-Signature"
)

var paystackProfile = profile{
	name:  PaystackName,
	units: amount.Cents,
	statuses: status.NewTable(map[string]types.Status{
		"charge.success":        types.StatusSuccess,
		"charge.failed":         types.StatusFailed,
		"refund.pending":        types.StatusPending,
		"refund.processing":     types.StatusPending,
		"refund.processed":      types.StatusRefunded,
		"charge.dispute.create": types.StatusDisputed,

		// transaction states, as returned by verify
		"success":    types.StatusSuccess,
		"failed":     types.StatusFailed,
		"abandoned":  types.StatusCancelled,
		"reversed":   types.StatusRefunded,
		"ongoing":    types.StatusPending,
		"pending":    types.StatusPending,
		"processing": types.StatusPending,
		"queued":     types.StatusPending,
	}),
	refunds: status.NewTable(map[string]types.Status{
		"processed":  types.StatusRefunded,
		"pending":    types.StatusPending,
		"processing": types.StatusPending,
		"failed":     types.StatusFailed,
	}),
}

var paystackSigner = signature.BodyHMAC{Hash: signature.SHA512, Case: signature.Lower}

type paystackDialect struct {
	http      *resty.Client
	secretKey string
}

// NewPaystack builds the Paystack adapter. The transaction reference is the
// order id, so verify and status lookups take the order id directly.
func NewPaystack(cfg config.PaystackConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(PaystackName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &paystackDialect{
		http:      newClient(baseURL(cfg.ProviderCommon, paystackURL, paystackURL), cfg.Timeout, o.logger).SetAuthToken(cfg.SecretKey),
		secretKey: cfg.SecretKey,
	}
	return newAdapter(paystackProfile, d, o), nil
}

// paystackEnvelope is the {status, message, data} shape of every response.
type paystackEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type paystackTransaction struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata"`
}

// orderID prefers our metadata, which survives a reference the caller
// overrode on the dashboard.
func (t paystackTransaction) orderID() string {
	var meta map[string]any
	if len(t.Metadata) > 0 && json.Unmarshal(t.Metadata, &meta) == nil {
		if v, ok := meta[metadataOrderID].(string); ok && v != "" {
			return v
		}
	}
	return t.Reference
}

func (d *paystackDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	if req.Customer.Email == "" {
		return types.PaymentData{}, fmt.Errorf("%w: customer email is required", types.ErrInvalidRequest)
	}

	meta := map[string]string{metadataOrderID: req.OrderID}
	for k, v := range req.Metadata {
		if k != metadataOrderID {
			meta[k] = v
		}
	}
	body := map[string]any{
		"email":     req.Customer.Email,
		"amount":    wire.StringFixed(0),
		"currency":  req.Currency,
		"reference": req.OrderID,
		"metadata":  meta,
	}
	if cb := firstNonEmpty(req.ReturnURL, req.CallbackURL); cb != "" {
		body["callback_url"] = cb
	}

	var out paystackEnvelope[struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}]
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/transaction/initialize")
	if err := send(PaystackName, res, err, func() string { return out.Message }); err != nil {
		return types.PaymentData{}, err
	}
	if !out.Status {
		return types.PaymentData{}, &types.UpstreamRequestError{Provider: PaystackName, StatusCode: res.StatusCode(), Message: out.Message}
	}

	return types.PaymentData{
		TransactionID: out.Data.Reference,
		RedirectURL:   out.Data.AuthorizationURL,
		Extra:         map[string]string{"access_code": out.Data.AccessCode},
	}, nil
}

func (d *paystackDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	claimed := env.Header.Get(paystackSignatureHeader)
	if claimed == "" {
		return authentic{}, fmt.Errorf("missing %s header", paystackSignatureHeader)
	}
	if err := paystackSigner.Verify(d.secretKey, env.Body, claimed); err != nil {
		return authentic{}, err
	}
	return authentic{env: env}, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		paystackTransaction
		TransactionReference string `json:"transaction_reference"`
		Transaction          *struct {
			Reference string `json:"reference"`
		} `json:"transaction"`
	} `json:"data"`
}

var paystackDrift = driftPaths{
	order:       []string{"data.metadata.order_id", "data.reference", "data.transaction_reference", "data.transaction.reference"},
	transaction: []string{"data.reference", "data.transaction_reference", "data.transaction.reference"},
	status:      []string{"event"},
	currency:    []string{"data.currency"},
}

func (d *paystackDialect) parse(_ context.Context, cb authentic) (notification, error) {
	var ev paystackEvent
	if err := json.Unmarshal(cb.env.Body, &ev); err != nil {
		return paystackDrift.salvage(cb.env.Body, fmt.Errorf("decoding webhook event: %w", err))
	}
	if ev.Event == "" {
		return notification{}, missing("event")
	}

	data := ev.Data
	order := data.orderID()
	if order == "" {
		order = data.TransactionReference
	}
	if order == "" && data.Transaction != nil {
		order = data.Transaction.Reference
	}
	if order == "" {
		return notification{}, missing("data.reference")
	}

	n := notification{
		OrderID:       order,
		TransactionID: order,
		RawStatus:     ev.Event,
		WireAmount:    data.Amount.String(),
		Currency:      data.Currency,
	}
	if data.ID != 0 {
		n.Metadata = map[string]string{"paystack_id": strconv.FormatInt(data.ID, 10)}
	}
	return n, nil
}

func (d *paystackDialect) verifyPayment(ctx context.Context, ref types.PaymentReference, _ decimal.Decimal) (notification, error) {
	reference := firstNonEmpty(ref.TransactionID, ref.OrderID)
	if reference == "" {
		return notification{}, fmt.Errorf("%w: transaction reference is required", types.ErrInvalidRequest)
	}
	return d.transaction(ctx, reference)
}

func (d *paystackDialect) getStatus(ctx context.Context, transactionID string) (notification, error) {
	return d.transaction(ctx, transactionID)
}

func (d *paystackDialect) transaction(ctx context.Context, reference string) (notification, error) {
	var out paystackEnvelope[paystackTransaction]
	res, err := d.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/transaction/verify/" + url.PathEscape(reference))
	if err := send(PaystackName, res, err, func() string { return out.Message }); err != nil {
		return notification{}, err
	}

	t := out.Data
	return notification{
		OrderID:       t.orderID(),
		TransactionID: t.Reference,
		RawStatus:     t.Status,
		WireAmount:    t.Amount.String(),
		Currency:      t.Currency,
	}, nil
}

// refund refunds a transaction by reference.
func (d *paystackDialect) refund(ctx context.Context, req types.RefundRequest, wire decimal.Decimal) (types.RefundResult, notification, error) {
	body := map[string]any{"transaction": req.TransactionID}
	if wire.IsPositive() {
		body["amount"] = wire.IntPart()
	}
	if req.Reason != "" {
		body["merchant_note"] = req.Reason
	}

	var out paystackEnvelope[struct {
		ID       int64  `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}]
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/refund")
	if err := send(PaystackName, res, err, func() string { return out.Message }); err != nil {
		return types.RefundResult{}, notification{}, err
	}

	result := types.RefundResult{
		RefundID:      strconv.FormatInt(out.Data.ID, 10),
		TransactionID: req.TransactionID,
		RawStatus:     out.Data.Status,
	}
	return result, notification{WireAmount: strconv.FormatInt(out.Data.Amount, 10), Currency: out.Data.Currency}, nil
}
