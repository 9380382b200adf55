package providers

import (
	"context"
	"encoding/json"
	"fmt"
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
	RazorpayName = "razorpay"

	razorpayURL             = "https://api.razorpay.com"
	razorpaySignatureHeader = "X-Razorpay-Signature"
)

var razorpayProfile = profile{
	name:  RazorpayName,
	units: amount.Cents.With(amount.New(0, 0), "JPY", "KRW", "VND"),
	statuses: status.NewTable(map[string]types.Status{
		"payment.captured":        types.StatusSuccess,
		"order.paid":              types.StatusSuccess,
		"payment.authorized":      types.StatusPending,
		"payment.failed":          types.StatusFailed,
		"refund.created":          types.StatusPending,
		"refund.processed":        types.StatusRefunded,
		"payment.dispute.created": types.StatusDisputed,
		"payment.dispute.lost":    types.StatusRefunded,

		// order and payment entity states
		"paid":       types.StatusSuccess,
		"captured":   types.StatusSuccess,
		"created":    types.StatusPending,
		"attempted":  types.StatusPending,
		"authorized": types.StatusPending,
		"failed":     types.StatusFailed,
		"refunded":   types.StatusRefunded,
	}),
	refunds: status.NewTable(map[string]types.Status{
		"processed": types.StatusRefunded,
		"pending":   types.StatusPending,
		"failed":    types.StatusFailed,
	}),
}

var (
	razorpaySigner = signature.BodyHMAC{Hash: signature.SHA256, Case: signature.Lower}
	// Checkout signs "order_id|payment_id" with the key secret.
	razorpayCheckoutSigner = signature.KeyedHMAC{Hash: signature.SHA256, Separator: "|", Case: signature.Lower}
)

type razorpayDialect struct {
	http          *resty.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

// NewRazorpay builds the Razorpay adapter. CreatePayment opens a Razorpay
// order; the checkout itself runs in the browser with the returned order id.
func NewRazorpay(cfg config.RazorpayConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(RazorpayName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &razorpayDialect{
		http: newClient(baseURL(cfg.ProviderCommon, razorpayURL, razorpayURL), cfg.Timeout, o.logger).
			SetBasicAuth(cfg.KeyID, cfg.KeySecret),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
	return newAdapter(razorpayProfile, d, o), nil
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (e *razorpayError) String() string {
	return e.Error.Description
}

type razorpayOrder struct {
	ID       string        `json:"id"`
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Receipt  string        `json:"receipt"`
	Status   string        `json:"status"`
	Notes    razorpayNotes `json:"notes"`
}

type razorpayPayment struct {
	ID       string        `json:"id"`
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Status   string        `json:"status"`
	OrderID  string        `json:"order_id"`
	Notes    razorpayNotes `json:"notes"`
}

// razorpayNotes tolerates the empty array Razorpay sends when no notes exist.
type razorpayNotes map[string]string

func (n *razorpayNotes) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		*n = nil
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

func (d *razorpayDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	notes := map[string]string{metadataOrderID: req.OrderID}
	for k, v := range req.Metadata {
		if k != metadataOrderID {
			notes[k] = v
		}
	}

	var (
		order  razorpayOrder
		apiErr razorpayError
	)
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"amount":   wire.IntPart(),
			"currency": req.Currency,
			"receipt":  req.OrderID,
			"notes":    notes,
		}).
		SetResult(&order).
		SetError(&apiErr).
		Post("/v1/orders")
	if err := send(RazorpayName, res, err, apiErr.String); err != nil {
		return types.PaymentData{}, err
	}

	return types.PaymentData{
		TransactionID: order.ID,
		Extra:         map[string]string{"key_id": d.keyID},
	}, nil
}

func (d *razorpayDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	claimed := env.Header.Get(razorpaySignatureHeader)
	if claimed == "" {
		return authentic{}, fmt.Errorf("missing %s header", razorpaySignatureHeader)
	}
	if err := razorpaySigner.Verify(d.webhookSecret, env.Body, claimed); err != nil {
		return authentic{}, err
	}
	return authentic{env: env}, nil
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity razorpayOrder `json:"entity"`
		} `json:"order"`
		Refund *struct {
			Entity struct {
				ID        string        `json:"id"`
				PaymentID string        `json:"payment_id"`
				Amount    int64         `json:"amount"`
				Currency  string        `json:"currency"`
				Notes     razorpayNotes `json:"notes"`
			} `json:"entity"`
		} `json:"refund"`
		Dispute *struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
				Currency  string `json:"currency"`
			} `json:"entity"`
		} `json:"dispute"`
	} `json:"payload"`
}

var razorpayDrift = driftPaths{
	order: []string{
		"payload.payment.entity.notes.order_id",
		"payload.order.entity.notes.order_id",
		"payload.order.entity.receipt",
		"payload.refund.entity.notes.order_id",
	},
	transaction: []string{"payload.payment.entity.id", "payload.refund.entity.payment_id", "payload.dispute.entity.payment_id"},
	status:      []string{"event"},
	currency:    []string{"payload.payment.entity.currency", "payload.order.entity.currency", "payload.refund.entity.currency"},
}

func (d *razorpayDialect) parse(_ context.Context, cb authentic) (notification, error) {
	var ev razorpayEvent
	if err := json.Unmarshal(cb.env.Body, &ev); err != nil {
		return razorpayDrift.salvage(cb.env.Body, fmt.Errorf("decoding webhook event: %w", err))
	}
	if ev.Event == "" {
		return notification{}, missing("event")
	}

	n := notification{RawStatus: ev.Event, Metadata: map[string]string{}}
	p := ev.Payload
	if p.Payment != nil {
		pay := p.Payment.Entity
		n.OrderID = pay.Notes[metadataOrderID]
		n.TransactionID = pay.ID
		n.WireAmount = strconv.FormatInt(pay.Amount, 10)
		n.Currency = pay.Currency
		if pay.OrderID != "" {
			n.Metadata["razorpay_order_id"] = pay.OrderID
		}
	}
	if p.Order != nil {
		o := p.Order.Entity
		n.OrderID = firstNonEmpty(n.OrderID, o.Notes[metadataOrderID], o.Receipt)
		n.Metadata["razorpay_order_id"] = o.ID
		if n.WireAmount == "" {
			n.WireAmount, n.Currency = strconv.FormatInt(o.Amount, 10), o.Currency
		}
	}
	if p.Refund != nil {
		r := p.Refund.Entity
		n.OrderID = firstNonEmpty(n.OrderID, r.Notes[metadataOrderID])
		n.TransactionID = firstNonEmpty(r.PaymentID, n.TransactionID)
		n.WireAmount, n.Currency = strconv.FormatInt(r.Amount, 10), r.Currency
		n.Metadata["refund_id"] = r.ID
	}
	if p.Dispute != nil {
		dp := p.Dispute.Entity
		n.TransactionID = firstNonEmpty(dp.PaymentID, n.TransactionID)
		n.WireAmount, n.Currency = strconv.FormatInt(dp.Amount, 10), dp.Currency
		n.Metadata["dispute_id"] = dp.ID
	}
	if n.OrderID == "" {
		return notification{}, missing("notes.order_id")
	}
	return n, nil
}

// verifyPayment checks the handler response Checkout gives the browser and
// then reads the payment it names.
func (d *razorpayDialect) verifyPayment(ctx context.Context, ref types.PaymentReference, _ decimal.Decimal) (notification, error) {
	values, err := signature.Fields(ref.Params).Require("razorpay_order_id", "razorpay_payment_id", "razorpay_signature")
	if err != nil {
		return notification{}, &types.SignatureVerificationError{Provider: RazorpayName, Reason: err.Error(), Err: err}
	}
	orderID, paymentID, claimed := values[0], values[1], values[2]
	if err := razorpayCheckoutSigner.Verify(d.keySecret, claimed, orderID, paymentID); err != nil {
		return notification{}, &types.SignatureVerificationError{Provider: RazorpayName, Reason: "checkout signature", Err: err}
	}

	var (
		pay    razorpayPayment
		apiErr razorpayError
	)
	res, err := d.http.R().
		SetContext(ctx).
		SetResult(&pay).
		SetError(&apiErr).
		Get("/v1/payments/" + paymentID)
	if err := send(RazorpayName, res, err, apiErr.String); err != nil {
		return notification{}, err
	}
	return notification{
		OrderID:       firstNonEmpty(pay.Notes[metadataOrderID], ref.OrderID),
		TransactionID: pay.ID,
		RawStatus:     pay.Status,
		WireAmount:    strconv.FormatInt(pay.Amount, 10),
		Currency:      pay.Currency,
		Metadata:      map[string]string{"razorpay_order_id": orderID},
	}, nil
}

// getStatus reads a Razorpay order by its id.
func (d *razorpayDialect) getStatus(ctx context.Context, transactionID string) (notification, error) {
	var (
		order  razorpayOrder
		apiErr razorpayError
	)
	res, err := d.http.R().
		SetContext(ctx).
		SetResult(&order).
		SetError(&apiErr).
		Get("/v1/orders/" + transactionID)
	if err := send(RazorpayName, res, err, apiErr.String); err != nil {
		return notification{}, err
	}
	return notification{
		OrderID:       firstNonEmpty(order.Notes[metadataOrderID], order.Receipt),
		TransactionID: order.ID,
		RawStatus:     order.Status,
		WireAmount:    strconv.FormatInt(order.Amount, 10),
		Currency:      order.Currency,
	}, nil
}

// refund refunds a captured payment. TransactionID is the payment id.
func (d *razorpayDialect) refund(ctx context.Context, req types.RefundRequest, wire decimal.Decimal) (types.RefundResult, notification, error) {
	body := map[string]any{}
	if wire.IsPositive() {
		body["amount"] = wire.IntPart()
	}
	if req.Reason != "" {
		body["notes"] = map[string]string{"reason": req.Reason}
	}

	var (
		out struct {
			ID        string `json:"id"`
			PaymentID string `json:"payment_id"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Status    string `json:"status"`
		}
		apiErr razorpayError
	)
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/payments/" + req.TransactionID + "/refund")
	if err := send(RazorpayName, res, err, apiErr.String); err != nil {
		return types.RefundResult{}, notification{}, err
	}

	result := types.RefundResult{RefundID: out.ID, TransactionID: req.TransactionID, RawStatus: out.Status}
	return result, notification{WireAmount: strconv.FormatInt(out.Amount, 10), Currency: out.Currency}, nil
}
