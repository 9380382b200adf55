package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	StripeName = "stripe"

	stripeSignatureHeader = "Stripe-Signature"
	metadataOrderID       = "order_id"
)

var stripeProfile = profile{
	name:  StripeName,
	units: amount.Cents.With(amount.New(0, 0), amount.ZeroDecimal...),
	statuses: status.NewTable(map[string]types.Status{
		"payment_intent.succeeded":                 types.StatusSuccess,
		"payment_intent.processing":                types.StatusPending,
		"payment_intent.requires_action":           types.StatusPending,
		"payment_intent.created":                   types.StatusPending,
		"payment_intent.amount_capturable_updated": types.StatusPending,
		"payment_intent.payment_failed":            types.StatusFailed,
		"payment_intent.canceled":                  types.StatusCancelled,

		"checkout.session.completed/paid":                types.StatusSuccess,
		"checkout.session.completed/no_payment_required": types.StatusSuccess,
		"checkout.session.completed/unpaid":              types.StatusPending,
		"checkout.session.async_payment_succeeded":       types.StatusSuccess,
		"checkout.session.async_payment_failed":          types.StatusFailed,
		"checkout.session.expired":                       types.StatusCancelled,

		"charge.refunded":        types.StatusRefunded,
		"charge.dispute.created": types.StatusDisputed,

		// payment intent states, as returned by GetStatus
		"succeeded":               types.StatusSuccess,
		"processing":              types.StatusPending,
		"requires_payment_method": types.StatusPending,
		"requires_confirmation":   types.StatusPending,
		"requires_action":         types.StatusPending,
		"requires_capture":        types.StatusPending,
		"canceled":                types.StatusCancelled,
	}),
	refunds: status.NewTable(map[string]types.Status{
		"succeeded":       types.StatusRefunded,
		"pending":         types.StatusPending,
		"requires_action": types.StatusPending,
		"failed":          types.StatusFailed,
		"canceled":        types.StatusCancelled,
	}),
}

type stripeDialect struct {
	client        *stripe.Client
	webhookSecret string
}

// NewStripe builds the Stripe adapter. A return URL on the payment request
// selects a hosted Checkout Session, otherwise a PaymentIntent is created and
// its client secret returned.
func NewStripe(cfg config.StripeConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(StripeName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	backend := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     o.logger.Sugar(),
	}
	if cfg.BaseURL != "" {
		backend.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}

	d := &stripeDialect{
		client:        stripe.NewClient(cfg.SecretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backend))),
		webhookSecret: cfg.WebhookSecret,
	}
	return newAdapter(stripeProfile, d, o), nil
}

func (d *stripeDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	meta := stripeMetadata(req)
	if req.ReturnURL != "" {
		return d.checkoutSession(ctx, req, wire, meta)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(wire.IntPart()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: meta,
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	params.SetIdempotencyKey("pi-" + req.OrderID)

	pi, err := d.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return types.PaymentData{}, stripeError(err, "creating payment intent")
	}
	return types.PaymentData{TransactionID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (d *stripeDialect) checkoutSession(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal, meta map[string]string) (types.PaymentData, error) {
	name := req.Description
	if name == "" {
		name = "Order " + req.OrderID
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		ClientReferenceID: stripe.String(req.OrderID),
		Metadata:          meta,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: meta,
		},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
					UnitAmount: stripe.Int64(wire.IntPart()),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CancelURL != "" {
		params.CancelURL = stripe.String(req.CancelURL)
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.SetIdempotencyKey("cs-" + req.OrderID)

	s, err := d.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return types.PaymentData{}, stripeError(err, "creating checkout session")
	}
	return types.PaymentData{TransactionID: s.ID, RedirectURL: s.URL}, nil
}

func (d *stripeDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	header := env.Header.Get(stripeSignatureHeader)
	if header == "" {
		return authentic{}, fmt.Errorf("missing %s header", stripeSignatureHeader)
	}
	event, err := webhook.ConstructEventWithOptions(env.Body, header, d.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return authentic{}, err
	}
	return authentic{env: env, proof: event}, nil
}

func (d *stripeDialect) parse(_ context.Context, cb authentic) (notification, error) {
	event := cb.proof.(stripe.Event)
	raw := event.Data.Raw
	kind := string(event.Type)

	switch {
	case strings.HasPrefix(kind, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return stripeSalvage(raw, kind, err)
		}
		n := paymentIntentNotification(&pi)
		n.RawStatus = kind
		return n, nil

	case strings.HasPrefix(kind, "checkout.session."):
		var s stripe.CheckoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return stripeSalvage(raw, kind, err)
		}
		order := s.ClientReferenceID
		if order == "" {
			order = s.Metadata[metadataOrderID]
		}
		if kind == "checkout.session.completed" {
			kind += "/" + string(s.PaymentStatus)
		}
		return notification{
			OrderID:       order,
			TransactionID: s.ID,
			RawStatus:     kind,
			WireAmount:    strconv.FormatInt(s.AmountTotal, 10),
			Currency:      string(s.Currency),
			Metadata:      s.Metadata,
		}, nil

	case strings.HasPrefix(kind, "charge.dispute."):
		var dp stripe.Dispute
		if err := json.Unmarshal(raw, &dp); err != nil {
			return stripeSalvage(raw, kind, err)
		}
		n := notification{
			TransactionID: dp.ID,
			RawStatus:     kind,
			WireAmount:    strconv.FormatInt(dp.Amount, 10),
			Currency:      string(dp.Currency),
			Metadata:      dp.Metadata,
			OrderID:       dp.Metadata[metadataOrderID],
		}
		if n.OrderID == "" && dp.PaymentIntent != nil {
			n.OrderID = dp.PaymentIntent.Metadata[metadataOrderID]
			n.TransactionID = dp.PaymentIntent.ID
		}
		if n.OrderID == "" && dp.Charge != nil {
			n.OrderID = dp.Charge.Metadata[metadataOrderID]
		}
		return n, nil

	case strings.HasPrefix(kind, "charge."):
		var ch stripe.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return stripeSalvage(raw, kind, err)
		}
		n := notification{
			OrderID:       ch.Metadata[metadataOrderID],
			TransactionID: ch.ID,
			RawStatus:     kind,
			WireAmount:    strconv.FormatInt(ch.Amount, 10),
			Currency:      string(ch.Currency),
			Metadata:      ch.Metadata,
		}
		if ch.PaymentIntent != nil {
			n.TransactionID = ch.PaymentIntent.ID
			if n.OrderID == "" {
				n.OrderID = ch.PaymentIntent.Metadata[metadataOrderID]
			}
		}
		return n, nil
	}

	// anything else still carries our metadata if the object has any
	var obj struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return stripeSalvage(raw, kind, err)
	}
	return notification{
		OrderID:       obj.Metadata[metadataOrderID],
		TransactionID: obj.ID,
		RawStatus:     kind,
		Metadata:      obj.Metadata,
	}, nil
}

var stripeDrift = driftPaths{
	order:       []string{"metadata.order_id", "client_reference_id", "payment_intent.metadata.order_id", "charge.metadata.order_id"},
	transaction: []string{"id"},
	currency:    []string{"currency"},
}

// stripeSalvage keeps the event type as the raw status of an object the
// typed decoding rejected.
func stripeSalvage(raw []byte, kind string, err error) (notification, error) {
	n, err := stripeDrift.salvage(raw, fmt.Errorf("decoding %s: %w", kind, err))
	if err != nil {
		return notification{}, err
	}
	n.RawStatus = kind
	return n, nil
}

func (d *stripeDialect) getStatus(ctx context.Context, transactionID string) (notification, error) {
	pi, err := d.client.V1PaymentIntents.Retrieve(ctx, transactionID, nil)
	if err != nil {
		return notification{}, stripeError(err, "retrieving payment intent")
	}
	n := paymentIntentNotification(pi)
	n.RawStatus = string(pi.Status)
	return n, nil
}

func (d *stripeDialect) refund(ctx context.Context, req types.RefundRequest, wire decimal.Decimal) (types.RefundResult, notification, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.TransactionID),
	}
	if wire.IsPositive() {
		params.Amount = stripe.Int64(wire.IntPart())
	}
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	r, err := d.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return types.RefundResult{}, notification{}, stripeError(err, "creating refund")
	}
	res := types.RefundResult{
		RefundID:      r.ID,
		TransactionID: req.TransactionID,
		RawStatus:     string(r.Status),
	}
	return res, notification{WireAmount: strconv.FormatInt(r.Amount, 10), Currency: string(r.Currency)}, nil
}

func paymentIntentNotification(pi *stripe.PaymentIntent) notification {
	return notification{
		OrderID:       pi.Metadata[metadataOrderID],
		TransactionID: pi.ID,
		WireAmount:    strconv.FormatInt(pi.Amount, 10),
		Currency:      string(pi.Currency),
		Metadata:      pi.Metadata,
	}
}

func stripeMetadata(req types.PaymentRequest) map[string]string {
	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta[metadataOrderID] = req.OrderID
	return meta
}

func stripeError(err error, op string) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &types.UpstreamRequestError{Provider: StripeName, StatusCode: se.HTTPStatusCode, Message: se.Msg, Err: err}
	}
	return &types.UpstreamRequestError{Provider: StripeName, Message: op, Err: err}
}
