package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/signature"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// profile is the data half of a provider: everything that differs between
// providers without needing code.
type profile struct {
	name     string
	units    amount.Unit
	statuses status.Table
	refunds  status.Table
}

// notification is a provider message reduced to the fields every provider
// can supply. Amounts stay in wire units until the adapter converts them.
type notification struct {
	OrderID       string
	TransactionID string
	RawStatus     string
	WireAmount    string
	Currency      string
	Metadata      map[string]string

	// undecoded is set when the body no longer matched the typed event and
	// the fields above were salvaged from it.
	undecoded error
}

// authentic is a callback that passed verification. Only a dialect's
// authenticate produces one, so parse never sees an unverified payload.
type authentic struct {
	env   types.CallbackEnvelope
	proof any
}

// missing is returned by parse when a correlation field is absent.
type missing string

func (m missing) Error() string {
	return "missing field " + string(m)
}

type dialect interface {
	create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error)
	authenticate(ctx context.Context, env types.CallbackEnvelope) (authentic, error)
	parse(ctx context.Context, cb authentic) (notification, error)
}

type paymentVerifier interface {
	verifyPayment(ctx context.Context, ref types.PaymentReference, wire decimal.Decimal) (notification, error)
}

type refunder interface {
	refund(ctx context.Context, req types.RefundRequest, wire decimal.Decimal) (types.RefundResult, notification, error)
}

type statusGetter interface {
	getStatus(ctx context.Context, transactionID string) (notification, error)
}

// Adapter implements the unified payment contract for one provider. It holds
// only configuration captured at construction and is safe for concurrent use.
type Adapter struct {
	profile
	dialect dialect
	opts    options
}

func newAdapter(p profile, d dialect, o options) *Adapter {
	return &Adapter{profile: p, dialect: d, opts: o}
}

func (a *Adapter) Name() string {
	return a.name
}

// CreatePayment opens a payment with the provider. A missing order id is
// generated and returned so the caller can correlate the callback.
func (a *Adapter) CreatePayment(ctx context.Context, req types.PaymentRequest) (*types.CreateResponse, error) {
	if err := a.checkRequest(req); err != nil {
		return nil, err
	}
	req.Currency = strings.ToUpper(req.Currency)
	if req.OrderID == "" {
		req.OrderID = a.opts.ids.Generate().String()
	}

	wire := a.units.ToWire(req.Amount, req.Currency)
	data, err := a.dialect.create(ctx, req, wire)
	if err != nil {
		return nil, a.upstreamError(err)
	}

	data.OrderID = req.OrderID
	data.WireAmount = a.units.FormatWire(wire, req.Currency)
	return &types.CreateResponse{Status: types.CreateStatusSuccess, Data: data}, nil
}

// HandleCallback authenticates a provider notification and normalizes it.
// Authentication always runs first; nothing is parsed from a payload that
// failed it.
func (a *Adapter) HandleCallback(ctx context.Context, env types.CallbackEnvelope) (*types.PaymentResult, error) {
	cb, err := a.dialect.authenticate(ctx, env)
	if err != nil {
		var upstream *types.UpstreamRequestError
		if errors.As(err, &upstream) {
			return nil, err
		}
		var sigErr *types.SignatureVerificationError
		if errors.As(err, &sigErr) {
			return nil, err
		}
		return nil, &types.SignatureVerificationError{Provider: a.name, Reason: err.Error(), Err: err}
	}

	n, err := a.dialect.parse(ctx, cb)
	if err != nil {
		return nil, a.callbackError(err)
	}
	return a.result(n)
}

// VerifyPayment asks the provider to confirm (or capture) a payment the
// customer returned from.
func (a *Adapter) VerifyPayment(ctx context.Context, ref types.PaymentReference) (*types.PaymentResult, error) {
	v, ok := a.dialect.(paymentVerifier)
	if !ok {
		return nil, a.unsupported("verify payment")
	}
	n, err := v.verifyPayment(ctx, ref, a.units.ToWire(ref.Amount, ref.Currency))
	if err != nil {
		return nil, a.callbackError(a.upstreamError(err))
	}
	return a.result(n)
}

func (a *Adapter) Refund(ctx context.Context, req types.RefundRequest) (*types.RefundResult, error) {
	r, ok := a.dialect.(refunder)
	if !ok {
		return nil, a.unsupported("refund")
	}
	if req.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", types.ErrInvalidRequest)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: refund amount must not be negative", types.ErrInvalidRequest)
	}
	req.Currency = strings.ToUpper(req.Currency)

	res, n, err := r.refund(ctx, req, a.units.ToWire(req.Amount, req.Currency))
	if err != nil {
		return nil, a.upstreamError(err)
	}
	res.Status = a.refunds.Normalize(res.RawStatus)
	if n.Currency != "" {
		res.Currency = strings.ToUpper(n.Currency)
	}
	if n.WireAmount != "" {
		if v, err := a.units.ParseWire(n.WireAmount, res.Currency); err == nil {
			res.Amount = v
		}
	}
	return &res, nil
}

func (a *Adapter) GetStatus(ctx context.Context, transactionID string) (*types.PaymentResult, error) {
	g, ok := a.dialect.(statusGetter)
	if !ok {
		return nil, a.unsupported("get status")
	}
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", types.ErrInvalidRequest)
	}
	n, err := g.getStatus(ctx, transactionID)
	if err != nil {
		return nil, a.callbackError(a.upstreamError(err))
	}
	return a.result(n)
}

// Supports reports which optional operations this provider implements.
func (a *Adapter) Supports() []string {
	var ops []string
	if _, ok := a.dialect.(paymentVerifier); ok {
		ops = append(ops, "verify")
	}
	if _, ok := a.dialect.(refunder); ok {
		ops = append(ops, "refund")
	}
	if _, ok := a.dialect.(statusGetter); ok {
		ops = append(ops, "status")
	}
	return ops
}

func (a *Adapter) result(n notification) (*types.PaymentResult, error) {
	if n.OrderID == "" {
		return nil, &types.UnrecognizedCallbackError{Provider: a.name, Field: "order_id"}
	}

	if !a.statuses.Known(n.RawStatus) {
		a.opts.logger.Warn("unmapped provider status",
			zap.String("provider", a.name),
			zap.String("order_id", n.OrderID),
			zap.String("raw_status", n.RawStatus),
		)
	}
	res := &types.PaymentResult{
		Status:        a.statuses.Normalize(n.RawStatus),
		Provider:      a.name,
		TransactionID: n.TransactionID,
		OrderID:       n.OrderID,
		Currency:      strings.ToUpper(n.Currency),
		RawStatus:     n.RawStatus,
		Metadata:      n.Metadata,
	}
	if n.undecoded != nil {
		a.opts.logger.Warn("callback shape not recognized",
			zap.String("provider", a.name),
			zap.String("order_id", n.OrderID),
			zap.String("raw_status", n.RawStatus),
			zap.Error(n.undecoded),
		)
		res.Status = types.StatusUnknown
		return res, nil
	}
	if n.WireAmount != "" {
		v, err := a.units.ParseWire(n.WireAmount, res.Currency)
		if err != nil {
			// an amount we cannot read is not one we can vouch for
			res.Status = types.StatusUnknown
		} else {
			res.Amount = v
		}
	}
	return res, nil
}

func (a *Adapter) checkRequest(req types.PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", types.ErrInvalidRequest)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidRequest, validationMessage(err))
	}
	return nil
}

func (a *Adapter) upstreamError(err error) error {
	var upstream *types.UpstreamRequestError
	if errors.As(err, &upstream) || errors.Is(err, types.ErrInvalidRequest) {
		return err
	}
	var m missing
	var sigErr *types.SignatureVerificationError
	if errors.As(err, &m) || errors.As(err, &sigErr) {
		return err
	}
	return &types.UpstreamRequestError{Provider: a.name, Err: err}
}

func (a *Adapter) callbackError(err error) error {
	var m missing
	if errors.As(err, &m) {
		return &types.UnrecognizedCallbackError{Provider: a.name, Field: string(m)}
	}
	return err
}

func (a *Adapter) unsupported(op string) error {
	return fmt.Errorf("%s: %s: %w", a.name, op, types.ErrUnsupportedOperation)
}

// flatten keeps the first value of every field.
func flatten(v url.Values) signature.Fields {
	out := make(signature.Fields, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}
