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
	ZarinpalName = "zarinpal"

	zarinpalSandboxURL = "https://sandbox.zarinpal.com"
	zarinpalLiveURL    = "https://payment.zarinpal.com"

	zarinpalWireCurrency = "IRR"
	zarinpalCancelled    = "NOK"
)

var zarinpalProfile = profile{
	name: ZarinpalName,
	// callers price in Toman; IRR amounts pass through unchanged
	units: amount.Rial.With(amount.New(0, 0), zarinpalWireCurrency),
	statuses: status.NewTable(map[string]types.Status{
		"100": types.StatusSuccess,
		"101": types.StatusSuccess,
		"-51": types.StatusFailed,
		"NOK": types.StatusCancelled,
	}),
}

// zarinpalCallbackSigner authenticates the parameters appended to the
// callback URL, which Zarinpal echoes back untouched.
var zarinpalCallbackSigner = signature.Canonical{
	Hash:           signature.SHA256,
	Case:           signature.Lower,
	SignatureField: "sig",
	Escape:         true,
}

var zarinpalCallbackFields = []string{"order_id", "amount", "currency"}

type zarinpalDialect struct {
	http           *resty.Client
	base           string
	merchantID     string
	callbackSecret string
}

// NewZarinpal builds the Zarinpal adapter. Zarinpal does not sign its
// callbacks, so every callback is confirmed with the verify API.
func NewZarinpal(cfg config.ZarinpalConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(ZarinpalName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	base := baseURL(cfg.ProviderCommon, zarinpalSandboxURL, zarinpalLiveURL)
	d := &zarinpalDialect{
		http:           newClient(base, cfg.Timeout, o.logger),
		base:           base,
		merchantID:     cfg.MerchantID,
		callbackSecret: cfg.CallbackSecret,
	}
	return newAdapter(zarinpalProfile, d, o), nil
}

// zarinpalResponse holds data or errors; whichever is unused comes back as
// an empty array rather than an object.
type zarinpalResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type zarinpalResult struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
}

func (r zarinpalResponse) result() (zarinpalResult, bool) {
	var out zarinpalResult
	if len(r.Data) == 0 || r.Data[0] != '{' || json.Unmarshal(r.Data, &out) != nil || out.Code == 0 {
		var failure zarinpalResult
		if len(r.Errors) > 0 && r.Errors[0] == '{' && json.Unmarshal(r.Errors, &failure) == nil {
			return failure, false
		}
		return zarinpalResult{}, false
	}
	return out, true
}

func (d *zarinpalDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	if req.Currency != "IRT" && req.Currency != zarinpalWireCurrency {
		return types.PaymentData{}, fmt.Errorf("%w: zarinpal only accepts IRT or IRR", types.ErrInvalidRequest)
	}
	callback, err := d.callbackURL(firstNonEmpty(req.CallbackURL, req.ReturnURL), req.OrderID, wire, req.Currency)
	if err != nil {
		return types.PaymentData{}, err
	}

	meta := map[string]string{metadataOrderID: req.OrderID}
	if req.Customer.Email != "" {
		meta["email"] = req.Customer.Email
	}
	if req.Customer.Phone != "" {
		meta["mobile"] = req.Customer.Phone
	}

	var out zarinpalResponse
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"merchant_id":  d.merchantID,
			"amount":       wire.IntPart(),
			"currency":     zarinpalWireCurrency,
			"description":  firstNonEmpty(req.Description, "Order "+req.OrderID),
			"callback_url": callback,
			"metadata":     meta,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/request.json")
	if err != nil {
		return types.PaymentData{}, &types.UpstreamRequestError{Provider: ZarinpalName, Err: err}
	}

	r, ok := out.result()
	if !ok || r.Code != 100 || r.Authority == "" {
		return types.PaymentData{}, &types.UpstreamRequestError{
			Provider:   ZarinpalName,
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("code %d: %s", r.Code, firstNonEmpty(r.Message, res.String())),
		}
	}
	return types.PaymentData{
		TransactionID: r.Authority,
		RedirectURL:   d.base + "/pg/StartPay/" + r.Authority,
	}, nil
}

func (d *zarinpalDialect) callbackURL(raw, orderID string, wire decimal.Decimal, currency string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: callback url is required", types.ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: callback url: %v", types.ErrInvalidRequest, err)
	}
	signed := signature.Fields{
		"order_id": orderID,
		"amount":   wire.StringFixed(0),
		"currency": currency,
	}
	q := u.Query()
	for k, v := range signed {
		q.Set(k, v)
	}
	q.Set(zarinpalCallbackSigner.SignatureField, zarinpalCallbackSigner.Sign(d.callbackSecret, signed))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type zarinpalProof struct {
	fields    signature.Fields
	authority string
	result    zarinpalResult
}

func (d *zarinpalDialect) authenticate(ctx context.Context, env types.CallbackEnvelope) (authentic, error) {
	fields := flatten(env.Fields())

	values, err := fields.Require(append(zarinpalCallbackFields, zarinpalCallbackSigner.SignatureField)...)
	if err != nil {
		return authentic{}, err
	}
	signed := signature.Fields{}
	for i, k := range zarinpalCallbackFields {
		signed[k] = values[i]
	}
	signed[zarinpalCallbackSigner.SignatureField] = fields[zarinpalCallbackSigner.SignatureField]
	if err := zarinpalCallbackSigner.Verify(d.callbackSecret, signed); err != nil {
		return authentic{}, err
	}

	authority := fields["Authority"]
	if authority == "" {
		return authentic{}, fmt.Errorf("%w: Authority", signature.ErrMissingField)
	}
	wire, err := decimal.NewFromString(signed["amount"])
	if err != nil {
		return authentic{}, fmt.Errorf("amount %q: %w", signed["amount"], err)
	}

	r, err := d.verify(ctx, authority, wire)
	if err != nil {
		return authentic{}, err
	}
	switch r.Code {
	case 100, 101, -51:
	case -50, -53, -54, -55:
		return authentic{}, fmt.Errorf("verification rejected with code %d: %s", r.Code, r.Message)
	default:
		return authentic{}, &types.UpstreamRequestError{Provider: ZarinpalName, Message: fmt.Sprintf("code %d: %s", r.Code, r.Message)}
	}
	return authentic{env: env, proof: zarinpalProof{fields: fields, authority: authority, result: r}}, nil
}

func (d *zarinpalDialect) parse(_ context.Context, cb authentic) (notification, error) {
	p := cb.proof.(zarinpalProof)
	raw := strconv.Itoa(p.result.Code)
	if p.result.Code == -51 && p.fields["Status"] == zarinpalCancelled {
		raw = zarinpalCancelled
	}
	return zarinpalNotification(p.fields["order_id"], p.authority, raw, p.fields["amount"], p.fields["currency"], p.result), nil
}

// verifyPayment confirms a payment by authority. The amount must be the one
// the payment was created with.
func (d *zarinpalDialect) verifyPayment(ctx context.Context, ref types.PaymentReference, wire decimal.Decimal) (notification, error) {
	if ref.TransactionID == "" || !wire.IsPositive() {
		return notification{}, fmt.Errorf("%w: authority and amount are required", types.ErrInvalidRequest)
	}
	r, err := d.verify(ctx, ref.TransactionID, wire)
	if err != nil {
		return notification{}, err
	}
	switch r.Code {
	case 100, 101, -51:
	default:
		return notification{}, &types.UpstreamRequestError{Provider: ZarinpalName, Message: fmt.Sprintf("code %d: %s", r.Code, r.Message)}
	}
	return zarinpalNotification(ref.OrderID, ref.TransactionID, strconv.Itoa(r.Code), wire.StringFixed(0), ref.Currency, r), nil
}

func (d *zarinpalDialect) verify(ctx context.Context, authority string, wire decimal.Decimal) (zarinpalResult, error) {
	var out zarinpalResponse
	res, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"merchant_id": d.merchantID,
			"amount":      wire.IntPart(),
			"authority":   authority,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/verify.json")
	if err != nil {
		return zarinpalResult{}, &types.UpstreamRequestError{Provider: ZarinpalName, Err: err}
	}
	r, _ := out.result()
	if r.Code == 0 {
		return zarinpalResult{}, &types.UpstreamRequestError{Provider: ZarinpalName, StatusCode: res.StatusCode(), Message: res.String()}
	}
	return r, nil
}

func zarinpalNotification(orderID, authority, raw, wire, currency string, r zarinpalResult) notification {
	n := notification{
		OrderID:       orderID,
		TransactionID: authority,
		RawStatus:     raw,
		WireAmount:    wire,
		Currency:      currency,
		Metadata:      map[string]string{"authority": authority},
	}
	if r.RefID != 0 {
		n.TransactionID = strconv.FormatInt(r.RefID, 10)
	}
	if r.CardPan != "" {
		n.Metadata["card_pan"] = r.CardPan
	}
	return n
}
