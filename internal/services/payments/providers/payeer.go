package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/signature"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	PayeerName = "payeer"

	payeerURL = "https://payeer.com"
)

var payeerProfile = profile{
	name:  PayeerName,
	units: amount.Major,
	statuses: status.NewTable(map[string]types.Status{
		"success": types.StatusSuccess,
		"fail":    types.StatusFailed,
		"error":   types.StatusFailed,
	}),
}

var payeerSigner = signature.Concat{Hash: signature.SHA256, Separator: ":", Case: signature.Upper}

// payeerSigned lists the status notification fields in signing order.
// m_params is signed too, but only when present.
var payeerSigned = []string{
	"m_operation_id",
	"m_operation_ps",
	"m_operation_date",
	"m_operation_pay_date",
	"m_shop",
	"m_orderid",
	"m_amount",
	"m_curr",
	"m_desc",
	"m_status",
}

type payeerDialect struct {
	http      *resty.Client
	account   string
	apiID     string
	apiPass   string
	shopID    string
	secretKey string
}

// NewPayeer builds the Payeer adapter. Invoices are created through the
// merchant API; status notifications must be acknowledged with the body
// found in the result's "ack" metadata.
func NewPayeer(cfg config.PayeerConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(PayeerName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &payeerDialect{
		http:      newClient(baseURL(cfg.ProviderCommon, payeerURL, payeerURL), cfg.Timeout, o.logger),
		account:   cfg.Account,
		apiID:     cfg.APIID,
		apiPass:   cfg.APIPass,
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
	}
	return newAdapter(payeerProfile, d, o), nil
}

func (d *payeerDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	desc := req.Description
	if desc == "" {
		desc = "Order " + req.OrderID
	}
	form := map[string]string{
		"account":   d.account,
		"apiId":     d.apiID,
		"apiPass":   d.apiPass,
		"action":    "invoiceCreate",
		"m_shop":    d.shopID,
		"m_orderid": req.OrderID,
		"m_amount":  payeerProfile.units.FormatWire(wire, req.Currency),
		"m_curr":    req.Currency,
		"m_desc":    base64.StdEncoding.EncodeToString([]byte(desc)),
	}
	form["m_sign"] = payeerSigner.Sign(form["m_shop"], form["m_orderid"], form["m_amount"], form["m_curr"], form["m_desc"], d.secretKey)

	var out struct {
		Success bool            `json:"success"`
		URL     string          `json:"url"`
		Errors  json.RawMessage `json:"errors"`
	}
	res, err := d.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&out).
		ForceContentType("application/json").
		Post("/ajax/api/api.php?invoiceCreate")
	if err := send(PayeerName, res, err, func() string { return string(out.Errors) }); err != nil {
		return types.PaymentData{}, err
	}
	if !out.Success || out.URL == "" {
		return types.PaymentData{}, &types.UpstreamRequestError{Provider: PayeerName, StatusCode: res.StatusCode(), Message: payeerErrors(out.Errors)}
	}
	return types.PaymentData{RedirectURL: out.URL}, nil
}

func (d *payeerDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	fields := flatten(env.Fields())
	values, err := fields.Require(payeerSigned...)
	if err != nil {
		return authentic{}, err
	}
	if params, ok := fields["m_params"]; ok {
		values = append(values, params)
	}
	values = append(values, d.secretKey)

	if err := payeerSigner.Verify(fields["m_sign"], values...); err != nil {
		return authentic{}, err
	}
	if fields["m_shop"] != d.shopID {
		return authentic{}, fmt.Errorf("notification for shop %q", fields["m_shop"])
	}
	return authentic{env: env, proof: fields}, nil
}

func (d *payeerDialect) parse(_ context.Context, cb authentic) (notification, error) {
	fields := cb.proof.(signature.Fields)
	order := fields["m_orderid"]
	if order == "" {
		return notification{}, missing("m_orderid")
	}

	ack := order + "|success"
	if fields["m_status"] != "success" {
		ack = order + "|error"
	}
	return notification{
		OrderID:       order,
		TransactionID: fields["m_operation_id"],
		RawStatus:     fields["m_status"],
		WireAmount:    fields["m_amount"],
		Currency:      fields["m_curr"],
		Metadata: map[string]string{
			"ack":            ack,
			"payment_system": fields["m_operation_ps"],
		},
	}, nil
}

func payeerErrors(raw json.RawMessage) string {
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	if len(raw) > 0 && string(raw) != "null" {
		return string(raw)
	}
	return "invoice was not created"
}
