package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/signature"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	CryptomusName = "cryptomus"

	cryptomusURL = "https://api.cryptomus.com"
)

var cryptomusProfile = profile{
	name:  CryptomusName,
	units: amount.Major.With(amount.New(0, 8), cryptoCurrencies...),
	statuses: status.NewTable(map[string]types.Status{
		"paid":                 types.StatusSuccess,
		"paid_over":            types.StatusSuccess,
		"wrong_amount":         types.StatusFailed,
		"wrong_amount_waiting": types.StatusPending,
		"process":              types.StatusPending,
		"confirm_check":        types.StatusPending,
		"check":                types.StatusPending,
		"locked":               types.StatusPending,
		"fail":                 types.StatusFailed,
		"system_fail":          types.StatusFailed,
		"cancel":               types.StatusCancelled,
		"refund_process":       types.StatusPending,
		"refund_paid":          types.StatusRefunded,
	}),
}

// cryptoCurrencies are priced to eight places; fiat keeps two.
var cryptoCurrencies = []string{"BTC", "ETH", "LTC", "USDT", "USDC", "TRX", "TON", "BNB", "SOL", "DOGE", "XMR", "DAI"}

var cryptomusSigner = signature.Encoded{Hash: signature.MD5, Case: signature.Lower}

type cryptomusDialect struct {
	http   *resty.Client
	apiKey string
}

// NewCryptomus builds the Cryptomus adapter. Request bodies and webhooks are
// both signed with md5(base64(json) + api key).
func NewCryptomus(cfg config.CryptomusConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(CryptomusName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &cryptomusDialect{
		http: newClient(baseURL(cfg.ProviderCommon, cryptomusURL, cryptomusURL), cfg.Timeout, o.logger).
			SetHeader("merchant", cfg.MerchantID),
		apiKey: cfg.APIKey,
	}
	return newAdapter(cryptomusProfile, d, o), nil
}

type cryptomusInvoice struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

type cryptomusResponse struct {
	State   int              `json:"state"`
	Message string           `json:"message"`
	Result  cryptomusInvoice `json:"result"`
}

// post signs the exact bytes it sends.
func (d *cryptomusDialect) post(ctx context.Context, path string, payload any) (*cryptomusResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var out cryptomusResponse
	res, err := d.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("sign", cryptomusSigner.Sign(d.apiKey, body)).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(path)
	if err := send(CryptomusName, res, err, func() string { return out.Message }); err != nil {
		return nil, err
	}
	if out.State != 0 {
		return nil, &types.UpstreamRequestError{Provider: CryptomusName, StatusCode: res.StatusCode(), Message: out.Message}
	}
	return &out, nil
}

func (d *cryptomusDialect) create(ctx context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	payload := map[string]any{
		"amount":   cryptomusProfile.units.FormatWire(wire, req.Currency),
		"currency": req.Currency,
		"order_id": req.OrderID,
	}
	if req.CallbackURL != "" {
		payload["url_callback"] = req.CallbackURL
	}
	if req.ReturnURL != "" {
		payload["url_return"] = req.ReturnURL
		payload["url_success"] = req.ReturnURL
	}
	if req.Description != "" {
		payload["additional_data"] = req.Description
	}

	out, err := d.post(ctx, "/v1/payment", payload)
	if err != nil {
		return types.PaymentData{}, err
	}
	return types.PaymentData{TransactionID: out.Result.UUID, RedirectURL: out.Result.URL}, nil
}

// authenticate checks the sign member against the rest of the body, with
// slashes escaped the way the signer's JSON encoder wrote them.
func (d *cryptomusDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	rest, claimed, err := signature.StripJSONField(env.Body, "sign")
	if err != nil {
		return authentic{}, err
	}
	if err := cryptomusSigner.Verify(d.apiKey, signature.EscapeSlashes(rest), claimed); err != nil {
		return authentic{}, err
	}
	return authentic{env: env}, nil
}

var cryptomusDrift = driftPaths{
	order:       []string{"order_id"},
	transaction: []string{"uuid"},
	status:      []string{"status"},
	currency:    []string{"currency"},
}

func (d *cryptomusDialect) parse(_ context.Context, cb authentic) (notification, error) {
	var ev struct {
		Type          string `json:"type"`
		UUID          string `json:"uuid"`
		OrderID       string `json:"order_id"`
		Amount        string `json:"amount"`
		PaymentAmount string `json:"payment_amount"`
		Currency      string `json:"currency"`
		PayerCurrency string `json:"payer_currency"`
		Network       string `json:"network"`
		Status        string `json:"status"`
		TxID          string `json:"txid"`
	}
	if err := json.Unmarshal(cb.env.Body, &ev); err != nil {
		return cryptomusDrift.salvage(cb.env.Body, fmt.Errorf("decoding webhook: %w", err))
	}
	if ev.OrderID == "" {
		return notification{}, missing("order_id")
	}

	meta := map[string]string{}
	for k, v := range map[string]string{
		"type":           ev.Type,
		"payment_amount": ev.PaymentAmount,
		"payer_currency": ev.PayerCurrency,
		"network":        ev.Network,
		"txid":           ev.TxID,
	} {
		if v != "" {
			meta[k] = v
		}
	}
	return notification{
		OrderID:       ev.OrderID,
		TransactionID: ev.UUID,
		RawStatus:     ev.Status,
		WireAmount:    ev.Amount,
		Currency:      ev.Currency,
		Metadata:      meta,
	}, nil
}

// getStatus reads an invoice by its uuid.
func (d *cryptomusDialect) getStatus(ctx context.Context, transactionID string) (notification, error) {
	out, err := d.post(ctx, "/v1/payment/info", map[string]string{"uuid": transactionID})
	if err != nil {
		return notification{}, err
	}
	inv := out.Result
	return notification{
		OrderID:       inv.OrderID,
		TransactionID: inv.UUID,
		RawStatus:     firstNonEmpty(inv.PaymentStatus, inv.Status),
		WireAmount:    inv.Amount,
		Currency:      inv.Currency,
	}, nil
}
