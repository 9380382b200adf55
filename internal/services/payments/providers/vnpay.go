package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/amount"
	"golang-payment-adapters/internal/services/payments/signature"
	"golang-payment-adapters/internal/services/payments/status"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/shopspring/decimal"
)

const (
	VNPayName = "vnpay"

	vnpaySandboxURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	vnpayLiveURL    = "https://pay.vnpay.vn/vpcpay.html"

	vnpayHashField   = "vnp_SecureHash"
	vnpayTimeLayout  = "20060102150405"
	vnpayCurrency    = "VND"
	vnpayExpireAfter = 15 * time.Minute

	// vnpayAck is the body VNPay expects in answer to an accepted IPN.
	vnpayAck = `{"RspCode":"00","Message":"Confirm Success"}`
)

var vnpayProfile = profile{
	name:  VNPayName,
	units: amount.Cents,
	statuses: status.NewTable(map[string]types.Status{
		"00": types.StatusSuccess,
		"01": types.StatusPending,
		"02": types.StatusFailed,
		"04": types.StatusFailed,
		"05": types.StatusPending,
		"06": types.StatusPending,
		"07": types.StatusDisputed,
		"09": types.StatusFailed,
		"24": types.StatusCancelled,
	}),
}

var vnpaySigner = signature.Canonical{
	Hash:           signature.SHA512,
	Case:           signature.Lower,
	SignatureField: vnpayHashField,
	Exclude:        []string{"vnp_SecureHashType"},
	Escape:         true,
}

// vnpayZone is Vietnam time, which VNPay expects for every timestamp.
var vnpayZone = time.FixedZone("ICT", 7*60*60)

type vnpayDialect struct {
	payURL     string
	tmnCode    string
	hashSecret string
	version    string
	locale     string
	now        func() time.Time
}

// NewVNPay builds the VNPay adapter. Creation makes no API call: it returns
// a signed redirect to the VNPay payment page.
func NewVNPay(cfg config.VNPayConfig, opts ...Option) (*Adapter, error) {
	if err := checkConfig(VNPayName, cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	d := &vnpayDialect{
		payURL:     baseURL(cfg.ProviderCommon, vnpaySandboxURL, vnpayLiveURL),
		tmnCode:    cfg.TmnCode,
		hashSecret: cfg.HashSecret,
		version:    firstNonEmpty(cfg.Version, "2.1.0"),
		locale:     firstNonEmpty(cfg.Locale, "vn"),
		now:        o.now,
	}
	return newAdapter(vnpayProfile, d, o), nil
}

func (d *vnpayDialect) create(_ context.Context, req types.PaymentRequest, wire decimal.Decimal) (types.PaymentData, error) {
	if req.Currency != vnpayCurrency {
		return types.PaymentData{}, fmt.Errorf("%w: vnpay only accepts %s", types.ErrInvalidRequest, vnpayCurrency)
	}
	returnURL := firstNonEmpty(req.ReturnURL, req.CallbackURL)
	if returnURL == "" {
		return types.PaymentData{}, fmt.Errorf("%w: return url is required", types.ErrInvalidRequest)
	}

	now := d.now().In(vnpayZone)
	fields := signature.Fields{
		"vnp_Version":    d.version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    d.tmnCode,
		"vnp_Amount":     wire.StringFixed(0),
		"vnp_CurrCode":   vnpayCurrency,
		"vnp_TxnRef":     req.OrderID,
		"vnp_OrderInfo":  firstNonEmpty(req.Description, "Thanh toan don hang "+req.OrderID),
		"vnp_OrderType":  "other",
		"vnp_Locale":     d.locale,
		"vnp_ReturnUrl":  returnURL,
		"vnp_IpAddr":     firstNonEmpty(req.ClientIP, "127.0.0.1"),
		"vnp_CreateDate": now.Format(vnpayTimeLayout),
		"vnp_ExpireDate": now.Add(vnpayExpireAfter).Format(vnpayTimeLayout),
	}

	query := vnpaySigner.String(fields)
	redirect := d.payURL + "?" + query + "&" + vnpayHashField + "=" + vnpaySigner.Sign(d.hashSecret, fields)
	return types.PaymentData{RedirectURL: redirect}, nil
}

// authenticate checks an IPN or return redirect. Only vnp_ parameters are
// signed; anything else a proxy appended is ignored.
func (d *vnpayDialect) authenticate(_ context.Context, env types.CallbackEnvelope) (authentic, error) {
	fields := signature.Fields{}
	for k, v := range flatten(env.Fields()) {
		if strings.HasPrefix(k, "vnp_") {
			fields[k] = v
		}
	}
	// VNPay sends the digest in upper case and its reference merchant code
	// compares it ignoring case; we sign lower case.
	if h, ok := fields[vnpayHashField]; ok {
		fields[vnpayHashField] = strings.ToLower(h)
	}
	if err := vnpaySigner.Verify(d.hashSecret, fields); err != nil {
		return authentic{}, err
	}
	if fields["vnp_TmnCode"] != d.tmnCode {
		return authentic{}, fmt.Errorf("notification for terminal %q", fields["vnp_TmnCode"])
	}
	return authentic{env: env, proof: fields}, nil
}

func (d *vnpayDialect) parse(_ context.Context, cb authentic) (notification, error) {
	fields := cb.proof.(signature.Fields)
	order := fields["vnp_TxnRef"]
	if order == "" {
		return notification{}, missing("vnp_TxnRef")
	}

	raw := fields["vnp_TransactionStatus"]
	if code := fields["vnp_ResponseCode"]; raw == "" || code == "24" {
		raw = code
	}

	meta := map[string]string{"ack": vnpayAck}
	for key, field := range map[string]string{
		"bank_code":     "vnp_BankCode",
		"card_type":     "vnp_CardType",
		"pay_date":      "vnp_PayDate",
		"response_code": "vnp_ResponseCode",
	} {
		if v := fields[field]; v != "" {
			meta[key] = v
		}
	}
	return notification{
		OrderID:       order,
		TransactionID: fields["vnp_TransactionNo"],
		RawStatus:     raw,
		WireAmount:    fields["vnp_Amount"],
		Currency:      vnpayCurrency,
		Metadata:      meta,
	}, nil
}
