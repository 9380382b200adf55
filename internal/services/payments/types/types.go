package types

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// PaymentRequest is what the caller hands to CreatePayment. Amount is always in
// major currency units; adapters convert it to the provider's wire unit.
type PaymentRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"    validate:"required,len=3"`
	OrderID     string            `json:"orderId"     validate:"omitempty,max=64"`
	Description string            `json:"description"`
	Customer    Customer          `json:"customer"`
	CallbackURL string            `json:"callbackUrl" validate:"omitempty,url"`
	ReturnURL   string            `json:"returnUrl"   validate:"omitempty,url"`
	CancelURL   string            `json:"cancelUrl"   validate:"omitempty,url"`
	ClientIP    string            `json:"clientIp"    validate:"omitempty,ip"`
	Metadata    map[string]string `json:"metadata"`
}

type PaymentData struct {
	OrderID       string            `json:"orderId"`
	TransactionID string            `json:"transactionId,omitempty"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
	ClientSecret  string            `json:"clientSecret,omitempty"`
	WireAmount    string            `json:"wireAmount"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// CreateResponse mirrors the {status, data} envelope returned for every
// successful creation regardless of provider.
type CreateResponse struct {
	Status string      `json:"status"`
	Data   PaymentData `json:"data"`
}

const CreateStatusSuccess = "success"

type PaymentResult struct {
	Status        Status            `json:"status"`
	Provider      string            `json:"provider"`
	TransactionID string            `json:"transactionId"`
	OrderID       string            `json:"orderId"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	RawStatus     string            `json:"rawStatus"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentReference identifies an existing payment for the optional
// verify/status operations. Amount is in major units.
type PaymentReference struct {
	OrderID       string          `json:"orderId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	// Params carries the fields a provider appended to the customer's
	// return redirect.
	Params map[string]string `json:"params,omitempty"`
}

// RefundRequest refunds TransactionID. A zero Amount refunds the full payment.
type RefundRequest struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

type RefundResult struct {
	RefundID      string          `json:"refundId"`
	TransactionID string          `json:"transactionId"`
	Status        Status          `json:"status"`
	RawStatus     string          `json:"rawStatus"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// CallbackEnvelope carries a provider notification exactly as it reached the
// HTTP layer.
type CallbackEnvelope struct {
	Body   []byte
	Header http.Header
	Query  url.Values
}

// Fields merges query parameters with a form-encoded body. Body values win on
// conflict. JSON bodies contribute nothing.
func (e CallbackEnvelope) Fields() url.Values {
	out := url.Values{}
	for k, v := range e.Query {
		out[k] = append([]string(nil), v...)
	}
	if len(e.Body) == 0 || !e.isForm() {
		return out
	}
	form, err := url.ParseQuery(string(e.Body))
	if err != nil {
		return out
	}
	for k, v := range form {
		out[k] = v
	}
	return out
}

func (e CallbackEnvelope) isForm() bool {
	ct := e.Header.Get("Content-Type")
	if ct == "" {
		trimmed := strings.TrimSpace(string(e.Body))
		return trimmed != "" && trimmed[0] != '{' && trimmed[0] != '['
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/x-www-form-urlencoded"
}
