package payments

import (
	"context"

	"golang-payment-adapters/internal/services/payments/types"
)

// PaymentProvider is the unified contract every provider adapter satisfies.
type PaymentProvider interface {
	Name() string
	CreatePayment(ctx context.Context, req types.PaymentRequest) (*types.CreateResponse, error)
	HandleCallback(ctx context.Context, env types.CallbackEnvelope) (*types.PaymentResult, error)
}

// The optional operations. A provider that does not support one still
// implements it and returns types.ErrUnsupportedOperation.
type (
	PaymentVerifier interface {
		VerifyPayment(ctx context.Context, ref types.PaymentReference) (*types.PaymentResult, error)
	}

	Refunder interface {
		Refund(ctx context.Context, req types.RefundRequest) (*types.RefundResult, error)
	}

	StatusChecker interface {
		GetStatus(ctx context.Context, transactionID string) (*types.PaymentResult, error)
	}
)
