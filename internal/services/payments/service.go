package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/types"
	"golang-payment-adapters/pkg/metric"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FulfilFunc is called once for every order that reaches a successful
// status. Returning an error leaves the order unfulfilled so the next
// delivery retries it.
type FulfilFunc func(ctx context.Context, result types.PaymentResult) error

// Service routes requests to providers and makes fulfilment idempotent:
// providers deliver the same callback several times, sometimes concurrently.
type Service struct {
	registry *Registry
	fulfil   FulfilFunc
	log      *zap.Logger
	metrics  metric.Payments

	fulfilled *expirable.LRU[string, types.PaymentResult]
	inflight  singleflight.Group
}

func NewService(
	registry *Registry,
	cfg config.CallbacksConfig,
	fulfil FulfilFunc,
	log *zap.Logger,
	metrics metric.Payments,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = metric.Nop{}
	}
	return &Service{
		registry:  registry,
		fulfil:    fulfil,
		log:       log,
		metrics:   metrics,
		fulfilled: expirable.NewLRU[string, types.PaymentResult](cfg.DedupeSize, nil, cfg.DedupeTTL),
	}
}

func (s *Service) Providers() []string {
	return s.registry.Names()
}

func (s *Service) CreatePayment(ctx context.Context, provider string, req types.PaymentRequest) (*types.CreateResponse, error) {
	const op = "payments.Service.CreatePayment"

	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.CreatePayment(ctx, req)
	s.metrics.Upstream(p.Name(), "create", time.Since(start))
	s.metrics.Created(p.Name(), err == nil)
	if err != nil {
		s.log.Warn("payment creation failed", zap.String("provider", p.Name()), zap.String("op", op), zap.Error(err))
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("provider", p.Name()),
		zap.String("order_id", resp.Data.OrderID),
		zap.String("transaction_id", resp.Data.TransactionID),
		zap.String("wire_amount", resp.Data.WireAmount),
	)
	return resp, nil
}

// HandleCallback authenticates and normalizes a provider notification, then
// fulfils the order if it succeeded and was not fulfilled before.
func (s *Service) HandleCallback(ctx context.Context, provider string, env types.CallbackEnvelope) (*types.PaymentResult, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.HandleCallback(ctx, env)
	s.metrics.Upstream(p.Name(), "callback", time.Since(start))
	if err != nil {
		if errors.Is(err, types.ErrSignatureMismatch) {
			s.metrics.SignatureFailure(p.Name())
		}
		s.log.Warn("callback rejected", zap.String("provider", p.Name()), zap.Error(err))
		return nil, err
	}
	s.metrics.Callback(p.Name(), string(res.Status))

	return s.settle(ctx, res)
}

func (s *Service) VerifyPayment(ctx context.Context, provider string, ref types.PaymentReference) (*types.PaymentResult, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	v, ok := p.(PaymentVerifier)
	if !ok {
		return nil, fmt.Errorf("%s: verify payment: %w", p.Name(), types.ErrUnsupportedOperation)
	}

	start := time.Now()
	res, err := v.VerifyPayment(ctx, ref)
	s.metrics.Upstream(p.Name(), "verify", time.Since(start))
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, res)
}

func (s *Service) Refund(ctx context.Context, provider string, req types.RefundRequest) (*types.RefundResult, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	r, ok := p.(Refunder)
	if !ok {
		return nil, fmt.Errorf("%s: refund: %w", p.Name(), types.ErrUnsupportedOperation)
	}

	start := time.Now()
	res, err := r.Refund(ctx, req)
	s.metrics.Upstream(p.Name(), "refund", time.Since(start))
	if err != nil {
		return nil, err
	}
	s.log.Info("refund requested",
		zap.String("provider", p.Name()),
		zap.String("transaction_id", res.TransactionID),
		zap.String("refund_id", res.RefundID),
		zap.String("status", string(res.Status)),
	)
	return res, nil
}

func (s *Service) GetStatus(ctx context.Context, provider, transactionID string) (*types.PaymentResult, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	c, ok := p.(StatusChecker)
	if !ok {
		return nil, fmt.Errorf("%s: get status: %w", p.Name(), types.ErrUnsupportedOperation)
	}

	start := time.Now()
	defer func() { s.metrics.Upstream(p.Name(), "status", time.Since(start)) }()
	return c.GetStatus(ctx, transactionID)
}

// settle runs the fulfilment sink at most once per provider and order.
// Concurrent deliveries for the same order wait for the first one, and
// every later delivery gets the result that was fulfilled.
func (s *Service) settle(ctx context.Context, res *types.PaymentResult) (*types.PaymentResult, error) {
	if !res.Status.Fulfillable() {
		if res.Status.Terminal() {
			s.log.Info("payment closed without fulfilment",
				zap.String("provider", res.Provider),
				zap.String("order_id", res.OrderID),
				zap.String("status", string(res.Status)),
				zap.String("raw_status", res.RawStatus),
			)
		}
		return res, nil
	}

	key := res.Provider + ":" + res.OrderID
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		if prev, ok := s.fulfilled.Get(key); ok {
			s.metrics.Duplicate(res.Provider)
			s.log.Debug("duplicate callback", zap.String("provider", res.Provider), zap.String("order_id", res.OrderID))
			return prev, nil
		}
		if s.fulfil != nil {
			// shared with concurrent duplicates, so it outlives the caller that started it
			if err := s.fulfil(context.WithoutCancel(ctx), *res); err != nil {
				return nil, err
			}
		}
		s.fulfilled.Add(key, *res)
		s.log.Info("order fulfilled",
			zap.String("provider", res.Provider),
			zap.String("order_id", res.OrderID),
			zap.String("transaction_id", res.TransactionID),
			zap.String("amount", res.Amount.String()),
			zap.String("currency", res.Currency),
		)
		return *res, nil
	})
	if err != nil {
		s.log.Error("fulfilment failed", zap.String("provider", res.Provider), zap.String("order_id", res.OrderID), zap.Error(err))
		return nil, fmt.Errorf("payments.Service.settle: fulfilling order %s: %w", res.OrderID, err)
	}

	out := v.(types.PaymentResult)
	return &out, nil
}
