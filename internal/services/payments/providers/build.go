package providers

import (
	"golang-payment-adapters/config"
)

// FromConfig builds an adapter for every enabled provider section. The first
// invalid section aborts startup.
func FromConfig(cfg *config.AppConfig, opts ...Option) ([]*Adapter, error) {
	type builder struct {
		enabled bool
		build   func() (*Adapter, error)
	}
	builders := []builder{
		{cfg.Stripe.Enabled, func() (*Adapter, error) { return NewStripe(cfg.Stripe, opts...) }},
		{cfg.PayPal.Enabled, func() (*Adapter, error) { return NewPayPal(cfg.PayPal, opts...) }},
		{cfg.Razorpay.Enabled, func() (*Adapter, error) { return NewRazorpay(cfg.Razorpay, opts...) }},
		{cfg.Paystack.Enabled, func() (*Adapter, error) { return NewPaystack(cfg.Paystack, opts...) }},
		{cfg.Cryptomus.Enabled, func() (*Adapter, error) { return NewCryptomus(cfg.Cryptomus, opts...) }},
		{cfg.Payeer.Enabled, func() (*Adapter, error) { return NewPayeer(cfg.Payeer, opts...) }},
		{cfg.VNPay.Enabled, func() (*Adapter, error) { return NewVNPay(cfg.VNPay, opts...) }},
		{cfg.Zarinpal.Enabled, func() (*Adapter, error) { return NewZarinpal(cfg.Zarinpal, opts...) }},
	}

	var out []*Adapter
	for _, b := range builders {
		if !b.enabled {
			continue
		}
		a, err := b.build()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
