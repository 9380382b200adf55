package metric

import (
	"net/http"
	"time"
)

type (
	Factory interface {
		Payments() Payments
		Handler() http.Handler
	}

	Payments interface {
		Created(provider string, ok bool)
		Callback(provider, status string)
		SignatureFailure(provider string)
		Duplicate(provider string)
		Upstream(provider, operation string, duration time.Duration)
	}
)

// Nop discards everything. Useful in tests and when metrics are disabled.
type Nop struct{}

func (Nop) Created(string, bool)                   {}
func (Nop) Callback(string, string)                {}
func (Nop) SignatureFailure(string)                {}
func (Nop) Duplicate(string)                       {}
func (Nop) Upstream(string, string, time.Duration) {}
