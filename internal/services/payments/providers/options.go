package providers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments/types"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const userAgent = "golang-payment-adapters/1.0"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by the name operators put in config files
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type options struct {
	logger *zap.Logger
	ids    *snowflake.Node
	now    func() time.Time
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNode sets the snowflake node used to generate order ids.
func WithNode(n *snowflake.Node) Option {
	return func(o *options) { o.ids = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		// node 0 is only used when the caller does not run several instances
		o.ids, _ = snowflake.NewNode(0)
	}
	return o
}

// checkConfig returns a ConfigurationError naming the first required field
// that is empty.
func checkConfig(provider string, cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &types.ConfigurationError{Provider: provider, Field: verrs[0].Field()}
	}
	return fmt.Errorf("%s: checking configuration: %w", provider, err)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}

func baseURL(c config.ProviderCommon, sandbox, live string) string {
	switch {
	case c.BaseURL != "":
		return strings.TrimRight(c.BaseURL, "/")
	case c.Sandbox:
		return sandbox
	default:
		return live
	}
}

func newClient(base string, timeout time.Duration, logger *zap.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(logger.Sugar()).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

// send turns a resty outcome into an UpstreamRequestError when the request
// failed or the provider answered with an error status. message extracts
// the provider's own explanation from the decoded error body.
func send(provider string, res *resty.Response, err error, message func() string) error {
	if err != nil {
		return &types.UpstreamRequestError{Provider: provider, Err: err}
	}
	if res.IsError() {
		msg := ""
		if message != nil {
			msg = message()
		}
		if msg == "" {
			msg = strings.TrimSpace(res.String())
		}
		return &types.UpstreamRequestError{Provider: provider, StatusCode: res.StatusCode(), Message: msg}
	}
	return nil
}
