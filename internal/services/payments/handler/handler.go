package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-payment-adapters/internal/services/payments"
	"golang-payment-adapters/internal/services/payments/types"
	"golang-payment-adapters/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type ctxKey struct{}

type handler struct {
	service      *payments.Service
	log          *zap.Logger
	maxBodyBytes int64
}

func NewHandler(service *payments.Service, log *zap.Logger, maxBodyBytes int64) *handler {
	return &handler{
		service:      service,
		log:          log,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes mounts the payment endpoints. metrics may be nil.
func (h *handler) Routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestID, h.logRequests, middleware.Recoverer)

	r.Get("/providers", h.ListProviders)
	r.Post("/payments/{provider}", h.CreatePayment)
	r.Post("/payments/{provider}/verify", h.VerifyPayment)
	r.Post("/payments/{provider}/refunds", h.Refund)
	r.Get("/payments/{provider}/{transactionID}", h.GetStatus)

	// some providers notify with a redirect, others with a POST
	r.Get("/callbacks/{provider}", h.Callback)
	r.Post("/callbacks/{provider}", h.Callback)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func (h *handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.service.Providers()})
}

func (h *handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var body types.PaymentRequest
	if !h.decode(w, r, &body) {
		return
	}

	resp, err := h.service.CreatePayment(r.Context(), chi.URLParam(r, "provider"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var body types.PaymentReference
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.service.VerifyPayment(r.Context(), chi.URLParam(r, "provider"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) Refund(w http.ResponseWriter, r *http.Request) {
	var body types.RefundRequest
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.service.Refund(r.Context(), chi.URLParam(r, "provider"), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Callback forwards a provider notification untouched. Providers that expect
// a specific acknowledgement body get it; the rest get the result as JSON.
func (h *handler) Callback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.requestLog(r).Warn("reading callback body", zap.Error(err))
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request too large"})
		return
	}

	provider := chi.URLParam(r, "provider")
	h.requestLog(r).Debug("callback received",
		zap.String("provider", provider),
		zap.Int("bytes", len(payload)),
		logger.Headers("headers", r.Header),
	)

	env := types.CallbackEnvelope{Body: payload, Header: r.Header, Query: r.URL.Query()}
	res, err := h.service.HandleCallback(r.Context(), provider, env)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if ack := res.Metadata["ack"]; ack != "" {
		if strings.HasPrefix(ack, "{") {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, ack)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return false
	}
	return true
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		upstream     *types.UpstreamRequestError
		unrecognized *types.UnrecognizedCallbackError
	)

	code, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, payments.ErrProviderNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, types.ErrSignatureMismatch):
		// the reason stays in our logs
		code, msg = http.StatusUnauthorized, types.ErrSignatureMismatch.Error()
	case errors.As(err, &unrecognized), errors.Is(err, types.ErrInvalidRequest):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrUnsupportedOperation):
		code, msg = http.StatusNotImplemented, err.Error()
	case errors.As(err, &upstream):
		code, msg = http.StatusBadGateway, err.Error()
	}

	log := h.requestLog(r).With(zap.Int("status", code), zap.Error(err))
	if code >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.requestLog(r).Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *handler) requestLog(r *http.Request) *zap.Logger {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return h.log.With(zap.String("request_id", id))
	}
	return h.log
}
