package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
)

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		// acknowledged like any other unprocessable event; nothing was verified or stored
		metrics.WebhookDuration.WithLabelValues("unreadable").Observe(time.Since(start).Seconds())
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("webhook body unreadable, acknowledged")
		writeJSON(w, http.StatusOK, map[string]bool{"received": false})
		return
	}

	// the provider hanging up must not abort a grant or a delivery half way
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RequestTimeout)
	defer cancel()

	res := s.router.Handle(ctx, body, r.Header.Get(s.opts.SignatureHeader))

	result := "ok"
	switch {
	case errors.Is(res.Err, domain.ErrMissingSignature):
		result = "missing_signature"
	case res.Rejected():
		result = "invalid_signature"
	case res.Err != nil:
		result = "error"
	}
	metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if res.Rejected() {
		msg := "Invalid signature"
		if errors.Is(res.Err, domain.ErrMissingSignature) {
			msg = "Missing signature"
		}
		writeError(w, http.StatusUnauthorized, msg)
		return
	}
	if res.Err != nil {
		logging.With(r.Context(), s.log).Warn().Err(res.Err).Str("event_id", res.EventID).Msg("webhook acknowledged with error")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
