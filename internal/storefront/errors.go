package storefront

import (
	"context"
	"errors"
	"net/http"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
	"github.com/jogardn/restaurant-storefront/internal/qrcode"
	"github.com/jogardn/restaurant-storefront/internal/submit"
)

var validationErrors = []error{
	submit.ErrEmptyOrder,
	submit.ErrInvalidOrderType,
	submit.ErrMissingTable,
	submit.ErrInvalidLine,
	submit.ErrInvalidReservation,
	submit.ErrMissingTableNumber,
	qrcode.ErrInvalidTableNumber,
}

// respondWithFailure maps an error from a backend-facing operation onto an
// HTTP answer with a message in the customer's language.
func (s *Server) respondWithFailure(w http.ResponseWriter, r *http.Request, err error) {
	lang := s.language(r)

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		s.respondWithError(w, http.StatusServiceUnavailable, i18n.T(lang, i18n.MsgServiceBusy))
		return
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		w.WriteHeader(499)
		return
	case errors.Is(err, submit.ErrTableNotFound):
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		s.logger.WithError(err).WithField("path", r.URL.Path).Warn("Backend unreachable")
		s.respondWithError(w, http.StatusBadGateway, i18n.T(lang, i18n.MsgConnection))
		return
	}

	s.logger.WithError(err).WithFields(map[string]interface{}{
		"path":           r.URL.Path,
		"backend_status": apiErr.Status,
	}).Warn("Backend refused request")

	switch {
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		s.respondWithError(w, http.StatusUnauthorized, i18n.T(lang, i18n.MsgSessionExpired))
	case apiErr.Status >= 500:
		s.respondWithError(w, http.StatusBadGateway, i18n.T(lang, i18n.MsgServiceBusy))
	default:
		s.respondWithError(w, http.StatusUnprocessableEntity, apiErr.Message)
	}
}
