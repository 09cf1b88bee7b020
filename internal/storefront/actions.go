package storefront

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jogardn/restaurant-storefront/internal/cart"
	"github.com/jogardn/restaurant-storefront/internal/events"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

type checkoutRequest struct {
	OrderType models.OrderType `json:"order_type"`
	Notes     string           `json:"notes"`
	// LineNotes are keyed by product id.
	LineNotes map[string]string `json:"line_notes"`
	Table     string            `json:"table"`
	TableID   int64             `json:"table_id"`
}

// Checkout turns the session cart into one order. The cart is cleared only
// after the backend accepted the order.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	lang := s.language(r)

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(lang, i18n.MsgInvalidRequest))
		return
	}

	if !s.acceptingOrders(r.Context()) {
		s.respondWithError(w, http.StatusConflict, i18n.T(lang, i18n.MsgRestaurantClosed))
		return
	}

	items, err := sess.cart.Items(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read cart")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to read cart")
		return
	}
	if len(items) == 0 {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(lang, i18n.MsgCartEmpty))
		return
	}

	table := strings.TrimSpace(req.Table)
	if table == "" {
		table, _, _ = sess.kv.Get(r.Context(), storage.KeyTableNumber)
	}
	orderType := req.OrderType
	if orderType == "" {
		orderType = models.OrderTypeTakeaway
		if table != "" || req.TableID > 0 {
			orderType = models.OrderTypeDineIn
		}
	}

	order := models.OrderRequest{
		OrderType: orderType,
		TableID:   req.TableID,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if orderType == models.OrderTypeDineIn {
		order.TableNumber = table
	}
	for _, item := range items {
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID: item.ID,
			Quantity:  item.Qty,
			Notes:     strings.TrimSpace(req.LineNotes[strconv.FormatInt(item.ID, 10)]),
		})
	}

	result, err := sess.submitter.SubmitOrder(r.Context(), order)
	if err != nil {
		s.respondWithFailure(w, r, err)
		return
	}

	if err := sess.cart.Clear(r.Context()); err != nil {
		s.logger.WithError(err).Error("Order placed but cart could not be cleared")
	}

	count, subtotal := cart.Totals(items)
	if err := s.events.PublishOrderSubmitted(r.Context(), events.OrderSubmittedEvent{
		SessionID:   sess.id,
		OrderType:   orderType,
		TableNumber: order.TableNumber,
		ItemCount:   count,
		Subtotal:    subtotal.StringFixed(2),
		Endpoint:    result.Endpoint,
		Shape:       result.Shape,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish order event")
	}

	s.respondWithData(w, http.StatusCreated, i18n.T(lang, i18n.MsgOrderPlaced), result)
}

// acceptingOrders is false only when the restaurant was explicitly closed.
func (s *Server) acceptingOrders(ctx context.Context) bool {
	open, err := s.status.IsOpen(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read restaurant status, accepting order")
		return true
	}
	return open
}

func (s *Server) CreateReservation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	lang := s.language(r)

	var req models.ReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(lang, i18n.MsgInvalidRequest))
		return
	}

	result, err := sess.submitter.SubmitReservation(r.Context(), req)
	if err != nil {
		s.respondWithFailure(w, r, err)
		return
	}

	if err := s.events.PublishReservationCreated(r.Context(), events.ReservationCreatedEvent{
		SessionID: sess.id,
		Guests:    req.Guests,
		Date:      req.Date,
		Time:      req.Time,
		Shape:     result.Shape,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish reservation event")
	}

	s.respondWithData(w, http.StatusCreated, i18n.T(lang, i18n.MsgReservationReceived), result)
}

// CallWaiter defaults to the session's table when the request names none.
func (s *Server) CallWaiter(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	lang := s.language(r)

	var req models.CallRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(lang, i18n.MsgInvalidRequest))
		return
	}
	if strings.TrimSpace(req.TableNumber) == "" {
		req.TableNumber, _, _ = sess.kv.Get(r.Context(), storage.KeyTableNumber)
	}

	result, err := sess.submitter.SubmitCallRequest(r.Context(), req)
	if err != nil {
		s.respondWithFailure(w, r, err)
		return
	}

	if err := s.events.PublishWaiterCalled(r.Context(), events.WaiterCalledEvent{
		SessionID:   sess.id,
		TableNumber: strings.TrimSpace(req.TableNumber),
		Reason:      req.Reason,
		Shape:       result.Shape,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish waiter event")
	}

	s.respondWithData(w, http.StatusCreated, i18n.T(lang, i18n.MsgWaiterCalled, strings.TrimSpace(req.TableNumber)), result)
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	open, err := s.status.IsOpen(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read restaurant status")
	}
	s.respondWithData(w, http.StatusOK, "", map[string]bool{"open": open})
}

// requireStaff answers 401 and returns false unless the session signed in.
func (s *Server) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	staff, ok, err := sessionFrom(r).kv.Get(r.Context(), storage.KeyStaffUser)
	if err != nil || !ok || staff == "" {
		s.respondWithError(w, http.StatusUnauthorized, i18n.T(s.language(r), i18n.MsgSessionExpired))
		return false
	}
	return true
}

func (s *Server) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}

	var req struct {
		Open *bool `json:"open"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Open == nil {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	event, err := s.status.SetOpen(r.Context(), *req.Open)
	if err != nil {
		s.logger.WithError(err).Error("Failed to store restaurant status")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to store restaurant status")
		return
	}
	s.respondWithData(w, http.StatusOK, "", event)
}

func (s *Server) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.status.SettingsSaved(r.Context()))
}

func (s *Server) TableQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := s.qr.Generate(mux.Vars(r)["number"])
	if err != nil {
		s.respondWithFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
