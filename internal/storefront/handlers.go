package storefront

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/cart"
	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
	"github.com/jogardn/restaurant-storefront/internal/qrcode"
	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"service":   "storefront",
		"ws_pages":  s.hub.ClientCount(),
		"listeners": s.status.Broadcaster().Subscribers(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if counter, ok := s.kv.(interface{ Len() int }); ok {
		health["stored_keys"] = counter.Len()
	}
	s.respondWithJSON(w, http.StatusOK, health)
}

// BackendHealth reports the breaker guarding the backend. It does not call
// the backend itself.
func (s *Server) BackendHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.breakers.GetAllMetrics()
	healthy := true
	for _, m := range metrics {
		if fields, ok := m.(map[string]interface{}); ok && fields["state"] == circuitbreaker.StateOpen.String() {
			healthy = false
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	s.respondWithJSON(w, code, map[string]interface{}{
		"healthy":          healthy,
		"circuit_breakers": metrics,
		"last_check":       time.Now().Format(time.RFC3339),
	})
}

type catalogView struct {
	Language string          `json:"language"`
	RTL      bool            `json:"rtl"`
	Open     bool            `json:"open"`
	Catalog  *models.Catalog `json:"catalog"`
}

func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	lang := s.language(r)

	menu, err := sess.catalog.FetchMenuCatalog(r.Context())
	if err != nil {
		s.respondWithFailure(w, r, err)
		return
	}
	if menu == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, i18n.T(lang, i18n.MsgMenuUnavailable))
		return
	}
	s.menu.store(menu.Items)

	open, err := s.status.IsOpen(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read restaurant status")
	}
	s.respondWithData(w, http.StatusOK, "", catalogView{
		Language: lang,
		RTL:      i18n.IsRTL(lang),
		Open:     open,
		Catalog:  menu,
	})
}

type cartLine struct {
	models.CartItem
	PriceFormatted string `json:"price_formatted"`
}

type cartView struct {
	Items  []cartLine        `json:"items"`
	Totals models.CartTotals `json:"totals"`
}

func (s *Server) cartView(r *http.Request, items []models.CartItem) cartView {
	lang := s.language(r)
	lines := make([]cartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartLine{CartItem: item, PriceFormatted: s.formatter.Price(lang, item.Price)})
	}
	count, subtotal := cart.Totals(items)
	return cartView{
		Items: lines,
		Totals: models.CartTotals{
			Count:             count,
			Subtotal:          subtotal.InexactFloat64(),
			SubtotalFormatted: s.formatter.Decimal(lang, subtotal),
		},
	}
}

func (s *Server) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := sessionFrom(r).cart.Items(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read cart")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to read cart")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.cartView(r, items))
}

func (s *Server) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).cart.Clear(r.Context()); err != nil {
		s.logger.WithError(err).Error("Failed to clear cart")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.cartView(r, []models.CartItem{}))
}

type addItemRequest struct {
	models.CartItem
	// Extras are selected extra ids.
	Extras []string `json:"extras,omitempty"`
}

func (s *Server) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}
	// items from the last served menu are priced here, extras included
	if item, ok := s.menu.lookup(req.ID); ok {
		req.Price = cart.UnitPrice(item, req.Extras)
		if name := i18n.Text(item.Name, s.language(r)); name != "" {
			req.Name = name
		}
		if req.Image == "" {
			req.Image = item.Image
		}
	}
	if req.ID <= 0 || req.Price < 0 || strings.TrimSpace(req.Name) == "" {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	items, err := sessionFrom(r).cart.Add(r.Context(), req.CartItem, req.Qty)
	if err != nil {
		s.logger.WithError(err).Error("Failed to add cart item")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.cartView(r, items))
}

func (s *Server) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var req struct {
		Qty *int `json:"qty"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Qty == nil {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	items, err := sessionFrom(r).cart.Update(r.Context(), id, *req.Qty)
	if err != nil {
		s.logger.WithError(err).Error("Failed to update cart item")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.cartView(r, items))
}

func (s *Server) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	items, err := sessionFrom(r).cart.Remove(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to remove cart item")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.cartView(r, items))
}

type sessionView struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	RTL      bool   `json:"rtl"`
	Table    string `json:"table,omitempty"`
	Staff    string `json:"staff,omitempty"`
}

func (s *Server) sessionView(r *http.Request) sessionView {
	sess := sessionFrom(r)
	lang := s.language(r)
	table, _, _ := sess.kv.Get(r.Context(), storage.KeyTableNumber)
	staff, _, _ := sess.kv.Get(r.Context(), storage.KeyStaffUser)
	return sessionView{
		ID:       sess.id,
		Language: lang,
		RTL:      i18n.IsRTL(lang),
		Table:    table,
		Staff:    staff,
	}
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.respondWithData(w, http.StatusOK, "", s.sessionView(r))
}

func (s *Server) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Language) == "" {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	lang := i18n.Normalize(req.Language)
	if err := sessionFrom(r).kv.Set(r.Context(), storage.KeyLanguage, lang); err != nil {
		s.logger.WithError(err).Error("Failed to store language")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to store language")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.sessionView(r))
}

// SetTable selects the table for dine-in orders and waiter calls. An empty
// table clears it.
func (s *Server) SetTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Table string `json:"table"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	sess := sessionFrom(r)
	table := strings.TrimSpace(req.Table)
	var err error
	switch {
	case table == "":
		err = sess.kv.Delete(r.Context(), storage.KeyTableNumber)
	case qrcode.ValidTableNumber(table):
		err = sess.kv.Set(r.Context(), storage.KeyTableNumber, table)
	default:
		s.respondWithError(w, http.StatusBadRequest, qrcode.ErrInvalidTableNumber.Error())
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to store table")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to store table")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.sessionView(r))
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Username == "" || req.Password == "" {
		s.respondWithError(w, http.StatusBadRequest, i18n.T(s.language(r), i18n.MsgInvalidRequest))
		return
	}

	sess := sessionFrom(r)
	if err := sess.client.Login(r.Context(), req.Username, req.Password); err != nil {
		if apiclient.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
			s.respondWithError(w, http.StatusUnauthorized, i18n.T(s.language(r), i18n.MsgLoginFailed))
			return
		}
		s.respondWithFailure(w, r, err)
		return
	}
	if err := sess.kv.Set(r.Context(), storage.KeyStaffUser, req.Username); err != nil {
		s.logger.WithError(err).Error("Failed to store staff user")
	}
	s.logger.WithFields(logrus.Fields{"session": sess.id, "user": req.Username}).Info("Staff signed in")
	s.respondWithData(w, http.StatusOK, "", s.sessionView(r))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	err := sess.client.Logout(r.Context())
	if err == nil {
		err = sess.kv.Delete(r.Context(), storage.KeyStaffUser)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to clear tokens")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	s.respondWithData(w, http.StatusOK, "", s.sessionView(r))
}
