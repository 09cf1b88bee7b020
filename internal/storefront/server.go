package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/cart"
	"github.com/jogardn/restaurant-storefront/internal/catalog"
	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
	"github.com/jogardn/restaurant-storefront/internal/events"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
	"github.com/jogardn/restaurant-storefront/internal/qrcode"
	"github.com/jogardn/restaurant-storefront/internal/status"
	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/internal/submit"
	"github.com/jogardn/restaurant-storefront/internal/websocket"
)

const (
	SessionCookie = "sid"
	sessionMaxAge = 30 * 24 * time.Hour
)

type Options struct {
	BackendURL     string
	StaticToken    string
	ProxyPath      string
	AllowedOrigins []string
	SecureCookies  bool
}

type Server struct {
	options   Options
	kv        storage.KV
	client    *apiclient.Client
	breakers  *circuitbreaker.Manager
	status    *status.Service
	hub       *websocket.Hub
	events    events.Publisher
	qr        qrcode.TableGenerator
	formatter *i18n.Formatter
	proxy     *backendProxy
	menu      *menuIndex
	logger    *logrus.Logger
}

// NewServer wires the storefront API. kv is the process-wide store; each
// request works on a session-scoped view of it.
func NewServer(options Options, kv storage.KV, client *apiclient.Client, breakers *circuitbreaker.Manager,
	statusService *status.Service, hub *websocket.Hub, publisher events.Publisher,
	qr qrcode.TableGenerator, formatter *i18n.Formatter, httpClient apiclient.HTTPClient, logger *logrus.Logger) *Server {
	if publisher == nil {
		publisher = events.NopPublisher{Logger: logger}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Server{
		options:   options,
		kv:        kv,
		client:    client,
		breakers:  breakers,
		status:    statusService,
		hub:       hub,
		events:    publisher,
		qr:        qr,
		formatter: formatter,
		proxy:     newBackendProxy(options.BackendURL, options.ProxyPath, httpClient, logger),
		menu:      newMenuIndex(),
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.HealthCheck).Methods("GET")
	router.HandleFunc("/ws", s.hub.HandleWebSocket)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.sessionMiddleware)
	api.HandleFunc("/health/backend", s.BackendHealth).Methods("GET")
	api.HandleFunc("/catalog", s.GetCatalog).Methods("GET")
	api.HandleFunc("/cart", s.GetCart).Methods("GET")
	api.HandleFunc("/cart", s.ClearCart).Methods("DELETE")
	api.HandleFunc("/cart/items", s.AddCartItem).Methods("POST")
	api.HandleFunc("/cart/items/{id:[0-9]+}", s.UpdateCartItem).Methods("PUT")
	api.HandleFunc("/cart/items/{id:[0-9]+}", s.RemoveCartItem).Methods("DELETE")
	api.HandleFunc("/session", s.GetSession).Methods("GET")
	api.HandleFunc("/session/language", s.SetLanguage).Methods("PUT")
	api.HandleFunc("/session/table", s.SetTable).Methods("PUT")
	api.HandleFunc("/auth/login", s.Login).Methods("POST")
	api.HandleFunc("/auth/logout", s.Logout).Methods("POST")
	api.HandleFunc("/checkout", s.Checkout).Methods("POST")
	api.HandleFunc("/reservations", s.CreateReservation).Methods("POST")
	api.HandleFunc("/call-waiter", s.CallWaiter).Methods("POST")
	api.HandleFunc("/status", s.GetStatus).Methods("GET")
	api.HandleFunc("/admin/status", s.SetStatus).Methods("PUT")
	api.HandleFunc("/admin/settings", s.SaveSettings).Methods("POST")
	api.HandleFunc("/tables/{number}/qrcode", s.TableQRCode).Methods("GET")

	if prefix := s.proxy.prefix; prefix != "" {
		backend := router.PathPrefix(prefix + "/").Subrouter()
		backend.Use(s.sessionMiddleware)
		backend.PathPrefix("/").HandlerFunc(s.ProxyBackend)
	}

	router.Use(loggingMiddleware(s.logger))

	// credentials are only shared with origins named explicitly
	c := cors.New(cors.Options{
		AllowedOrigins:   s.options.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept-Language"},
		AllowCredentials: !allowsAnyOrigin(s.options.AllowedOrigins),
	})
	return c.Handler(router)
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

type contextKey string

const sessionKey contextKey = "session"

// session is everything one customer's requests work with.
type session struct {
	id        string
	kv        storage.KV
	cart      *cart.Store
	client    *apiclient.Client
	submitter *submit.Submitter
	catalog   *catalog.Fetcher
}

func (s *Server) newSession(id string) *session {
	kv := storage.ForSession(s.kv, id)
	client := s.client.WithTokens(apiclient.NewKVTokenStore(kv, s.options.StaticToken))
	return &session{
		id:        id,
		kv:        kv,
		cart:      cart.NewStore(kv, s.logger),
		client:    client,
		submitter: submit.New(client, s.logger),
		catalog:   catalog.NewFetcher(client, s.options.BackendURL, s.logger),
	}
}

// sessionMiddleware resolves the customer session from its cookie, issuing
// a new one when missing. A ?table= query, as printed in table QR codes,
// selects the table for the session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.options.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess := s.newSession(id)
		if table := strings.TrimSpace(r.URL.Query().Get("table")); qrcode.ValidTableNumber(table) {
			if err := sess.kv.Set(r.Context(), storage.KeyTableNumber, table); err != nil {
				s.logger.WithError(err).Warn("Failed to remember table from link")
			}
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session {
	sess, _ := r.Context().Value(sessionKey).(*session)
	return sess
}

// language picks ?lang=, then the stored choice, then Accept-Language.
func (s *Server) language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return i18n.Normalize(lang)
	}
	if sess := sessionFrom(r); sess != nil {
		if lang, ok, err := sess.kv.Get(r.Context(), storage.KeyLanguage); err == nil && ok && lang != "" {
			return i18n.Normalize(lang)
		}
	}
	return i18n.Normalize(r.Header.Get("Accept-Language"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"remote":   r.RemoteAddr,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal response")
		code = http.StatusInternalServerError
		response = []byte(`{"success":false,"message":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (s *Server) respondWithData(w http.ResponseWriter, code int, message string, data interface{}) {
	s.respondWithJSON(w, code, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
