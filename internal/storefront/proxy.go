package storefront

import (
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Cookie",
	"Set-Cookie",
}

// backendProxy forwards same-origin requests under prefix to the REST
// backend so pages never talk to it cross-origin.
type backendProxy struct {
	target string
	prefix string
	client apiclient.HTTPClient
	logger *logrus.Logger
}

func newBackendProxy(target, prefix string, client apiclient.HTTPClient, logger *logrus.Logger) *backendProxy {
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return &backendProxy{
		target: strings.TrimRight(target, "/"),
		prefix: prefix,
		client: client,
		logger: logger,
	}
}

// ProxyBackend forwards the request and attaches the session's bearer token
// when the page did not send one.
func (s *Server) ProxyBackend(w http.ResponseWriter, r *http.Request) {
	p := s.proxy
	path := strings.TrimPrefix(r.URL.Path, p.prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := p.target + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create proxy request")
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	req.ContentLength = r.ContentLength
	for k, v := range r.Header {
		req.Header[k] = v
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	if req.Header.Get("Authorization") == "" {
		if sess := sessionFrom(r); sess != nil {
			if token, err := apiclient.NewKVTokenStore(sess.kv, s.options.StaticToken).AccessToken(r.Context()); err == nil && token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("target", url).Warn("Failed to proxy to backend")
		s.respondWithError(w, http.StatusBadGateway, i18n.T(s.language(r), i18n.MsgConnection))
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.WithError(err).Warn("Failed to copy proxied response")
	}

	p.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("Proxied backend request")
}
