package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// csrfMiddleware rejects state-changing requests whose Origin, or Referer
// when Origin is absent, does not name the host being served. Safe methods
// and the health and static endpoints pass through.
func csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		path := r.URL.Path
		if path == "/healthz" || strings.HasPrefix(path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if !isValidOrigin(r) {
			http.Error(w, "Forbidden: Invalid origin", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}

	requestHost := r.Host
	if requestHost == "" {
		requestHost = r.URL.Host
	}

	return normalizeHost(originURL.Host) == normalizeHost(requestHost)
}

// normalizeHost drops the port and folds loopback names to "localhost".
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return host
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return "localhost"
	}
	return host
}
