package transport

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"tickstock-core/internal/filter"
)

// Config controls the websocket upgrade endpoint. Mirrors the shape of
// the teacher's DashboardConfig (internal/config.DashboardConfig) but
// is kept local to this package so transport has no dependency on the
// process-wide config package.
type Config struct {
	AllowedOrigins []string
}

// Handler upgrades HTTP connections to websocket clients registered
// with a Hub.
type Handler struct {
	hub    *Hub
	cfg    Config
	logger *slog.Logger
}

// NewHandler creates a websocket upgrade Handler bound to hub.
func NewHandler(hub *Hub, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, cfg: cfg, logger: logger.With("component", "transport-handler")}
}

// ServeWebSocket upgrades the request and registers the resulting
// connection as a new display-channel subscriber.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg.AllowedOrigins, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	NewClient(h.hub, conn, h.subscriberFilter(r))
}

// subscriberFilter derives a per-connection filter.Config from an
// optional ?filter=<json> query parameter (§4.4), falling back to
// filter.DefaultConfig() when absent or invalid.
func (h *Handler) subscriberFilter(r *http.Request) filter.Config {
	raw := r.URL.Query().Get("filter")
	if raw == "" {
		return filter.DefaultConfig()
	}

	cfg := filter.DefaultConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		h.logger.Warn("invalid filter query parameter, using defaults", "error", err)
		return filter.DefaultConfig()
	}
	if err := filter.Validate(cfg); err != nil {
		h.logger.Warn("filter query parameter failed validation, using defaults", "error", err)
		return filter.DefaultConfig()
	}
	return cfg
}

func isOriginAllowed(origin string, allowed []string, reqHost string) bool {
	if origin == "" {
		// Non-browser clients (e.g. server-to-server subscribers) often
		// omit Origin; keep this path functional.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if host, _, err := net.SplitHostPort(reqHost); err == nil {
		reqHost = host
	}
	if originURL.Hostname() == reqHost {
		return true
	}

	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || a == origin || a == originURL.Hostname() {
			return true
		}
	}
	return false
}
