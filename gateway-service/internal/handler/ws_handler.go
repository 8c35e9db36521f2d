package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Readiness reports whether the instance may accept sessions.
type Readiness interface {
	Ready() bool
}

type WSHandler struct {
	hub      *hub.Hub
	auth     *auth.Authenticator
	ready    Readiness
	metrics  *metrics.Metrics
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, a *auth.Authenticator, ready Readiness, m *metrics.Metrics, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		auth:    a,
		ready:   ready,
		metrics: m,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// HandleWebSocket authenticates the request and only then upgrades it.
// Rejected handshakes never allocate a session.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := log.Ctx(ctx)

	if !h.ready.Ready() {
		h.metrics.HandshakeRejected.WithLabelValues("not_ready").Inc()
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	username, err := h.auth.Authenticate(r)
	if err != nil {
		h.metrics.HandshakeRejected.WithLabelValues(auth.Reason(err)).Inc()
		audit.LogWithDetail(ctx, audit.ActionHandshakeDenied, "", auth.Reason(err), "handshake rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		l.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), username, h.hub, conn, h.wsCfg)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(domain.CloseServiceReboot, domain.ReasonShutdown))
		conn.Close()
		return
	}

	audit.LogWithDetail(ctx, audit.ActionConnect, username, client.ID, "session opened")

	go client.WritePump()
	go client.ReadPump()
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// originChecker allows any origin when the list is empty, otherwise only
// origins whose host matches an entry.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	hosts := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		hosts[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := hosts[strings.ToLower(u.Host)]
		return ok
	}
}
