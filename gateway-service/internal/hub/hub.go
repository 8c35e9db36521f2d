package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub owns every session on this instance. All membership changes and
// fan-out happen on the Run goroutine, so per-session frame order is the
// order frames were handed to the hub.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	byUser     map[string]map[string]*Client // username -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	evict      chan evictRequest
	closeAll   chan closeAllRequest
	done       chan struct{}
	mu         sync.RWMutex
	metrics    *metrics.Metrics
}

type evictRequest struct {
	username string
	result   chan int
}

type closeAllRequest struct {
	code   int
	reason string
	result chan int
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		byUser:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		evict:      make(chan evictRequest),
		closeAll:   make(chan closeAllRequest),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run processes hub operations until ctx is done, then closes every
// remaining session with 1001.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			n := h.closeEveryone(domain.CloseGoingAway, domain.ReasonShutdown)
			l := log.L()
			l.Info().Int("sessions", n).Msg("hub stopped")
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			if h.remove(client) {
				client.closeWith(domain.CloseNormal, "")
				l := log.L()
				l.Debug().Str(log.FieldConnID, client.ID).Str(log.FieldUsername, client.Username()).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case req := <-h.evict:
			req.result <- h.evictUser(req.username)

		case req := <-h.closeAll:
			req.result <- h.closeEveryone(req.code, req.reason)
		}
	}
}

// Register adds client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client. Calling it for a client that is already gone
// is a no-op.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues frame for every session.
func (h *Hub) Broadcast(ctx context.Context, frame []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// EvictUser discards queued frames, sends the ban notice to every session
// of username and closes them with CloseBanned. It returns the number of sessions closed.
func (h *Hub) EvictUser(ctx context.Context, username string) (int, error) {
	req := evictRequest{username: username, result: make(chan int, 1)}
	select {
	case h.evict <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		return 0, ErrHubStopped
	}
	return <-req.result, nil
}

// CloseAll closes every session with code and returns how many were closed.
func (h *Hub) CloseAll(ctx context.Context, code int, reason string) (int, error) {
	req := closeAllRequest{code: code, reason: reason, result: make(chan int, 1)}
	select {
	case h.closeAll <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		return 0, ErrHubStopped
	}
	return <-req.result, nil
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserSessionCount returns the number of live sessions of username.
func (h *Hub) UserSessionCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[username])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	sessions, ok := h.byUser[client.Username()]
	if !ok {
		sessions = make(map[string]*Client)
		h.byUser[client.Username()] = sessions
	}
	sessions[client.ID] = client
	h.mu.Unlock()

	h.metrics.Sessions.Inc()
	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Str(log.FieldUsername, client.Username()).Msg("client registered")
}

// remove reports whether client was still registered.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	delete(h.clients, client.ID)
	if sessions, ok := h.byUser[client.Username()]; ok {
		delete(sessions, client.ID)
		if len(sessions) == 0 {
			delete(h.byUser, client.Username())
		}
	}
	h.metrics.Sessions.Dec()
	return true
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.RLock()
	var slow []*Client
	for _, client := range h.clients {
		if !client.trySend(msg) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		if h.remove(client) && client.closeWith(domain.ClosePolicy, domain.ReasonSlowClient) {
			h.metrics.Closed.WithLabelValues("slow_client").Inc()
			l := log.L()
			l.Warn().Str(log.FieldConnID, client.ID).Str(log.FieldUsername, client.Username()).Msg("send buffer full, closing session")
		}
	}
	h.metrics.Relayed.Inc()
}

func (h *Hub) evictUser(username string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.byUser[username]))
	for _, client := range h.byUser[username] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	banFrame := domain.NewBanFrame()
	n := 0
	for _, client := range targets {
		if h.remove(client) && client.evict(banFrame, domain.CloseBanned, domain.ReasonBanned) {
			h.metrics.Closed.WithLabelValues("banned").Inc()
			n++
		}
	}
	return n
}

func (h *Hub) closeEveryone(code int, reason string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	n := 0
	for _, client := range targets {
		if h.remove(client) && client.closeWith(code, reason) {
			h.metrics.Closed.WithLabelValues(closeLabel(code)).Inc()
			n++
		}
	}
	return n
}

func closeLabel(code int) string {
	switch code {
	case domain.CloseServiceReboot:
		return "bus_lost"
	case domain.CloseGoingAway:
		return "shutdown"
	default:
		return "other"
	}
}
