package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/health"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/relay"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

type gatewayFixture struct {
	bus    *pubsub.MemoryPubSub
	hub    *hub.Hub
	state  *health.State
	svc    GatewayService
	tokens *jwt.Manager
	server *httptest.Server
	runErr chan error
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 64,
	}

	tokens, err := jwt.NewManager("test-secret", time.Hour, "")
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	bus := pubsub.NewMemoryPubSub()
	state := health.New()

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(m)
	go h.Run(ctx)

	rl := relay.New(bus, h, events.NewLedger(100), m, 64)
	svc := NewGatewayService(h, rl, state, nil, registry.Instance{ID: "test"})
	require.NoError(t, svc.Start(ctx))

	router := mux.NewRouter()
	handler.NewWSHandler(h, auth.NewAuthenticator(tokens), state, m, wsCfg).RegisterRoutes(router)
	server := httptest.NewServer(router)

	f := &gatewayFixture{
		bus:    bus,
		hub:    h,
		state:  state,
		svc:    svc,
		tokens: tokens,
		server: server,
		runErr: make(chan error, 1),
	}
	go func() { f.runErr <- svc.Run(ctx) }()

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-h.Done()
		bus.Close()
	})
	return f
}

func (f *gatewayFixture) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/chat/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (f *gatewayFixture) connect(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	token, _, err := f.tokens.Issue(username)
	require.NoError(t, err)

	before := f.hub.UserSessionCount(username)
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.hub.UserSessionCount(username) == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func (f *gatewayFixture) publish(t *testing.T, ev events.Event) {
	t.Helper()
	data, err := events.Encode(ev)
	require.NoError(t, err)
	require.NoError(t, f.bus.Publish(context.Background(), ev.Topic(), ev.Key(), data))
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func readClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		return ce.Code
	}
}

func messageEvent(id int64, content string) events.Event {
	return events.MessagePosted{Message: events.Message{
		ID:             &id,
		ConversationID: "general",
		Sender:         "alice",
		Content:        content,
		Type:           events.TypeText,
		CreatedAt:      time.Now().UTC(),
	}}
}

func TestPostAndRecallReachEveryClientOnce(t *testing.T) {
	f := newGateway(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	f.publish(t, messageEvent(42, "hi"))
	f.publish(t, messageEvent(42, "hi"))
	f.publish(t, events.NewRecall(42, "general", "alice", nil, time.Now().UTC()))

	for _, conn := range []*websocket.Conn{alice, bob} {
		first := readFrame(t, conn)
		assert.Equal(t, domain.EventChatMessage, first.Event)
		var posted events.Message
		require.NoError(t, json.Unmarshal(first.Data, &posted))
		assert.Equal(t, int64(42), *posted.ID)
		assert.Equal(t, events.StatusActive, posted.Status)
		assert.Equal(t, "hi", posted.Content)

		// The duplicate is suppressed, so the next frame is the recall.
		second := readFrame(t, conn)
		var recalled events.Message
		require.NoError(t, json.Unmarshal(second.Data, &recalled))
		assert.Equal(t, int64(42), *recalled.ID)
		assert.Equal(t, events.StatusRecalled, recalled.Status)
		assert.Equal(t, "", recalled.Content)
		assert.Equal(t, events.TypeRecall, recalled.Type)
	}
}

func TestBanClosesOnlyTheBannedUser(t *testing.T) {
	f := newGateway(t)
	bob1 := f.connect(t, "bob")
	bob2 := f.connect(t, "bob")
	alice := f.connect(t, "alice")

	f.publish(t, events.UserBanned{Username: "bob"})

	for _, conn := range []*websocket.Conn{bob1, bob2} {
		notice := readFrame(t, conn)
		assert.Equal(t, domain.EventChatBan, notice.Event)
		assert.JSONEq(t, `{"reason":"banned"}`, string(notice.Data))
		assert.Equal(t, domain.CloseBanned, readClose(t, conn))
	}

	require.Eventually(t, func() bool { return f.hub.UserSessionCount("bob") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.hub.UserSessionCount("alice"))

	f.publish(t, messageEvent(1, "still here"))
	assert.Equal(t, domain.EventChatMessage, readFrame(t, alice).Event)
}

func TestUnauthenticatedHandshakeNeverCreatesSession(t *testing.T) {
	f := newGateway(t)

	for _, token := range []string{"", "garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 0, f.hub.SessionCount())
}

func TestHeaderTokenIsAccepted(t *testing.T) {
	f := newGateway(t)
	token, _, err := f.tokens.Issue("carol")
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), header)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.UserSessionCount("carol") == 1 }, time.Second, 5*time.Millisecond)
}

func TestBusLossEvictsSessionsAndStopsAccepting(t *testing.T) {
	f := newGateway(t)
	alice := f.connect(t, "alice")
	require.True(t, f.state.Ready())

	f.bus.DropSubscriptions(events.TopicMessageEvents)

	select {
	case err := <-f.runErr:
		assert.ErrorIs(t, err, relay.ErrSubscriptionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("gateway did not stop after losing the bus")
	}

	assert.Equal(t, domain.CloseServiceReboot, readClose(t, alice))
	assert.False(t, f.state.Ready())

	token, _, err := f.tokens.Issue("bob")
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestStopClosesSessionsWithGoingAway(t *testing.T) {
	f := newGateway(t)
	alice := f.connect(t, "alice")

	require.NoError(t, f.svc.Stop(context.Background()))

	assert.Equal(t, websocket.CloseGoingAway, readClose(t, alice))
	assert.False(t, f.state.Ready())
}
