package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whale-copytrader/api"
	"whale-copytrader/config"
	"whale-copytrader/engine"
	"whale-copytrader/middleware"
	"whale-copytrader/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *api.MockClobClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := api.NewMockClobClient()
	mock.Markets["0xc0ffee"] = &api.MarketInfo{
		ConditionID:      "0xc0ffee",
		AcceptingOrders:  true,
		MinimumTickSize:  0.01,
		MinimumOrderSize: 5,
		Tokens: []api.TokenInfo{
			{TokenID: "111", Outcome: "Yes"},
			{TokenID: "222", Outcome: "No"},
		},
	}
	mock.Midpoints["111"] = 0.50

	cfg := config.Default()
	hub := engine.NewHub()
	breaker := engine.NewBreaker(
		func(context.Context) (float64, error) { return 100, nil },
		hub, 2, time.Hour, time.Hour,
	)
	eng := engine.New(mock, engine.NewPolicy(cfg.Engine), breaker, hub, engine.NewMetrics(nil), "0xwallet")

	h := NewHandler(&cfg, eng, hub)
	r := gin.New()
	r.GET("/ws", h.WebSocket)
	r.GET("/health", h.Health)
	r.GET("/api/engine/status", middleware.TokenAuth(), h.EngineStatus)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mock
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}

func TestObserverReceivesSnapshotOnConnect(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, wsURL(srv, ""))

	var state models.EngineEvent
	readJSON(t, conn, &state)
	if state.Type != "engine" || state.Status != models.EngineActive {
		t.Errorf("first message = %+v, want engine ACTIVE snapshot", state)
	}
}

func TestObserverRejectedWithBadToken(t *testing.T) {
	t.Setenv("WS_AUTH_TOKEN", "secret")
	srv, _ := newTestServer(t)
	conn := dial(t, wsURL(srv, "?token=wrong"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok || closeErr.Code != closeUnauthorized {
		t.Errorf("read error = %v, want close code %d", err, closeUnauthorized)
	}
}

func TestCopyTradeRoundTrip(t *testing.T) {
	srv, mock := newTestServer(t)
	conn := dial(t, wsURL(srv, ""))

	// Drain the connect snapshot.
	var state models.EngineEvent
	readJSON(t, conn, &state)

	envelope := map[string]interface{}{
		"type": "copy_trade",
		"trade": map[string]interface{}{
			"conditionId": "0xc0ffee", "title": "Test market", "outcome": "Yes",
			"side": "BUY", "size": 100, "price": 0.5,
			"timestamp": time.Now().Unix(), "transactionHash": "0xabc", "walletLabel": "whale-1",
		},
		"config": map[string]interface{}{
			"multiplier": 0.5, "maxSingleTrade": 1, "priceImprovementPct": 0.02,
		},
	}
	if err := conn.WriteJSON(envelope); err != nil {
		t.Fatalf("write: %v", err)
	}

	var seen []models.OrderStatus
	for len(seen) < 4 {
		var ev models.StatusEvent
		readJSON(t, conn, &ev)
		if ev.Type != "status" {
			continue
		}
		seen = append(seen, ev.Status)
	}
	want := []models.OrderStatus{
		models.StatusDetected, models.StatusValidating, models.StatusPlacing, models.StatusFilled,
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("status sequence = %v, want %v", seen, want)
		}
	}

	if len(mock.Placed) != 1 {
		t.Errorf("placed %d orders, want 1", len(mock.Placed))
	}
}

// Garbage on the wire is dropped without a reply; the connection keeps
// serving afterwards.
func TestMalformedMessagesDropped(t *testing.T) {
	srv, mock := newTestServer(t)
	conn := dial(t, wsURL(srv, ""))

	var state models.EngineEvent
	readJSON(t, conn, &state)

	bad := []string{
		`not json at all`,
		`{"type": "ping"}`,
		`{"type": "copy_trade"}`,
		`{"type": "copy_trade", "trade": {"conditionId": "x", "outcome": "Yes", "side": "BUY", "size": 0, "price": 0.5}, "config": {}}`,
	}
	for _, msg := range bad {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// A dropped message produces no events and no order.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("received a reply for a malformed message, want silence")
	}
	if len(mock.Placed) != 0 {
		t.Errorf("placed %d orders from malformed input, want 0", len(mock.Placed))
	}
}

func TestEngineStatusEndpointAuth(t *testing.T) {
	t.Setenv("WS_AUTH_TOKEN", "secret")
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/engine/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	resp, err = srv.Client().Get(srv.URL + "/api/engine/status?token=secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status with token = %d, want 200", resp.StatusCode)
	}

	var snap engine.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.ReadOnly {
		t.Error("snapshot reports read-only for an engine with a client")
	}
}
