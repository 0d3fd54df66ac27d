package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paperbull/portfolio-engine/internal/api"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) api.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var msg api.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	return msg
}

func TestWSHub_BroadcastReachesAllClients(t *testing.T) {
	hub := api.NewWSHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c1 := dialWS(t, srv)
	defer c1.Close()
	c2 := dialWS(t, srv)
	defer c2.Close()

	// Registration flows through the hub loop; give it a beat.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(api.WSMessage{Type: api.EventTradeRecorded, Participant: "alice", Ticker: "SNDL"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readEvent(t, conn)
		if msg.Type != api.EventTradeRecorded || msg.Participant != "alice" {
			t.Errorf("unexpected broadcast: %+v", msg)
		}
	}
}

// Disconnecting clients mid-broadcast must not take down the hub or starve
// the clients that remain.
func TestWSHub_BroadcastSurvivesDisconnects(t *testing.T) {
	hub := api.NewWSHub()
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	keeper := dialWS(t, srv)
	defer keeper.Close()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		churn := dialWS(t, srv)
		hub.Broadcast(api.WSMessage{Type: api.EventLeaderboardUpdated})
		churn.Close()
		hub.Broadcast(api.WSMessage{Type: api.EventLeaderboardUpdated})
	}

	// The surviving client still receives events after all the churn.
	if msg := readEvent(t, keeper); msg.Type != api.EventLeaderboardUpdated {
		t.Errorf("unexpected broadcast: %+v", msg)
	}
}
