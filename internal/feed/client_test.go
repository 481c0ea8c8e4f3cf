package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"token-replay-lab/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const feedToken = "So11111111111111111111111111111111111111112"

func testCandle(ts int64) domain.Candle {
	return domain.Candle{
		TimestampMs: ts,
		Open:        100,
		High:        101,
		Low:         99,
		Close:       100,
		Volume:      50,
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientSubscribesAndReceivesCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		if req.Op != "subscribe" {
			t.Errorf("op = %q, want subscribe", req.Op)
		}
		if len(req.Tokens) != 1 || req.Tokens[0] != feedToken {
			t.Errorf("unexpected tokens: %v", req.Tokens)
		}

		for i := int64(1); i <= 3; i++ {
			frame := CandleMessage{
				Token:      feedToken,
				Resolution: domain.ResolutionMinute,
				Candle:     testCandle(i * 60_000),
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}

		// Keep the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), Subscription{
		Tokens:     []string{feedToken},
		Resolution: domain.ResolutionMinute,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	for want := int64(1); want <= 3; want++ {
		select {
		case msg := <-client.Messages():
			if msg.Token != feedToken {
				t.Errorf("token = %s, want %s", msg.Token, feedToken)
			}
			if msg.Candle.TimestampMs != want*60_000 {
				t.Errorf("ts = %d, want %d", msg.Candle.TimestampMs, want*60_000)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for candle %d", want)
		}
	}
}

func TestClientDropsMalformedFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"token":"","resolution":""}`))
		conn.WriteJSON(CandleMessage{
			Token:      feedToken,
			Resolution: domain.ResolutionMinute,
			Candle:     testCandle(60_000),
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), Subscription{
		Tokens:     []string{feedToken},
		Resolution: domain.ResolutionMinute,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case msg := <-client.Messages():
		if msg.Candle.TimestampMs != 60_000 {
			t.Errorf("ts = %d, want 60000", msg.Candle.TimestampMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the valid candle")
	}
}

func TestClientCloseClosesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), Subscription{
		Tokens:     []string{feedToken},
		Resolution: domain.ResolutionMinute,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-client.Messages():
		if ok {
			t.Error("expected closed message channel")
		}
	case <-time.After(time.Second):
		t.Fatal("message channel not closed after Close")
	}

	// Close is idempotent.
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClientDialFailure(t *testing.T) {
	_, err := NewClient(context.Background(), "ws://127.0.0.1:1", Subscription{
		Tokens:     []string{feedToken},
		Resolution: domain.ResolutionMinute,
	}, nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
}
