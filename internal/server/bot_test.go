package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/game"
)

func dialBot(t *testing.T, srv *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBotHubRoundTrip(t *testing.T) {
	t.Parallel()

	hub := NewBotHub(testLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	conn := dialBot(t, srv, "alice")
	require.Eventually(t, func() bool { return len(hub.Connected()) == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		var req ActionRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// A reply for some other request is ignored.
		_ = conn.WriteJSON(DecisionReply{Type: typeDecision, RequestID: "stale", Action: "fold"})
		_ = conn.WriteJSON(DecisionReply{Type: typeDecision, RequestID: req.RequestID, Text: `{"action":"raise","amount":40}`, Reasoning: "value"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	valid := game.ValidActions{CanCall: true, CallAmount: 10, CanRaise: true, MinRaiseTotal: 20, MaxRaiseTotal: 990}
	resp, err := hub.Decide(ctx, decision.Request{RequestID: "r1", GameID: "g", PlayerID: "alice", Valid: valid})
	require.NoError(t, err)
	assert.Equal(t, "value", resp.Reasoning)

	d := decision.Sanitize(resp, valid)
	assert.Equal(t, game.RaiseTo(40), d.Action)
	assert.False(t, d.Corrected())
}

func TestBotHubErrors(t *testing.T) {
	t.Parallel()

	hub := NewBotHub(testLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	_, err := hub.Decide(context.Background(), decision.Request{RequestID: "r1", PlayerID: "nobody"})
	require.ErrorIs(t, err, ErrBotNotConnected)

	dialBot(t, srv, "quiet")
	require.Eventually(t, func() bool { return len(hub.Connected()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = hub.Decide(ctx, decision.Request{RequestID: "r2", PlayerID: "quiet"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	d := decision.FromError(game.ValidActions{CanCheck: true}, err)
	assert.True(t, d.Timeout)
	assert.Equal(t, game.Check(), d.Action)
}

func TestBotHubMistypedReplyKeepsConnection(t *testing.T) {
	t.Parallel()

	hub := NewBotHub(testLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	conn := dialBot(t, srv, "bob")
	require.Eventually(t, func() bool { return len(hub.Connected()) == 1 }, time.Second, 5*time.Millisecond)

	replies := []string{
		`{"type":"decision","request_id":%q,"action":"raise","amount":5000.5}`,
		`{"type":"decision","request_id":%q,"action":"raise","amount":"300"}`,
	}
	go func() {
		for _, format := range replies {
			var req ActionRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(format, req.RequestID)))
		}
	}()

	valid := game.ValidActions{CanCall: true, CallAmount: 10, CanRaise: true, MinRaiseTotal: 20, MaxRaiseTotal: 990}
	decide := func(id string) decision.Decision {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := hub.Decide(ctx, decision.Request{RequestID: id, GameID: "g", PlayerID: "bob", Valid: valid})
		require.NoError(t, err)
		return decision.Sanitize(resp, valid)
	}

	d := decide("r1")
	assert.Equal(t, game.RaiseTo(990), d.Action)
	require.Len(t, d.Corrections, 1)
	assert.ErrorIs(t, d.Corrections[0], decision.ErrOutOfRangeRaise)
	assert.Equal(t, []string{"bob"}, hub.Connected())

	d = decide("r2")
	assert.Equal(t, game.RaiseTo(300), d.Action)
	assert.Empty(t, d.Corrections)
}

func TestDecodeReply(t *testing.T) {
	t.Parallel()

	msg, resp, err := decodeReply([]byte(`{"type":"decision","request_id":"r1","action":"call"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", msg.RequestID)
	assert.Equal(t, "call", resp.Action)

	raw := `{"type":"decision","request_id":"r2","action":3}`
	msg, resp, err = decodeReply([]byte(raw))
	require.Error(t, err)
	assert.Equal(t, DecisionReply{Type: typeDecision, RequestID: "r2"}, msg)
	assert.Equal(t, decision.Response{Text: raw}, resp)
	d := decision.Sanitize(resp, game.ValidActions{CanCheck: true})
	assert.Equal(t, game.Check(), d.Action)

	msg, _, err = decodeReply([]byte("garbage"))
	require.Error(t, err)
	assert.Empty(t, msg.RequestID)
}
