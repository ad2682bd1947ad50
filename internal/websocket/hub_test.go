package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func TestHubDeliversToSessionListeners(t *testing.T) {
	hub := startHub(t)

	a := &Client{SessionID: "s1", Send: make(chan []byte, 4)}
	b := &Client{SessionID: "s2", Send: make(chan []byte, 4)}
	require.True(t, hub.join(a))
	require.True(t, hub.join(b))
	require.Eventually(t, func() bool { return hub.Listeners("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Send("s1", dto.WsFrame{Type: dto.WsTypeToolCall, Tool: "search_pr", Step: 1})

	select {
	case raw := <-a.Send:
		var frame dto.WsFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, "s1", frame.SessionId)
		assert.Equal(t, "search_pr", frame.Tool)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	assert.Empty(t, b.Send)
}

func TestHubDropsSlowClientOnce(t *testing.T) {
	hub := startHub(t)

	slow := &Client{SessionID: "s", Send: make(chan []byte, 1)}
	require.True(t, hub.join(slow))
	require.Eventually(t, func() bool { return hub.Listeners("s") == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		hub.Send("s", dto.WsFrame{Type: dto.WsTypeObservation, Step: i})
	}
	require.Eventually(t, func() bool { return hub.Listeners("s") == 0 }, time.Second, 5*time.Millisecond)

	// buffered frame then closed
	<-slow.Send
	_, ok := <-slow.Send
	assert.False(t, ok)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := &Client{SessionID: "s", Send: make(chan []byte, 1)}
	require.True(t, hub.join(c))
	cancel()
	<-hub.done

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, hub.join(&Client{SessionID: "late", Send: make(chan []byte)}))
	hub.leave(c)
}
