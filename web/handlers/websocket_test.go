package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements clientInterface for hub tests without real
// connections.
type mockClient struct {
	send chan []byte
}

func newMockClient() *mockClient {
	return &mockClient{send: make(chan []byte, 16)}
}

func (c *mockClient) getSendChannel() chan []byte { return c.send }
func (c *mockClient) close()                      {}

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	client := newMockClient()
	hub.Register(client)

	hub.Broadcast(Event{
		Type: "concept_created",
		Data: map[string]interface{}{"count": 2},
	})

	select {
	case data := <-client.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "concept_created", ev.Type)
		assert.EqualValues(t, 2, ev.Data["count"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	client := newMockClient()
	hub.Register(client)
	hub.Unregister(client)

	// Channel is closed on unregister
	select {
	case _, ok := <-client.send:
		assert.False(t, ok, "expected closed send channel")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	slow := &mockClient{send: make(chan []byte)} // unbuffered, never read
	hub.Register(slow)

	hub.Broadcast(Event{Type: "search_performed"})

	// The hub closes the slow client's channel instead of blocking
	select {
	case _, ok := <-slow.send:
		assert.False(t, ok, "expected slow client channel to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for slow client disconnect")
	}
}
