package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/model"
	"dive-service/internal/service"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscriber closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	return Event{}
}

func TestEventBusDeliversSessionEventsByType(t *testing.T) {
	bus := NewEventBus(nil)
	progress := bus.Subscribe(string(model.EventProgress))
	all := bus.Subscribe(AllEvents)
	go bus.Start()
	defer bus.Close()

	bus.PublishSessionEvent(model.NewEventEnvelope("AA:BB", model.NewProgressEvent(1, 4)))
	bus.PublishSessionEvent(model.NewEventEnvelope("AA:BB", model.WaitingEvent{}))

	got := receive(t, progress)
	assert.Equal(t, "progress", got.Type)
	assert.Equal(t, "AA:BB", got.Source)
	assert.Equal(t, model.ProgressEvent{Percent: 25}, got.Data)

	assert.Equal(t, "progress", receive(t, all).Type)
	assert.Equal(t, "waiting", receive(t, all).Type)
}

func TestEventBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewEventBus(nil)
	sub := bus.Subscribe(AllEvents)
	go bus.Start()

	bus.Close()
	bus.Close()

	_, ok := <-sub
	assert.False(t, ok)

	// publishing after close is dropped
	bus.PublishSessionEvent(model.NewEventEnvelope("AA:BB", model.WaitingEvent{}))
	_, ok = <-bus.Subscribe(AllEvents)
	assert.False(t, ok)
}

func TestClientFiltersByAddressAndTopic(t *testing.T) {
	address := "AA:BB"
	client := &Client{Address: &address}

	assert.True(t, client.Wants(Event{Type: "progress", Source: "AA:BB"}))
	assert.False(t, client.Wants(Event{Type: "progress", Source: "CC:DD"}))

	client.Subscribe("devinfo")
	assert.False(t, client.Wants(Event{Type: "progress", Source: "AA:BB"}))
	assert.True(t, client.Wants(Event{Type: "devinfo", Source: "AA:BB"}))

	client.Unsubscribe("devinfo")
	assert.True(t, client.Wants(Event{Type: "progress", Source: "AA:BB"}))
}

type staticStatus struct{}

func (staticStatus) Status() *service.StatusResponse {
	return &service.StatusResponse{Initialized: true}
}

func TestWebSocketStreamsSessionEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := NewEventBus(nil)
	ws := NewWebSocketHandler(bus, staticStatus{}, nil, nil)
	go ws.Run()
	go bus.Start()
	defer bus.Close()

	router := gin.New()
	ws.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?address=AA:BB"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var status WebSocketMessage
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)

	require.Eventually(t, func() bool {
		return ws.GetConnectionStats().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.PublishSessionEvent(model.NewEventEnvelope("CC:DD", model.WaitingEvent{}))
	bus.PublishSessionEvent(model.NewEventEnvelope("AA:BB", model.DeviceInfoEvent{Model: 3, Firmware: 1, Serial: 42}))

	var message struct {
		Type string `json:"type"`
		Data struct {
			Type   string          `json:"type"`
			Source string          `json:"source"`
			Data   json.RawMessage `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "session_event", message.Type)
	assert.Equal(t, "devinfo", message.Data.Type)
	assert.Equal(t, "AA:BB", message.Data.Source)
	assert.JSONEq(t, `{"model":3,"firmware":1,"serial":42}`, string(message.Data.Data))
}
