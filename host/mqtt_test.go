package host

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/garage_card/card"
	"github.com/elijahnyp/garage_card/state"
	"github.com/elijahnyp/garage_card/util"
)

// Mock MQTT client for testing
type MockMQTTClient struct {
	publishCalls []PublishCall
	connected    bool
	mu           sync.Mutex
}

type PublishCall struct {
	Payload  interface{}
	Topic    string
	QoS      byte
	Retained bool
}

func (m *MockMQTTClient) IsConnected() bool      { return m.connected }
func (m *MockMQTTClient) IsConnectionOpen() bool { return m.connected }
func (m *MockMQTTClient) Connect() MQTT.Token {
	m.connected = true
	return &MockToken{}
}
func (m *MockMQTTClient) Disconnect(quiesce uint) { m.connected = false }

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls = append(m.publishCalls, PublishCall{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return &MockToken{}
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) Unsubscribe(topics ...string) MQTT.Token             { return &MockToken{} }
func (m *MockMQTTClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *MockMQTTClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

func (m *MockMQTTClient) Published() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishCall(nil), m.publishCalls...)
}

type MockToken struct {
	err error
}

func (m *MockToken) Wait() bool                     { return true }
func (m *MockToken) WaitTimeout(time.Duration) bool { return true }
func (m *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *MockToken) Error() error { return m.err }

type MockMessage struct {
	topic   string
	payload []byte
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 0 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}

type recordingSink struct {
	snaps []state.Snapshot
}

func (s *recordingSink) UpdateState(snap state.Snapshot) { s.snaps = append(s.snaps, snap) }

type testHost struct {
	*MQTTHost
	client *MockMQTTClient
	subs   map[string]MQTT.MessageHandler
	sink   *recordingSink
}

func newTestHost() *testHost {
	th := &testHost{
		client: &MockMQTTClient{connected: true},
		subs:   make(map[string]MQTT.MessageHandler),
		sink:   &recordingSink{},
	}
	th.MQTTHost = &MQTTHost{
		topics: util.NewTopicBuilder("homeassistant", "garage_card/command"),
		store:  state.NewStore(),
		sink:   th.sink,
		client: func() MQTT.Client { return th.client },
		subscribe: func(topic string, handler MQTT.MessageHandler) {
			if handler == nil {
				delete(th.subs, topic)
				return
			}
			th.subs[topic] = handler
		},
	}
	return th
}

func (th *testHost) deliver(topic, payload string) {
	handler := th.subs[topic]
	if handler == nil {
		return
	}
	handler(th.client, &MockMessage{topic: topic, payload: []byte(payload)})
}

func testConfig(t *testing.T, raw map[string]any) *card.Config {
	t.Helper()
	cfg, err := card.NewConfig(raw)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	return cfg
}

func TestWatchSubscribes(t *testing.T) {
	th := newTestHost()
	th.Watch(testConfig(t, map[string]any{
		"door_entity":          "cover.garage_door",
		"light_entity":         "light.garage",
		"car1_presence_entity": "binary_sensor.car1",
		"keep_open_entity":     "not-an-entity",
	}))

	expected := []string{
		"homeassistant/cover/garage_door/state",
		"homeassistant/cover/garage_door/last_changed",
		"homeassistant/light/garage/state",
		"homeassistant/light/garage/last_changed",
		"homeassistant/binary_sensor/car1/state",
		"homeassistant/binary_sensor/car1/last_changed",
	}
	if len(th.subs) != len(expected) {
		t.Errorf("got %d subscriptions, expected %d: %v", len(th.subs), len(expected), th.subs)
	}
	for _, topic := range expected {
		if th.subs[topic] == nil {
			t.Errorf("missing subscription for %s", topic)
		}
	}
}

func TestWatchForgetsRemovedEntities(t *testing.T) {
	th := newTestHost()
	th.Watch(testConfig(t, map[string]any{
		"door_entity":  "cover.garage_door",
		"light_entity": "light.garage",
	}))
	th.deliver("homeassistant/light/garage/state", `"on"`)

	th.Watch(testConfig(t, map[string]any{"door_entity": "cover.garage_door"}))
	if _, ok := th.subs["homeassistant/light/garage/state"]; ok {
		t.Error("light state topic should be unsubscribed")
	}
	if _, ok := th.Store().Snapshot().Get("light.garage"); ok {
		t.Error("light entity should be forgotten")
	}
	if th.subs["homeassistant/cover/garage_door/state"] == nil {
		t.Error("door subscription should be kept")
	}
}

func TestReceiverUpdatesStore(t *testing.T) {
	th := newTestHost()
	th.Watch(testConfig(t, map[string]any{"car1_presence_entity": "binary_sensor.car1"}))

	th.deliver("homeassistant/binary_sensor/car1/last_changed", `"2026-10-19T14:58:30+00:00"`)
	if len(th.sink.snaps) != 1 {
		t.Fatalf("sink called %d times, expected 1", len(th.sink.snaps))
	}
	if _, ok := th.sink.snaps[0].Get("binary_sensor.car1"); ok {
		t.Error("entity without status should not be in the snapshot")
	}

	th.deliver("homeassistant/binary_sensor/car1/state", `on`)
	snap := th.sink.snaps[len(th.sink.snaps)-1]
	e, ok := snap.Get("binary_sensor.car1")
	if !ok {
		t.Fatal("binary_sensor.car1 missing from snapshot")
	}
	if e.Status != "on" {
		t.Errorf("Status = %s, expected on", e.Status)
	}
	expected := time.Date(2026, 10, 19, 14, 58, 30, 0, time.UTC)
	if !e.LastChanged.Equal(expected) {
		t.Errorf("LastChanged = %v, expected %v", e.LastChanged, expected)
	}
}

func TestReceiverIgnoresBadTimestamp(t *testing.T) {
	th := newTestHost()
	th.Watch(testConfig(t, map[string]any{"door_entity": "cover.garage_door"}))
	th.deliver("homeassistant/cover/garage_door/last_changed", `"yesterday"`)
	if len(th.sink.snaps) != 0 {
		t.Errorf("sink called %d times, expected 0", len(th.sink.snaps))
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		payload  string
		expected string
	}{
		{`"open"`, "open"},
		{`open`, "open"},
		{" closed\n", "closed"},
		{`"00:45"`, "00:45"},
	}
	for _, tt := range tests {
		if got := parseStatus([]byte(tt.payload)); got != tt.expected {
			t.Errorf("parseStatus(%q) = %q, expected %q", tt.payload, got, tt.expected)
		}
	}
}

func TestParseLastChanged(t *testing.T) {
	tests := []struct {
		payload string
		ok      bool
	}{
		{`"2026-10-19T14:58:30.123456+00:00"`, true},
		{`2026-10-19T14:58:30Z`, true},
		{`""`, false},
		{`not a time`, false},
	}
	for _, tt := range tests {
		if _, ok := parseLastChanged([]byte(tt.payload)); ok != tt.ok {
			t.Errorf("parseLastChanged(%q) ok = %v, expected %v", tt.payload, ok, tt.ok)
		}
	}
}

func TestDispatch(t *testing.T) {
	th := newTestHost()
	th.Dispatch(card.ToggleDoor("cover.garage_door"))

	calls := th.client.Published()
	if len(calls) != 1 {
		t.Fatalf("got %d publishes, expected 1", len(calls))
	}
	call := calls[0]
	if call.Topic != "garage_card/command/cover/toggle" {
		t.Errorf("Topic = %s, expected garage_card/command/cover/toggle", call.Topic)
	}
	if call.Retained {
		t.Error("commands must not be retained")
	}
	payload, ok := call.Payload.([]byte)
	if !ok {
		t.Fatalf("Payload type = %T, expected []byte", call.Payload)
	}
	var body map[string]string
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["entity_id"] != "cover.garage_door" {
		t.Errorf("entity_id = %s, expected cover.garage_door", body["entity_id"])
	}
}

func TestDispatchDisconnected(t *testing.T) {
	th := newTestHost()
	th.client.connected = false
	th.Dispatch(card.ToggleLight("light.garage"))
	if n := len(th.client.Published()); n != 0 {
		t.Errorf("got %d publishes while disconnected, expected 0", n)
	}

	th.MQTTHost.client = func() MQTT.Client { return nil }
	th.Dispatch(card.ToggleLight("light.garage"))
}
