// Package host connects the card to Home Assistant over MQTT: entity state
// arrives through mqtt_statestream topics and commands leave as JSON service
// calls on per-service command topics.
package host

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/garage_card/card"
	"github.com/elijahnyp/garage_card/state"
	"github.com/elijahnyp/garage_card/util"
)

// StateSink receives every new snapshot.
type StateSink interface {
	UpdateState(snap state.Snapshot)
}

type MQTTHost struct {
	topics    *util.TopicBuilder
	store     *state.Store
	sink      StateSink
	client    func() MQTT.Client
	subscribe func(topic string, handler MQTT.MessageHandler)
	watched   []string
	mu        sync.Mutex
}

// NewMQTTHost uses the shared util client and subscription registry.
func NewMQTTHost(topics *util.TopicBuilder, sink StateSink) *MQTTHost {
	return &MQTTHost{
		topics:    topics,
		store:     state.NewStore(),
		sink:      sink,
		client:    util.CurrentClient,
		subscribe: util.RegisterMQTTSubscription,
	}
}

func (h *MQTTHost) Store() *state.Store { return h.store }

// Watch replaces the set of watched entities with those cfg reads.
// Entities no longer referenced are unsubscribed and forgotten.
func (h *MQTTHost) Watch(cfg *card.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := cfg.Entities()
	keep := make(map[string]bool, len(next))
	for _, id := range next {
		keep[id] = true
	}
	for _, id := range h.watched {
		if keep[id] {
			continue
		}
		h.subscribe(h.topics.State(id), nil)
		h.subscribe(h.topics.LastChanged(id), nil)
		h.store.Forget(id)
	}
	watched := make([]string, 0, len(next))
	for _, id := range next {
		stateTopic := h.topics.State(id)
		if stateTopic == "" {
			util.Logger.Warn().Msgf("entity %q is not a valid entity id, ignoring", id)
			continue
		}
		h.subscribe(stateTopic, h.receiver)
		h.subscribe(h.topics.LastChanged(id), h.receiver)
		watched = append(watched, id)
	}
	h.watched = watched
	util.Logger.Info().Msgf("watching %d entities", len(watched))
}

// parseLastChanged accepts the JSON-quoted timestamp statestream publishes
// as well as a bare RFC3339 string.
func parseLastChanged(payload []byte) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		s = strings.TrimSpace(string(payload))
	}
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseStatus strips the JSON quoting statestream puts around strings.
func parseStatus(payload []byte) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(payload))
}

func (h *MQTTHost) receiver(_ MQTT.Client, message MQTT.Message) {
	entityID, suffix, ok := h.topics.Parse(message.Topic())
	if !ok {
		util.Logger.Debug().Msgf("topic %s is not a statestream topic", message.Topic())
		return
	}
	switch suffix {
	case util.SuffixState:
		h.store.SetStatus(entityID, parseStatus(message.Payload()))
	case util.SuffixLastChanged:
		t, ok := parseLastChanged(message.Payload())
		if !ok {
			util.Logger.Warn().Msgf("unparseable last_changed for %s: %q", entityID, message.Payload())
			return
		}
		h.store.SetLastChanged(entityID, t)
	}
	util.Logger.Trace().Msgf("%s %s updated", entityID, suffix)
	if h.sink != nil {
		h.sink.UpdateState(h.store.Snapshot())
	}
}

// Dispatch publishes cmd and returns without waiting. Publish failures are
// logged and otherwise dropped.
func (h *MQTTHost) Dispatch(cmd card.Command) {
	client := h.client()
	if client == nil || !client.IsConnected() {
		util.Logger.Warn().Msgf("dropping %s.%s for %s: not connected", cmd.Domain, cmd.Service, cmd.EntityID)
		return
	}
	payload, err := json.Marshal(util.HAServiceCall{EntityID: cmd.EntityID})
	if err != nil {
		util.Logger.Error().Err(err).Msg("encoding service call")
		return
	}
	topic := h.topics.Command(cmd.Domain, cmd.Service)
	token := client.Publish(topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			util.Logger.Warn().Msgf("publishing to %s failed: %v", topic, token.Error())
		}
	}()
}
