package util

import (
	"strings"
)

// Statestream attribute suffixes as published by Home Assistant's
// mqtt_statestream integration.
const (
	SuffixState       = "state"
	SuffixLastChanged = "last_changed"
)

// TopicBuilder maps entity ids onto statestream and command topics.
//
// Entity "cover.garage_door" with root "homeassistant" publishes its status
// on homeassistant/cover/garage_door/state and its last change time on
// homeassistant/cover/garage_door/last_changed. Commands go out on
// {commandRoot}/{domain}/{service}.
type TopicBuilder struct {
	stateRoot   string
	commandRoot string
}

func NewTopicBuilder(stateRoot, commandRoot string) *TopicBuilder {
	return &TopicBuilder{
		stateRoot:   strings.TrimSuffix(stateRoot, "/"),
		commandRoot: strings.TrimSuffix(commandRoot, "/"),
	}
}

// SplitEntityID returns domain and object id. ok is false for anything that
// is not of the form domain.object_id.
func SplitEntityID(entityID string) (domain string, object string, ok bool) {
	domain, object, ok = strings.Cut(entityID, ".")
	if !ok || domain == "" || object == "" || strings.Contains(object, "/") || strings.Contains(domain, "/") {
		return "", "", false
	}
	return domain, object, true
}

func (b *TopicBuilder) entityTopic(entityID, suffix string) string {
	domain, object, ok := SplitEntityID(entityID)
	if !ok {
		return ""
	}
	return b.stateRoot + "/" + domain + "/" + object + "/" + suffix
}

// State returns the status topic for entityID, or "" when it is malformed.
func (b *TopicBuilder) State(entityID string) string {
	return b.entityTopic(entityID, SuffixState)
}

// LastChanged returns the last_changed topic for entityID.
func (b *TopicBuilder) LastChanged(entityID string) string {
	return b.entityTopic(entityID, SuffixLastChanged)
}

func (b *TopicBuilder) Command(domain, service string) string {
	return b.commandRoot + "/" + domain + "/" + service
}

// Parse reverses State and LastChanged.
func (b *TopicBuilder) Parse(topic string) (entityID string, suffix string, ok bool) {
	rest, found := strings.CutPrefix(topic, b.stateRoot+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case SuffixState, SuffixLastChanged:
	default:
		return "", "", false
	}
	return parts[0] + "." + parts[1], parts[2], true
}
