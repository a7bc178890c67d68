package util

import (
	"encoding/json"
	"fmt"
	"strings"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "garage_card/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "Garage Card"
	Identifiers []string `json:"ids"`  // : ["garage_card"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`     // "garage_card-garage-displayed"
	Name                         string                         `json:"name"`        // : "Garage displayed"
	StateTopic                   string                         `json:"state_topic"` // : "garage_card/garage/displayed"
	PayloadOn                    string                         `json:"payload_on"`
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class"` // : "running"
	Platform                     string                         `json:"platform"`     // "binary_sensor"
	Qos                          int                            `json:"qos"`
}

// HAServiceCall is the payload published on a command topic. A Home
// Assistant automation with an MQTT trigger turns it into a service call.
type HAServiceCall struct {
	EntityID string `json:"entity_id"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// Slug lowercases name and replaces anything outside [a-z0-9] with '_'.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "garage"
	}
	return b.String()
}

// DisplayedTopic is where the daemon reports whether any browser shows the card.
func DisplayedTopic(cardName string) string {
	return "garage_card/" + Slug(cardName) + "/displayed"
}

func ConstructHAAdvertisement(cardName, availabilityTopic string) HAAdvertisement {
	return HAAdvertisement{
		Name:       cardName + " card displayed",
		StateTopic: DisplayedTopic(cardName),
		PayloadOn:  "true",
		PayloadOff: "false",
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               availabilityTopic,
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         0,
		UniqueID:    "garage_card-" + Slug(cardName) + "-displayed",
		DeviceClass: "running",
		Platform:    "binary_sensor",
		Device: HADeviceSpec{
			Name:        "garage_card",
			Identifiers: []string{"garage_card"},
		},
	}
}

func DiscoveryTopic(cardName string) string {
	return "homeassistant/binary_sensor/garage_card_" + Slug(cardName) + "/displayed/config"
}

func AdvertiseHA(cardName string, client MQTT.Client) error {
	ha := ConstructHAAdvertisement(cardName, Config.GetString("availability_topic"))
	if token := client.Publish(DiscoveryTopic(cardName), 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing discovery for %s: %w", cardName, token.Error())
	}
	return nil
}

// PublishDisplayed reports the displayed flag for cardName.
func PublishDisplayed(cardName string, displayed bool, client MQTT.Client) {
	if client == nil || !client.IsConnected() {
		return
	}
	payload := "false"
	if displayed {
		payload = "true"
	}
	token := client.Publish(DisplayedTopic(cardName), 0, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			Logger.Warn().Msgf("Error publishing displayed state: %v", token.Error())
		}
	}()
}

// HACameraAdvertisement is the discovery config of an MQTT camera, which
// shows the last image published on Topic.
type HACameraAdvertisement struct {
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`
	Name                         string                         `json:"name"`
	Topic                        string                         `json:"topic"`
	Platform                     string                         `json:"platform"`
}

// SchematicTopic carries the PNG schematic of the card.
func SchematicTopic(cardName string) string {
	return "garage_card/" + Slug(cardName) + "/schematic"
}

func CameraDiscoveryTopic(cardName string) string {
	return "homeassistant/camera/garage_card_" + Slug(cardName) + "/schematic/config"
}

func ConstructHACameraAdvertisement(cardName, availabilityTopic string) HACameraAdvertisement {
	return HACameraAdvertisement{
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               availabilityTopic,
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Device: HADeviceSpec{
			Name:        "garage_card",
			Identifiers: []string{"garage_card"},
		},
		UniqueID: "garage_card-" + Slug(cardName) + "-schematic",
		Name:     cardName + " schematic",
		Topic:    SchematicTopic(cardName),
		Platform: "camera",
	}
}

// AdvertiseHACamera publishes the schematic camera's discovery config.
func AdvertiseHACamera(cardName string, client MQTT.Client) error {
	ha := ConstructHACameraAdvertisement(cardName, Config.GetString("availability_topic"))
	data, err := json.Marshal(ha)
	if err != nil {
		return fmt.Errorf("encoding camera discovery: %w", err)
	}
	if token := client.Publish(CameraDiscoveryTopic(cardName), 0, true, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing camera discovery for %s: %w", cardName, token.Error())
	}
	return nil
}
