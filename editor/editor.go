// Package editor describes the card's configuration form: which options
// exist, how they are labelled and which entities they accept.
package editor

import (
	"github.com/samber/lo"

	"github.com/elijahnyp/garage_card/card"
)

// EntitySelector restricts a picker to the given entity domains.
type EntitySelector struct {
	Domain []string `json:"domain"`
}

type TextSelector struct{}

type Selector struct {
	Text   *TextSelector   `json:"text,omitempty"`
	Entity *EntitySelector `json:"entity,omitempty"`
}

type Field struct {
	Selector Selector `json:"selector"`
	Name     string   `json:"name"`
	Label    string   `json:"label"`
}

// CardInfo is what the dashboard's card picker shows.
type CardInfo struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Preview     bool   `json:"preview"`
}

var Info = CardInfo{
	Type:        "garage-card",
	Name:        "Garage Card",
	Description: "A custom card showing garage with car presence and door control",
	Preview:     true,
}

var labels = map[string]string{
	card.KeyName:               "Card Name",
	card.KeyDoorEntity:         "Garage Door Entity",
	card.VehiclePresenceKey(1): "Car 1 Presence Sensor (optional)",
	card.VehiclePresenceKey(2): "Car 2 Presence Sensor (optional)",
	card.VehiclePresenceKey(3): "Car 3 Presence Sensor (optional)",
	card.VehicleNameKey(1):     "Car 1 Name (optional)",
	card.VehicleNameKey(2):     "Car 2 Name (optional)",
	card.VehicleNameKey(3):     "Car 3 Name (optional)",
	card.VehicleImageKey(1):    "Car 1 Image (optional)",
	card.VehicleImageKey(2):    "Car 2 Image (optional)",
	card.VehicleImageKey(3):    "Car 3 Image (optional)",
	card.KeyLightEntity:        "Garage Light Entity (optional)",
	card.KeyKeepOpenEntity:     "Keep Door Open Toggle (optional)",
	card.KeyCountdownEntity:    "Auto-Close Countdown Sensor (optional)",
	card.KeyAssetsPath:         "Assets Path",
}

// Label returns the human label for an option, or the option name itself.
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

func text(name string) Field {
	return Field{Name: name, Label: Label(name), Selector: Selector{Text: &TextSelector{}}}
}

func entity(name string, domains ...string) Field {
	return Field{Name: name, Label: Label(name), Selector: Selector{Entity: &EntitySelector{Domain: domains}}}
}

// Schema lists every recognised option in form order.
func Schema() []Field {
	fields := []Field{
		text(card.KeyName),
		entity(card.KeyDoorEntity, "cover"),
	}
	for i := 1; i <= card.MaxVehicles; i++ {
		fields = append(fields,
			entity(card.VehiclePresenceKey(i), "binary_sensor", "input_boolean"),
			text(card.VehicleNameKey(i)),
			text(card.VehicleImageKey(i)),
		)
	}
	return append(fields,
		entity(card.KeyLightEntity, "light"),
		entity(card.KeyKeepOpenEntity, "input_boolean"),
		entity(card.KeyCountdownEntity, "sensor"),
		text(card.KeyAssetsPath),
	)
}

// Apply merges changes over current (defaults beneath both) and returns the
// full replacement configuration.
func Apply(current, changes map[string]any) map[string]any {
	out := lo.Assign(card.Defaults(), current, changes)
	out[card.KeyType] = card.CardType
	return out
}
