package editor

import (
	"testing"

	"github.com/elijahnyp/garage_card/card"
)

func TestSchemaOrder(t *testing.T) {
	expected := []string{
		"name", "door_entity",
		"car1_presence_entity", "car1_name", "car1_image",
		"car2_presence_entity", "car2_name", "car2_image",
		"car3_presence_entity", "car3_name", "car3_image",
		"light_entity", "keep_open_entity", "countdown_entity", "assets_path",
	}
	fields := Schema()
	if len(fields) != len(expected) {
		t.Fatalf("Schema() has %d fields, expected %d", len(fields), len(expected))
	}
	for i, f := range fields {
		if f.Name != expected[i] {
			t.Errorf("field %d = %s, expected %s", i, f.Name, expected[i])
		}
		if f.Label == "" || f.Label == f.Name {
			t.Errorf("field %s has no label", f.Name)
		}
		if (f.Selector.Text == nil) == (f.Selector.Entity == nil) {
			t.Errorf("field %s should have exactly one selector", f.Name)
		}
	}
}

func TestSchemaDomains(t *testing.T) {
	tests := map[string][]string{
		"door_entity":          {"cover"},
		"car2_presence_entity": {"binary_sensor", "input_boolean"},
		"light_entity":         {"light"},
		"keep_open_entity":     {"input_boolean"},
		"countdown_entity":     {"sensor"},
	}
	for _, f := range Schema() {
		domains, ok := tests[f.Name]
		if !ok {
			continue
		}
		if f.Selector.Entity == nil {
			t.Errorf("%s should be an entity picker", f.Name)
			continue
		}
		if len(f.Selector.Entity.Domain) != len(domains) {
			t.Errorf("%s domains = %v, expected %v", f.Name, f.Selector.Entity.Domain, domains)
			continue
		}
		for i := range domains {
			if f.Selector.Entity.Domain[i] != domains[i] {
				t.Errorf("%s domains = %v, expected %v", f.Name, f.Selector.Entity.Domain, domains)
			}
		}
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"door_entity", "Garage Door Entity"},
		{"car1_presence_entity", "Car 1 Presence Sensor (optional)"},
		{"light_entity", "Garage Light Entity (optional)"},
		{"keep_open_entity", "Keep Door Open Toggle (optional)"},
		{"something_else", "something_else"},
	}
	for _, tt := range tests {
		if got := Label(tt.name); got != tt.expected {
			t.Errorf("Label(%s) = %s, expected %s", tt.name, got, tt.expected)
		}
	}
}

func TestApply(t *testing.T) {
	current := map[string]any{
		"name":        "Shop",
		"door_entity": "cover.shop",
		"custom":      42,
	}
	out := Apply(current, map[string]any{"light_entity": "light.shop", "name": "Workshop"})

	if out["type"] != card.CardType {
		t.Errorf("type = %v, expected %s", out["type"], card.CardType)
	}
	if out["name"] != "Workshop" {
		t.Errorf("name = %v, expected Workshop", out["name"])
	}
	if out["door_entity"] != "cover.shop" {
		t.Errorf("door_entity = %v, expected cover.shop", out["door_entity"])
	}
	if out["light_entity"] != "light.shop" {
		t.Errorf("light_entity = %v, expected light.shop", out["light_entity"])
	}
	if out["custom"] != 42 {
		t.Errorf("custom = %v, expected 42", out["custom"])
	}
	if out["assets_path"] != card.DefaultAssetsPath {
		t.Errorf("assets_path = %v, expected default", out["assets_path"])
	}
	if current["name"] != "Shop" {
		t.Error("Apply must not modify its input")
	}

	cfg, err := card.NewConfig(out)
	if err != nil {
		t.Fatalf("replacement config rejected: %v", err)
	}
	if !cfg.HasLight() || cfg.Name != "Workshop" {
		t.Errorf("replacement config = %+v", cfg)
	}
}
