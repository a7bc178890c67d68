package card

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewConfigNil(t *testing.T) {
	cfg, err := NewConfig(nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewConfig(nil) error = %v, expected ErrInvalidConfig", err)
	}
	if cfg != nil {
		t.Error("NewConfig(nil) should not return a config")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(map[string]any{"door_entity": "cover.garage_door"})
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Name != DefaultName {
		t.Errorf("Name = %s, expected %s", cfg.Name, DefaultName)
	}
	if cfg.AssetsPath != DefaultAssetsPath {
		t.Errorf("AssetsPath = %s, expected %s", cfg.AssetsPath, DefaultAssetsPath)
	}
	if cfg.DoorEntity != "cover.garage_door" {
		t.Errorf("DoorEntity = %s, expected cover.garage_door", cfg.DoorEntity)
	}
	if cfg.HasLight() || cfg.HasKeepOpen() || cfg.HasCountdown() {
		t.Error("optional entities should be unset by default")
	}
	if len(cfg.Vehicles()) != 0 {
		t.Errorf("Vehicles() = %v, expected none", cfg.Vehicles())
	}
}

func TestNewConfigUserValuesAndExtras(t *testing.T) {
	cfg, err := NewConfig(map[string]any{
		"type":             CardType,
		"name":             "Workshop",
		"door_entity":      "cover.workshop",
		"light_entity":     "light.workshop",
		"keep_open_entity": "input_boolean.keep_open",
		"assets_path":      "/local/custom",
		"grid_options":     map[string]any{"rows": 4},
		"theme":            "dark",
	})
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Name != "Workshop" || cfg.AssetsPath != "/local/custom" {
		t.Errorf("user values not applied: %+v", cfg)
	}
	if !cfg.HasLight() || !cfg.HasKeepOpen() {
		t.Error("light and keep-open should be configured")
	}
	if _, ok := cfg.Extra["type"]; ok {
		t.Error("type is recognised and should not be an extra")
	}
	if cfg.Extra["theme"] != "dark" {
		t.Errorf("Extra[theme] = %v, expected dark", cfg.Extra["theme"])
	}
	if _, ok := cfg.Extra["grid_options"]; !ok {
		t.Error("unrecognised nested option should pass through")
	}
}

func TestVehicles(t *testing.T) {
	cfg, err := NewConfig(map[string]any{
		"door_entity":          "cover.garage",
		"car1_presence_entity": "binary_sensor.car1",
		"car1_name":            "Lexus",
		"car3_presence_entity": "input_boolean.car3",
		"car3_image":           "truck.png",
	})
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	expected := []Vehicle{
		{Index: 1, PresenceEntity: "binary_sensor.car1", Name: "Lexus", Image: "car-1.png"},
		{Index: 3, PresenceEntity: "input_boolean.car3", Name: "Car 3", Image: "truck.png"},
	}
	if got := cfg.Vehicles(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Vehicles() = %+v, expected %+v", got, expected)
	}
}

func TestEntities(t *testing.T) {
	cfg, err := NewConfig(map[string]any{
		"door_entity":          "cover.garage",
		"light_entity":         "light.garage",
		"car1_presence_entity": "binary_sensor.car",
		"car2_presence_entity": "binary_sensor.car",
	})
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	expected := []string{"cover.garage", "light.garage", "binary_sensor.car"}
	if got := cfg.Entities(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Entities() = %v, expected %v", got, expected)
	}
}

func TestConfigMapRoundTrip(t *testing.T) {
	cfg, err := NewConfig(map[string]any{
		"name":                 "Barn",
		"door_entity":          "cover.barn",
		"countdown_entity":     "sensor.barn_close",
		"car2_presence_entity": "binary_sensor.tractor",
		"color":                "red",
	})
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	again, err := NewConfig(cfg.Map())
	if err != nil {
		t.Fatalf("NewConfig(Map()) returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg, again) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", cfg, again)
	}
}

func TestStubConfigIsValid(t *testing.T) {
	cfg, err := NewConfig(StubConfig())
	if err != nil {
		t.Fatalf("NewConfig(StubConfig()) returned error: %v", err)
	}
	if cfg.Name != DefaultName {
		t.Errorf("Name = %s, expected %s", cfg.Name, DefaultName)
	}
}
