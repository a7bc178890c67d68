package util

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Garage", "garage"},
		{"Main Garage", "main_garage"},
		{"Shop-2", "shop_2"},
		{"", "garage"},
	}
	for _, tt := range tests {
		if got := Slug(tt.name); got != tt.expected {
			t.Errorf("Slug(%q) = %s, expected %s", tt.name, got, tt.expected)
		}
	}
}

func TestConstructHAAdvertisement(t *testing.T) {
	advertisement := ConstructHAAdvertisement("Main Garage", "garage_card/online")

	if advertisement.Name != "Main Garage card displayed" {
		t.Errorf("Name = %s, expected 'Main Garage card displayed'", advertisement.Name)
	}
	if advertisement.StateTopic != "garage_card/main_garage/displayed" {
		t.Errorf("StateTopic = %s, expected garage_card/main_garage/displayed", advertisement.StateTopic)
	}
	if advertisement.PayloadOn != "true" || advertisement.PayloadOff != "false" {
		t.Errorf("Payloads = %s/%s, expected true/false", advertisement.PayloadOn, advertisement.PayloadOff)
	}
	if advertisement.DeviceClass != "running" {
		t.Errorf("DeviceClass = %s, expected 'running'", advertisement.DeviceClass)
	}
	if advertisement.Platform != "binary_sensor" {
		t.Errorf("Platform = %s, expected 'binary_sensor'", advertisement.Platform)
	}
	if advertisement.UniqueID != "garage_card-main_garage-displayed" {
		t.Errorf("UniqueID = %s", advertisement.UniqueID)
	}

	if len(advertisement.HAAvdvertisementAvailability) != 1 {
		t.Errorf("Expected 1 availability item, got %d", len(advertisement.HAAvdvertisementAvailability))
	} else {
		avail := advertisement.HAAvdvertisementAvailability[0]
		if avail.Topic != "garage_card/online" {
			t.Errorf("Availability topic = %s, expected 'garage_card/online'", avail.Topic)
		}
		if avail.PayloadAvailable != "online" || avail.PayloadNotAvailable != "offline" {
			t.Errorf("Availability payloads = %s/%s", avail.PayloadAvailable, avail.PayloadNotAvailable)
		}
	}

	if advertisement.Device.Name != "garage_card" {
		t.Errorf("Device name = %s, expected 'garage_card'", advertisement.Device.Name)
	}
}

func TestHAAdvertisement_ToJson(t *testing.T) {
	jsonStr := ConstructHAAdvertisement("Garage", "garage_card/online").ToJson()
	if jsonStr == "" {
		t.Fatal("ToJson() should not return empty string")
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		t.Fatalf("ToJson() produced invalid JSON: %v", err)
	}
	for _, key := range []string{"availability", "device", "uniq_id", "state_topic", "device_class"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON is missing %s: %s", key, jsonStr)
		}
	}
}

func TestAdvertiseHA(t *testing.T) {
	Config.Set("availability_topic", "garage_card/online")
	mockClient := &MockMQTTClient{connected: true}

	if err := AdvertiseHA("Garage", mockClient); err != nil {
		t.Fatalf("AdvertiseHA returned error: %v", err)
	}

	calls := mockClient.published()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 publish call, got %d", len(calls))
	}
	call := calls[0]
	if call.Topic != "homeassistant/binary_sensor/garage_card_garage/displayed/config" {
		t.Errorf("Topic = %s", call.Topic)
	}
	if !call.Retained {
		t.Error("discovery config should be retained")
	}
}

func TestPublishDisplayed(t *testing.T) {
	PublishDisplayed("Garage", true, nil)

	disconnected := &MockMQTTClient{}
	PublishDisplayed("Garage", true, disconnected)
	if len(disconnected.published()) != 0 {
		t.Error("nothing should be published while disconnected")
	}

	mockClient := &MockMQTTClient{connected: true}
	PublishDisplayed("Garage", true, mockClient)
	PublishDisplayed("Garage", false, mockClient)
	// let the token goroutines finish
	time.Sleep(10 * time.Millisecond)

	calls := mockClient.published()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 publish calls, got %d", len(calls))
	}
	if calls[0].Topic != "garage_card/garage/displayed" || calls[0].Payload != "true" {
		t.Errorf("first publish = %v", calls[0])
	}
	if calls[1].Payload != "false" {
		t.Errorf("second payload = %v, expected false", calls[1].Payload)
	}
}

func TestAdvertiseHACamera(t *testing.T) {
	Config.Set("availability_topic", "garage_card/online")
	mockClient := &MockMQTTClient{connected: true}

	if err := AdvertiseHACamera("Main Garage", mockClient); err != nil {
		t.Fatalf("AdvertiseHACamera returned error: %v", err)
	}
	calls := mockClient.published()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 publish call, got %d", len(calls))
	}
	if calls[0].Topic != "homeassistant/camera/garage_card_main_garage/schematic/config" {
		t.Errorf("Topic = %s", calls[0].Topic)
	}
	var adv HACameraAdvertisement
	if err := json.Unmarshal(calls[0].Payload.([]byte), &adv); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if adv.Topic != "garage_card/main_garage/schematic" || adv.Platform != "camera" {
		t.Errorf("advertisement = %+v", adv)
	}
}
