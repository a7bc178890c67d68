package card

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when no configuration object is supplied.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	CardType           = "custom:garage-card"
	DefaultName        = "Garage"
	DefaultAssetsPath  = "/local/garage-card/assets"
	MaxVehicles        = 3
	defaultImageFormat = "car-%d.png"
)

// Recognised option keys.
const (
	KeyType            = "type"
	KeyName            = "name"
	KeyDoorEntity      = "door_entity"
	KeyLightEntity     = "light_entity"
	KeyKeepOpenEntity  = "keep_open_entity"
	KeyCountdownEntity = "countdown_entity"
	KeyAssetsPath      = "assets_path"
)

func VehiclePresenceKey(i int) string { return "car" + strconv.Itoa(i) + "_presence_entity" }
func VehicleNameKey(i int) string     { return "car" + strconv.Itoa(i) + "_name" }
func VehicleImageKey(i int) string    { return "car" + strconv.Itoa(i) + "_image" }

// Config describes which entities drive which parts of the card. It is never
// modified after NewConfig; a change produces a new Config.
type Config struct {
	Extra           map[string]any `mapstructure:"-"`
	Name            string         `mapstructure:"name"`
	DoorEntity      string         `mapstructure:"door_entity"`
	LightEntity     string         `mapstructure:"light_entity"`
	KeepOpenEntity  string         `mapstructure:"keep_open_entity"`
	CountdownEntity string         `mapstructure:"countdown_entity"`
	AssetsPath      string         `mapstructure:"assets_path"`

	Car1PresenceEntity string `mapstructure:"car1_presence_entity"`
	Car1Name           string `mapstructure:"car1_name"`
	Car1Image          string `mapstructure:"car1_image"`
	Car2PresenceEntity string `mapstructure:"car2_presence_entity"`
	Car2Name           string `mapstructure:"car2_name"`
	Car2Image          string `mapstructure:"car2_image"`
	Car3PresenceEntity string `mapstructure:"car3_presence_entity"`
	Car3Name           string `mapstructure:"car3_name"`
	Car3Image          string `mapstructure:"car3_image"`
}

// Vehicle is one configured parking spot.
type Vehicle struct {
	PresenceEntity string
	Name           string
	Image          string
	Index          int
}

// Defaults returns the documented defaults that user values are merged over.
func Defaults() map[string]any {
	d := map[string]any{
		KeyName:            DefaultName,
		KeyDoorEntity:      "",
		KeyLightEntity:     "",
		KeyKeepOpenEntity:  "",
		KeyCountdownEntity: "",
		KeyAssetsPath:      DefaultAssetsPath,
	}
	for i := 1; i <= MaxVehicles; i++ {
		d[VehiclePresenceKey(i)] = ""
		d[VehicleNameKey(i)] = "Car " + strconv.Itoa(i)
		d[VehicleImageKey(i)] = fmt.Sprintf(defaultImageFormat, i)
	}
	return d
}

// StubConfig is offered when nothing has been configured yet.
func StubConfig() map[string]any {
	return map[string]any{
		KeyType:            CardType,
		KeyName:            DefaultName,
		KeyDoorEntity:      "",
		KeyLightEntity:     "",
		KeyKeepOpenEntity:  "",
		KeyAssetsPath:      DefaultAssetsPath,
	}
}

func recognised(key string) bool {
	if key == KeyType {
		return true
	}
	_, ok := Defaults()[key]
	return ok
}

// NewConfig merges raw over Defaults. A nil map is ErrInvalidConfig.
// Unrecognised keys are kept in Extra untouched.
func NewConfig(raw map[string]any) (*Config, error) {
	if raw == nil {
		return nil, ErrInvalidConfig
	}
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	known := lo.PickBy(raw, func(key string, value any) bool {
		return recognised(key) && value != nil
	})
	if err := v.MergeConfigMap(known); err != nil {
		return nil, fmt.Errorf("merging card config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding card config: %w", err)
	}
	c.Extra = lo.OmitBy(raw, func(key string, _ any) bool {
		return recognised(key)
	})
	return &c, nil
}

func (c *Config) vehicleFields(i int) (presence, name, image string) {
	switch i {
	case 1:
		return c.Car1PresenceEntity, c.Car1Name, c.Car1Image
	case 2:
		return c.Car2PresenceEntity, c.Car2Name, c.Car2Image
	case 3:
		return c.Car3PresenceEntity, c.Car3Name, c.Car3Image
	}
	return "", "", ""
}

// Vehicles lists configured vehicles in index order. A vehicle exists only
// when its presence entity is set.
func (c *Config) Vehicles() []Vehicle {
	all := lo.Map(lo.RangeFrom(1, MaxVehicles), func(i int, _ int) Vehicle {
		presence, name, image := c.vehicleFields(i)
		return Vehicle{Index: i, PresenceEntity: presence, Name: name, Image: image}
	})
	return lo.Filter(all, func(v Vehicle, _ int) bool {
		return v.PresenceEntity != ""
	})
}

func (c *Config) HasLight() bool     { return c.LightEntity != "" }
func (c *Config) HasKeepOpen() bool  { return c.KeepOpenEntity != "" }
func (c *Config) HasCountdown() bool { return c.CountdownEntity != "" }

// Entities lists every entity reference the card reads.
func (c *Config) Entities() []string {
	ids := []string{c.DoorEntity, c.LightEntity, c.KeepOpenEntity, c.CountdownEntity}
	for _, v := range c.Vehicles() {
		ids = append(ids, v.PresenceEntity)
	}
	return lo.Uniq(lo.Compact(ids))
}

// Map flattens the config back into option form, extras included.
func (c *Config) Map() map[string]any {
	m := make(map[string]any, len(c.Extra)+16)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[KeyName] = c.Name
	m[KeyDoorEntity] = c.DoorEntity
	m[KeyLightEntity] = c.LightEntity
	m[KeyKeepOpenEntity] = c.KeepOpenEntity
	m[KeyCountdownEntity] = c.CountdownEntity
	m[KeyAssetsPath] = c.AssetsPath
	for i := 1; i <= MaxVehicles; i++ {
		presence, name, image := c.vehicleFields(i)
		m[VehiclePresenceKey(i)] = presence
		m[VehicleNameKey(i)] = name
		m[VehicleImageKey(i)] = image
	}
	return m
}
