package util

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "GARAGE"

const CONFIG_NAME = "garage_card"

var Config = viper.New()

var config_listeners []func()
var listenersMu sync.Mutex

var validate = validator.New()

// Settings is the daemon side of the configuration. The card itself lives
// under the "card" key and is decoded by the card package.
type Settings struct {
	BrokerURI         string `mapstructure:"broker_uri" validate:"required,uri"`
	IDBase            string `mapstructure:"id_base" validate:"required"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	LogLevel          string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	StatestreamPrefix string `mapstructure:"statestream_prefix" validate:"required"`
	CommandPrefix     string `mapstructure:"command_prefix" validate:"required"`
	AvailabilityTopic string `mapstructure:"availability_topic" validate:"required"`
	AssetsDir         string `mapstructure:"assets_dir"`
	DetailsPort       int    `mapstructure:"details_port" validate:"min=1,max=65535"`
	SchematicScale    int    `mapstructure:"schematic_scale" validate:"min=1,max=8"`
	Cleansess         bool   `mapstructure:"cleansess"`
}

func RegisterNewConfigListener(new_listener func()) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	listenersMu.Lock()
	listeners := make([]func(), len(config_listeners))
	copy(listeners, config_listeners)
	listenersMu.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker_uri", "tcp://mqtt:1883")
	v.SetDefault("cleansess", false)
	v.SetDefault("id_base", "garage_card")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("details_port", 8080)
	v.SetDefault("statestream_prefix", "homeassistant")
	v.SetDefault("command_prefix", "garage_card/command")
	v.SetDefault("availability_topic", "garage_card/online")
	v.SetDefault("assets_dir", "./assets")
	v.SetDefault("schematic_scale", 1)
}

// LoadSettings decodes and validates the daemon settings from Config.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := Config.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decoding settings: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// SetupConfig wires defaults, the config file, environment and flags into
// Config and starts watching the file. A nil flag set skips flag binding.
func SetupConfig(flags *pflag.FlagSet) {
	Config.SetEnvPrefix(ENV_PREFIX)
	setDefaults(Config)

	// config file; SetConfigName resets an explicit file, so it goes first
	Config.SetConfigName(CONFIG_NAME)
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/garage_card")
	Config.AddConfigPath("/garage_card/config")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			Config.SetConfigFile(f.Value.String())
		}
	}

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Error().Msgf("unable to read config file: %v", err)
	}

	// environment variables
	Config.AutomaticEnv()

	// flags
	if flags != nil {
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			if err := Config.BindPFlag(f.Name, f); err != nil {
				Logger.Warn().Msgf("unable to bind flag %s: %v", f.Name, err)
			}
		})
	}

	// watch for changes
	if Config.ConfigFileUsed() != "" {
		Config.OnConfigChange(func(e fsnotify.Event) {
			Logger.Info().Msgf("Config file changed: %v", e.Name)
			Logger.Debug().Msgf("Config Additional Info: %v", e.String())
			OnNewConfig()
		})
		Config.WatchConfig()
	}
}
