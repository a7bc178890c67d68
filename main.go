package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/elijahnyp/garage_card/card"
	"github.com/elijahnyp/garage_card/host"
	. "github.com/elijahnyp/garage_card/util"
)

const version = "1.3.0"

var (
	widget   *card.Widget
	mqttHost *host.MQTTHost
	wsHub    *WSHub

	// serializes config application between file reloads and the editor
	configMu sync.Mutex
)

// applyCardConfig replaces the card configuration wholesale and re-renders
// against the current state.
func applyCardConfig(raw map[string]interface{}) error {
	configMu.Lock()
	defer configMu.Unlock()
	cfg, err := card.NewConfig(raw)
	if err != nil {
		return fmt.Errorf("card config: %w", err)
	}
	if err := widget.Configure(cfg); err != nil {
		return fmt.Errorf("card config: %w", err)
	}
	mqttHost.Watch(cfg)
	widget.UpdateState(mqttHost.Store().Snapshot())
	if client := CurrentClient(); client != nil && client.IsConnected() {
		if err := AdvertiseHA(cfg.Name, client); err != nil {
			Logger.Warn().Err(err).Msg("Error advertising card")
		}
	}
	return nil
}

// loadCardConfig reads the "card" section, falling back to the stub config.
func loadCardConfig() {
	raw := card.StubConfig()
	if Config.IsSet("card") {
		raw = Config.GetStringMap("card")
	} else {
		Logger.Warn().Msg("no card section configured, using stub config")
	}
	if err := applyCardConfig(raw); err != nil {
		Logger.Error().Err(err).Msg("Error applying card config")
	}
}

func cardName() string {
	if cfg := widget.Config(); cfg != nil {
		return cfg.Name
	}
	return card.DefaultName
}

func registerHandlers(monitor *MonitorServer, assetsDir string) {
	monitor.AddHandler("/", HomeHandler)
	monitor.AddHandler("/card", CardFragment)
	monitor.AddHandler("/ws", ServeWebSocket)
	monitor.AddHandler("/api/view", APIView)
	monitor.AddHandler("/api/click", APIClick)
	monitor.AddHandler("/api/size", APISize)
	monitor.AddHandler("/api/editor/schema", APIEditorSchema)
	monitor.AddHandler("/api/editor/config", APIEditorConfig)
	monitor.AddHandler("/schematic.png", SchematicPNG)
	monitor.AddRawHandler(card.DefaultAssetsPath+"/", http.StripPrefix(card.DefaultAssetsPath+"/", http.FileServer(http.Dir(assetsDir))))
	monitor.AddRawHandler("/metrics", promhttp.Handler())
}

func run(ctx context.Context, flags *pflag.FlagSet) error {
	LogInit("info")
	Logger.Info().Msgf("GARAGE-CARD v%s", version)
	SetupConfig(flags)
	settings, err := LoadSettings()
	if err != nil {
		return err
	}

	topics := NewTopicBuilder(settings.StatestreamPrefix, settings.CommandPrefix)
	wsHub = NewHub(
		func() {
			widget.Attach()
			PublishDisplayed(cardName(), true, CurrentClient())
		},
		func() {
			widget.Detach()
			PublishDisplayed(cardName(), false, CurrentClient())
		},
	)
	go wsHub.Run()

	widget = card.NewWidget(
		card.DispatcherFunc(func(cmd card.Command) { mqttHost.Dispatch(cmd) }),
		card.WithObserver(wsHub.BroadcastView),
	)
	mqttHost = host.NewMQTTHost(topics, widget)

	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(loadCardConfig)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		if err := AdvertiseHA(cardName(), client); err != nil {
			Logger.Error().Err(err).Msg("Error advertising card")
		}
		PublishDisplayed(cardName(), widget.Attached(), client)
	})
	RegisterNewConfigListener(MqttInit)
	forwarder := NewSnapshotForwarder(SnapshotSource{
		Topic:  func() string { return SchematicTopic(cardName()) },
		Render: renderSchematic,
	})
	RegisterNewConfigListener(func() {
		forwarder.Reload()
		if client := CurrentClient(); forwarder.Running() && client != nil && client.IsConnected() {
			if err := AdvertiseHACamera(cardName(), client); err != nil {
				Logger.Warn().Err(err).Msg("Error advertising schematic camera")
			}
		}
	})
	RegisterMQTTConnectHook("schematic_camera", func(client MQTT.Client) {
		if !forwarder.Running() {
			return
		}
		if err := AdvertiseHACamera(cardName(), client); err != nil {
			Logger.Error().Err(err).Msg("Error advertising schematic camera")
		}
	})
	OnNewConfig()

	monitor := NewMonitorServer()
	registerHandlers(monitor, settings.AssetsDir)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("starting monitor server: %w", err)
	}
	port := settings.DetailsPort
	RegisterNewConfigListener(func() {
		if p := Config.GetInt("details_port"); p != port {
			port = p
			monitor.Restart()
		}
	})
	Logger.Info().Msg("ready")

	<-ctx.Done()
	Logger.Info().Msg("shutting down")
	widget.Detach()
	forwarder.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		Logger.Warn().Err(err).Msg("Error shutting down monitor server")
	}
	if client := CurrentClient(); client != nil && client.IsConnected() {
		client.Publish(Config.GetString("availability_topic"), 0, true, "offline").WaitTimeout(time.Second)
		client.Disconnect(1000)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "garage_card",
		Short:        "Serve the garage card backed by Home Assistant over MQTT",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags())
		},
	}
	fs := cmd.Flags()
	fs.String("config", "", "Path to the config file (default: search for garage_card.* in the usual places)")
	fs.String("log_level", "info", "Log level: trace, debug, info, warn or error")
	fs.String("broker_uri", "tcp://mqtt:1883", "MQTT broker URI")
	fs.Int("details_port", 8080, "Port of the card web server")
	fs.String("assets_dir", "./assets", "Directory holding the card images")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
