package util

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// MqttConnected is 1 while the broker connection is up.
	MqttConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "garage_card_mqtt_connected",
			Help: "Broker connectivity (1=connected, 0=disconnected).",
		},
	)

	StateUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "garage_card_state_updates_total",
			Help: "Number of state snapshots applied to the widget.",
		},
	)

	StructuralRendersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "garage_card_structural_renders_total",
			Help: "Number of times the widget tree was built from scratch.",
		},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_card_commands_total",
			Help: "Commands handed to the host, by domain and service.",
		},
		[]string{"domain", "service"},
	)

	AttachedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "garage_card_attached_clients",
			Help: "Browsers currently displaying the widget.",
		},
	)
)

func init() {
	prometheus.MustRegister(MqttConnected)
	prometheus.MustRegister(StateUpdatesTotal)
	prometheus.MustRegister(StructuralRendersTotal)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(AttachedClients)
}
