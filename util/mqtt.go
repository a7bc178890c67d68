package util

import (
	"fmt"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var mqttMu sync.Mutex

var subscriptions map[string]MQTT.MessageHandler

var connectHandlers map[string]func(MQTT.Client)

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("Connected")
	MqttConnected.Set(1)
	subscribe(client)
	client.Publish(Config.GetString("availability_topic"), 0, true, "online").Wait()
	mqttMu.Lock()
	handlers := make([]func(MQTT.Client), 0, len(connectHandlers))
	for _, handler := range connectHandlers {
		handlers = append(handlers, handler)
	}
	mqttMu.Unlock()
	for _, handler := range handlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	mqttMu.Lock()
	defer mqttMu.Unlock()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

func subscribe(client MQTT.Client) {
	mqttMu.Lock()
	subs := make(map[string]MQTT.MessageHandler, len(subscriptions))
	for topic, handler := range subscriptions {
		subs[topic] = handler
	}
	mqttMu.Unlock()
	for topic, handler := range subs {
		if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
		}
	}
}

// RegisterMQTTSubscription records a subscription that is (re)applied on
// every connect. If the client is already connected it is applied now. A nil
// handler removes the subscription.
func RegisterMQTTSubscription(topic string, handler MQTT.MessageHandler) {
	mqttMu.Lock()
	if subscriptions == nil {
		subscriptions = make(map[string]MQTT.MessageHandler)
	}
	_, existed := subscriptions[topic]
	if handler == nil {
		delete(subscriptions, topic)
	} else {
		subscriptions[topic] = handler
	}
	client := Client
	mqttMu.Unlock()

	if client == nil || !client.IsConnected() {
		return
	}
	if handler == nil {
		if existed {
			if token := client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
				Logger.Warn().Msgf("Error Unsubscribing from %s: %v", topic, token.Error())
			}
		}
		return
	}
	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		Logger.Error().Msgf("Error Subscribing to %s: %v", topic, token.Error())
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	MqttConnected.Set(0)
	Logger.Info().Msgf("Connect lost: %v", err)
}

func MqttInit() {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(Config.GetString("availability_topic"), "offline", 0, true)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	mqttMu.Lock()
	old := Client
	Client = nil
	mqttMu.Unlock()
	if old != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if old.IsConnected() {
			old.Disconnect(1000)
		}
	}

	client := MQTT.NewClient(opts)
	mqttMu.Lock()
	Client = client
	mqttMu.Unlock()

	// with ConnectRetry the token only completes once a connection is up
	broker := Config.GetString("broker_uri")
	token := client.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error connecting to %s: %v", broker, fmt.Errorf("%w", token.Error()))
		}
	}()
}

// CurrentClient returns the live client, which MqttInit replaces on every
// config reload.
func CurrentClient() MQTT.Client {
	mqttMu.Lock()
	defer mqttMu.Unlock()
	return Client
}
