// Package mqtt ingests sound levels published by devices over MQTT.
package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const disconnectQuiesceMS = 250

// ClientConfig holds MQTT broker connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewClient connects to the broker with auto-reconnect enabled.
func NewClient(cfg ClientConfig, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}
	return client, nil
}

// Disconnect closes the connection, allowing in-flight work to finish.
func Disconnect(client paho.Client) {
	client.Disconnect(disconnectQuiesceMS)
}
