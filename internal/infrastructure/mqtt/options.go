package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hearthstead/hearth-core/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for broker acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time in milliseconds allowed for
	// in-flight operations to complete on disconnect.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the PING interval used to detect dead connections.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the highest valid QoS level.
	maxQoS = 2
)

// statusPayload is the body published to hearth/system/status, both for
// graceful transitions and as the broker-delivered last will.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func encodeStatus(status, clientID, reason string) []byte {
	payload, _ := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

// buildClientOptions translates Hearth config into paho client options:
// broker URL, credentials, auto-reconnect with capped backoff, and TLS
// when enabled.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Start fresh on every connect; subscriptions are restored client-side.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// configureLWT registers the last will so other services see an offline
// status if the server drops without a graceful disconnect. Retained at
// QoS 1 so late subscribers receive the last known state.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload := encodeStatus("offline", clientID, "unexpected_disconnect")
	opts.SetBinaryWill(Topics{}.SystemStatus(), payload, 1, true)
}
