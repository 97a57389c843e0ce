package alerting

import (
	"encoding/json"
	"fmt"
	"time"
)

// alertTopicPrefix is the base of the MQTT export topics. Messages are
// published to hearth/alerts/<severity> so consumers can subscribe by
// severity.
const alertTopicPrefix = "hearth/alerts"

// Publisher is the slice of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// NewMQTTSink returns a Sink that republishes every message to the broker
// as JSON. Messages are not retained; the in-memory buffer remains the
// authoritative store.
func NewMQTTSink(pub Publisher, qos byte) Sink {
	return SinkFunc(func(m Message) error {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("alerting: encode message %s: %w", m.ID, err)
		}
		topic := fmt.Sprintf("%s/%s", alertTopicPrefix, m.Severity)
		return pub.Publish(topic, payload, qos, false)
	})
}

// AlertRecorder is the slice of the InfluxDB client the sink needs.
type AlertRecorder interface {
	WriteAlertEvent(severity, category, source string, timestamp time.Time)
}

// NewInfluxSink returns a Sink that records each message as a time-series
// point. The recorder write is non-blocking and never returns an error;
// dropped points only degrade dashboards.
func NewInfluxSink(rec AlertRecorder) Sink {
	return SinkFunc(func(m Message) error {
		rec.WriteAlertEvent(string(m.Severity), m.Category, m.Source, m.Timestamp)
		return nil
	})
}
