// Package mqtt provides MQTT connectivity for the Hearth server.
//
// The broker is the heartbeat path for devices that cannot serve an HTTP
// probe: agents publish periodic status messages to hearth/devices/{id}/status
// and the health monitor consumes them through a subscription on the
// wildcard pattern. The server also republishes alert messages under
// hearth/alerts/{severity} for external consumers.
//
// The client manages:
//   - auto-reconnect with capped backoff and client-side subscription restore
//   - a retained online/offline status on hearth/system/status, with a
//     last will so crashes are distinguishable from graceful shutdown
//   - panic recovery around message handlers
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        return tracker.HandleStatus(topic, payload)
//	    })
package mqtt
