// Package monitor provides the device health monitor for Hearth Core.
//
// The monitor owns one DeviceRecord per catalogue device, runs a
// periodic concurrent poll cycle against each device's probe adapter,
// and drives a per-device connectivity state machine:
//
//	unknown ──failure──▶ degraded ──threshold──▶ offline
//	   │                    │                       │
//	   └──────success───────┴───────success─────────┘──▶ online
//
// Every transition publishes into the alerting service: an INFO
// "reconnected" when a device comes back, a WARNING on the first
// consecutive failure, an ALARM once failures reach the configured
// threshold (default 3).
//
// # Cycle discipline
//
// Cycles are strictly serialised. Probes fan out concurrently bounded
// by a per-device timeout and an overall parallelism limit; a tick
// arriving while a cycle is still running is skipped, never overlapped.
// One hung adapter cannot stall the cycle; its probe is abandoned at
// the timeout and recorded as a failure.
//
// # Reconnection policy
//
// The monitor is best-effort: it does not retry mid-cycle. Recovery is
// detected opportunistically on the next scheduled poll. Device-specific
// reconnect logic belongs to the external protocol adapter.
//
// # Usage
//
//	targets := make([]monitor.Target, 0, len(devices))
//	for _, d := range devices {
//	    targets = append(targets, monitor.Target{
//	        DeviceID: d.ID, Kind: string(d.Kind), Name: d.Name,
//	        Prober: heartbeats.ProberFor(d.ID),
//	    })
//	}
//	mon := monitor.New(cfg, targets, alerts, log)
//	mon.Start(ctx)
//	defer mon.Stop()
package monitor
