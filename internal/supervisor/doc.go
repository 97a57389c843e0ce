// Package supervisor implements hearthwatch, the watchdog that owns
// the hearthd server process.
//
// It layers three things on top of the process manager:
//
//   - an active HTTP health probe against hearthd's health endpoint,
//     so a hung-but-alive server is detected and restarted just like a
//     crashed one
//   - a crash report aggregated from every recorded crash event,
//     served on demand and flushed to a JSON file at shutdown
//   - a stats API on its own port (stats, report, metrics, messages)
//     that keeps answering after the restart budget is exhausted,
//     backed by the supervisor's private alert buffer
//
// The supervisor and the server are separate OS processes; nothing
// here shares memory with hearthd.
package supervisor
