// Package api provides the HTTP REST API and WebSocket server for the
// Hearth server process.
//
// It exposes the device catalogue, per-device health records, the
// alert message buffer, and a plain-text metrics exposition. The
// /api/v1/health endpoint doubles as the liveness probe the supervisor
// polls; everything else serves dashboards and operator tooling.
//
// The server follows the same lifecycle pattern as the other
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// A WebSocket hub broadcasts published alerts to subscribed clients in
// real time; the hub is wired into the alerting service as a sink.
package api
