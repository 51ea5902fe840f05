// Package server exposes the pipeline over HTTP.
//
// Routes:
//   - POST /v1/messages  handle one decoded bot message, reply as JSON
//   - GET  /v1/stats     admission, cache and upstream state (authenticated)
//   - GET  /healthz, /readyz, /health, /health/{name}
//   - GET  /metrics      Prometheus exposition, when configured
//   - GET  /version
//
// POST /v1/messages is unauthenticated. The bot token in the body selects
// the tenant and is the only credential, so the endpoint must only be
// reachable by the bot transport, for example on a private network or
// behind a gateway that authenticates it. Operator credentials from the
// configured Authenticator guard /v1/stats only.
package server
