// Package service implements the HTTP API of a node and a client for it.
//
//	GET  /api/node/info               identity and connected peers
//	GET  /api/channels                all channels
//	POST /api/channels                open a channel {peer_node_id, capacity}
//	POST /api/channels/:id/payments   pay {amount}
//	GET  /api/channels/:id/payments   payments of a channel
//	POST /api/channels/:id/close      close a channel
//	GET  /ws                          ledger events, as JSON, over a websocket
//	GET  /metrics                     Prometheus metrics
//
// Amounts are in satoshis. Failures are answered with {"error", "kind"}, where
// kind is the ledger error type.
package service
