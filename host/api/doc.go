// Package api serves the control surface of a host link over HTTP.
//
// Routes:
//
//	GET  /health                 liveness and uptime
//	GET  /status                 host.Status snapshot
//	GET  /metrics                prometheus exposition
//	POST /trigger                {"delay": n}
//	PUT  /trigger/mode           {"link_trigger_mode": bool}
//	POST /trigger-ack
//	POST /writer/command         {"words": [...]}
//	POST /writer/test
//	POST /test/reset
//	POST /errors/ack
//	PUT  /command/read-pointer   {"read_pointer": n}
//	GET  /command/next
//
// Errors are returned as {"error": "..."}: 400 for invalid parameters, 404
// when no command packet is unread, 409 while the writer or trigger
// inserter is busy and 503 when the host is not running.
package api
