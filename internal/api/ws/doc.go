// Package ws provides a WebSocket endpoint for interactive evaluation.
//
// Each connection owns one sandbox runtime, so globals persist for the life
// of the connection. Frames are JSON text messages.
//
// Message Types (Client → Server):
//   - eval: run the script field, echoing the optional id
//   - reset: discard all globals
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: connection established, carries conn_id
//   - result: evaluation value and console output
//   - error: evaluation failed or the message was invalid
//   - reset: runtime was reset
//   - pong: reply to ping
//
// Example Usage:
//
//	handler := ws.NewHandler(sandboxConfig, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
