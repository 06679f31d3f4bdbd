// Package connection provides the clients vault-cli uses to reach a
// vault-server:
//
//   - resp.go: RESP client for the device protocol (OPEN, READ, IOCTL, ...)
//   - socket.go: local management socket client (JSON reply lines)
//   - http.go: HTTP client for the read-only inspection API
//
// Each client holds at most one connection and is not safe for
// concurrent use.
package connection
