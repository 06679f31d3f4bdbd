// Package command provides the vault-cli command definitions.
//
// Commands are built on urfave/cli/v2 and grouped by the server surface
// they use:
//
//   - device.go: cat, write, ioctl, stat and info over the RESP port
//   - system.go: status, devices, params and health over HTTP or the
//     local socket
//   - admin.go: privileged management over the local socket
//
// Every command parses its arguments, calls one client from package
// connection and renders the result with package output.
package command
