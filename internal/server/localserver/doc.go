// Package localserver provides the local management server.
//
// It listens on a Unix domain socket and speaks a line protocol: one
// command per line, one JSON object per reply line. Local callers are
// trusted, so every command runs with privileged credentials:
//
//   - status              server, parameter and memory summary
//   - devices             per-device statistics
//   - ioctl <cmd> [value] run a control command
//   - trim <dev>          discard a device's data
//   - loglevel [level]    show or change the log level
//   - reload              reload configuration
//   - shutdown            stop the server
//
// Security:
//
//   - Only accessible via the Unix domain socket
//   - The socket is created with mode 0600; file system permissions
//     control access
package localserver
