// Package domain defines the core value types of the vault store.
//
// Domain types are plain values without IO or framework coupling:
//
//   - Params: process-wide sizing defaults (quantum, qset)
//   - Command: decoded control-plane command (tagged variant)
//   - Code: packed numeric command code, decoded once at the boundary
//   - Credentials: caller privilege carried on a context
//   - DevNum: major/minor device numbering
//   - Errors: stable, code-addressed error values
package domain
