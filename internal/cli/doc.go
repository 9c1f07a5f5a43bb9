// Package cli provides the interactive glucolink command-line client.
//
// It wires configuration, encrypted credential storage, the session manager
// and the measurement service into an interactive REPL. Typical flow: store
// credentials once with 'configure', then query readings; sign-in and session
// renewal happen transparently on first use.
//
// Key features:
//   - Configure / Logout (credentials at rest, session lifecycle)
//   - Current reading, history, glucose trends
//   - Sensor status and the connection list
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
