// Package tokenstore provides keyed storage for bearer tokens issued to BPM clients.
//
// Every backend stores opaque strings under a caller-chosen key, so several clients
// sharing one store keep independent tokens. Supported backends:
//   - Memory: process-local map, the default when no store is configured
//   - File: one file per key in a directory, atomic writes and 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: read-only environment variable access (requires external secret management)
//
// Logging in requires writable storage (memory, file or keyring).
package tokenstore
