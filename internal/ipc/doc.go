// Package ipc implements the JSON-RPC control channel between the ratchet CLI
// and the daemon. The transport is a Unix domain socket owned by the daemon;
// requests and responses are plain structs so the wire format stays stable
// even as internal types evolve.
package ipc
