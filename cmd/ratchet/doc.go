// Command ratchet is the operator CLI for the work item lifecycle engine. It
// talks to a running ratchetd over the IPC socket and falls back to direct
// store access when no daemon is up.
package main
