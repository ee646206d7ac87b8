// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue
// payloads reuse the api package DTOs so the socket and the HTTP API agree
// on field names.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable.
package ipc
