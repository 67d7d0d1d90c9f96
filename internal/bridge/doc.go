// Package bridge implements the file-drop command queue used to exchange
// work with the Unreal Editor watcher and other co-operating processes.
//
// # Layout
//
// A bridge root contains two directories:
//
//	<root>/inbox/   - pending commands, one JSON file per command
//	<root>/outbox/  - results, one JSON file per command ID
//
// Producers write commands atomically (temp file + rename) into inbox/.
// A consumer (the in-process Dispatcher, or the Unreal Editor watcher
// polling on its tick) picks up command files, executes the action, writes
// exactly one result file to outbox/ and deletes the command file.
//
// # Protocol
//
// Command files carry {"id", "action", "payload", "ts"}. Result files
// carry {"ok", "id"} plus "data" on success or "error" on failure.
// Command IDs are "<unix-millis>_<8-hex>" so files sort chronologically.
//
// The filesystem is the transport: no sockets, no broker, which keeps the
// Unreal side to a few lines of editor Python. Crash recovery is free
// because unconsumed commands simply remain in inbox/.
package bridge
