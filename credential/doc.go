// Package credential provides the session-token store consulted by erpclient before every
// request and mutated by its refresh flow.
//
// # Backends
//
//   - [MemoryStore]: process-local, for tests and short-lived tools.
//   - [RedisStore]: shared between processes through a Redis key with optional TTL.
//   - [FileStore]: a small JSON document written atomically, the CLI default.
//
// # Architecture boundaries
//
// This package only persists an opaque bearer string under a key name. It does NOT
// inspect tokens, decide when to refresh, or perform HTTP calls.
//
// # What this package must NOT do
//
//   - Import erpclient, refresh, or jwt (no upward imports).
//   - Log or otherwise expose token values.
package credential
