// Package session coordinates one shared chat-session store across every
// invocation of the program on a host.
//
// The first invocation to bind the loopback coordination port keeps the
// store: sessions live in its memory, each backed by one pretty-printed
// JSON snapshot on disk. Every later invocation discovers the keeper by
// probing the port and proxies the same four operations over
// newline-delimited JSON, one command per connection.
//
// Invariants:
// - A session's created_at never changes once set.
// - Message histories travel and persist whole, never as deltas.
// - Concurrent updates resolve last-write-wins under one store-wide lock.
// - GetOrCreate never fails when no keeper is reachable; it degrades to a
//   local, unpersisted session.
//
// Usage:
//
//	handle, _ := session.Open(ctx, session.Config{Dir: dir})
//	defer handle.Close()
//	sess, _ := handle.GetOrCreate(ctx)
//	sess.Append(session.RoleUser, "hello")
//	sess, _ = handle.Update(ctx, sess)
package session
