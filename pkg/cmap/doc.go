// Package cmap provides a sharded concurrent map.
//
// Each shard has its own RWMutex, so operations on keys in different
// shards do not contend. Range visits shards one at a time and does not
// give a consistent snapshot.
//
//	m := cmap.New[string, *Conn]()
//	m.Set(id, conn)
//	conn, ok := m.Get(id)
package cmap
