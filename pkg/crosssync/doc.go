// Package crosssync propagates credential changes between contexts that
// share persisted storage.
//
// A Channel delivers external changes. FileChannel watches a durable
// credstore directory so separate processes observe each other's logins
// and logouts. Hub and MemoryChannel connect contexts within one process.
// Synchronizer turns the changes of a single key into logout and
// token-update callbacks.
//
// Consistency is eventual: a change becomes visible to another context only
// once its channel reports it.
package crosssync
