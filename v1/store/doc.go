// Package store defines the atomic key-value contract the synchronization
// primitives coordinate through, together with its backends: a process-local
// in-memory store, Redis, Memcached and etcd. Every backend offers
// add-if-absent, compare-and-swap, increment and delete with per-key TTLs.
//
// Values are limited to integers and booleans. Anything else found on a key
// is surfaced as a raw value so that callers can detect key collisions.
package store
