// Package lock provides distributed synchronization primitives coordinated
// entirely through a shared atomic store: a counting Semaphore, a Lock
// (a Semaphore with a single permit) and a one-shot Event.
//
// Processes never talk to each other. Every waiter polls the store at a
// fixed interval, so there is no fairness among waiters. All state lives in
// store entries carrying a TTL, which is what frees permits and signals left
// behind by a crashed holder.
package lock
