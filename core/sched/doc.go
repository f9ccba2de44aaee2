// Package sched provides in-memory implementations of the notify.Scheduler
// abstraction, one per execution layer.
//
// Loop services a layer with a single goroutine draining a buffered task
// queue, suitable for realtime execution where each layer maps to its own
// goroutine. Manual queues tasks until stepped explicitly, giving tests and
// cooperative simulation drivers full control over interleaving.
//
// Both stamp their layer identity on the contexts they run tasks with, which
// is what the routing core's ownership and hand-off checks key on.
package sched
