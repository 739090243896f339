// Package deduplication suppresses repeated maintenance notifications.
//
// # Overview
//
// Every maintenance cycle re-evaluates the same conditions: a task that was
// overdue at 09:00 is still overdue at 09:30. Without deduplication the sink
// would receive the same notification every cycle.
//
// A notification is identified by its (kind, entity id) key. Once a key is
// admitted it is suppressed until the rolling Window elapses or the entity is
// mutated, whichever comes first. Mutations call Forget so a condition that
// is re-established after a change is reported again.
//
// # Atomicity
//
// Admit filters and records a whole batch under one lock. The maintenance
// scheduler collects a cycle's notifications and admits them only when the
// cycle finishes, so an abandoned cycle leaves the dedupe state untouched.
package deduplication
