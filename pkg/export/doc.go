// Package export implements the metric-tree traversal that discovers backend
// entities (databases, queues, remote services) for every monitored
// application and streams them as inventory rows.
//
// The walk is strictly sequential: applications, tiers, and backends are
// processed and written in catalog order, so the output is deterministic for
// an unchanged controller. A transport failure aborts the run; rows already
// flushed to the sink are preserved.
package export
