// Package policy evaluates OPA/rego exclusion rules against discovered
// backend rows. A row matched by any enabled policy's deny set is dropped
// before it reaches the sink. Evaluation happens after deduplication, so an
// exclusion never resurrects a discarded duplicate.
package policy
