// Package cache provides the two in-process caches used on the message path.
//
// BoundedCache is a fixed-capacity cache with strict FIFO eviction that also
// caches source absence as a sentinel value. It backs localized UI strings.
//
// MemoCache is an unbounded memoization cache for immutable mappings such as
// bot token to tenant id. It never caches absence.
//
// Both report hit and miss counters through Stats; StartReporter runs an
// explicitly owned periodic reporting task.
package cache
