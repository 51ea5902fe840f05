// Package store persists botguard records in SQLite and decision counters
// in Redis.
//
// Store backs the lookup and tenant caches (it implements
// cache.ReferenceSource and cache.TenantSource) and holds the business
// records the pipeline writes: leads, language preferences and
// interactions. RedisRecorder keeps admission decision counters.
package store
