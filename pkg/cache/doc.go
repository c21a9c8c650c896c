// Package cache provides the Redis-backed label store used by enrichment.
//
// Labels learned by backfill fetches are kept per enrichment session and
// entity kind, so several dashboard processes serving the same session share
// what they have already fetched and never request an id twice.
//
// # Key Layout
//
//	cas:labels:<session>:<kind>          hash   id -> JSON Entry
//	cas:labels:<session>:<kind>:claimed  set    ids claimed for fetching
//
// Every write refreshes the TTL of the keys it touches. Reset deletes all
// keys of the session (full reload).
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	store := cache.NewRedisStore(redisClient, cache.NewSession(), 30*time.Minute)
//	backfiller := enrich.NewBackfiller(api.Items(sess), store, enrich.DefaultConfig())
//
// # Metrics
//
//   - cas_label_cache_ops_total{op,result} - Store operations
//   - cas_label_cache_errors_total{op} - Failed Redis operations
package cache
