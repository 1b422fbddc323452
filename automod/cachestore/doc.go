// Short-lived caches for the REST lookups message evaluation would otherwise need: member and bot standing, and invite code resolution.
//
// Entries are grouped by cache name, each with its own lifetime (see DefaultTTLs). Standing is purged explicitly when the gateway reports a member update. The redis store shares entries between processes, with a small in-process tier in front; the memory store keeps a separate LRU per name.
package cachestore
