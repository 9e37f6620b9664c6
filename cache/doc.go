// Package cache provides the bounded instance cache that maps sources to
// loaded documents.
//
// The cache is strictly first-in first-out: when a new key arrives at a full
// cache, the entry inserted earliest is evicted before the new one is added,
// whether or not it was read recently. Reads never refresh an entry.
//
// Evicting an entry only forgets it. Releasing whatever the value holds is
// the owner's job, either explicitly or through an eviction callback.
package cache
