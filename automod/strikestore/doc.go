// Automod component for tracking per-subject strike marks with time-based expiry.
//
// Marks are stored in process memory and are never persisted: a restart resets every subject's strikes.
package strikestore
