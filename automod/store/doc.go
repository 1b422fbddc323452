// Durable storage for automod configuration: rule definitions and per-guild settings, persisted with gorm to sqlite or postgres.
package store
