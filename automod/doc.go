// Auto-moderation rules engine for Discord guilds.
//
// This package (`github.com/sleetbot/warden/automod`) re-exports the core types of `automod/engine`. Each guild configures an ordered list of rules (blacklisted phrases, repeated content, mention spam, invite ads, regex, pressure, and so on). Every message from a member who isn't exempt is evaluated against all of the guild's rules in order. Each rule keeps its own strikes per (guild, user) subject, expiring after the rule's window. Every rule that reaches its strike limit on a message produces a verdict, and the dispatcher enacts each verdict's punishment against the platform in rule order.
//
// Rule kinds live in `automod/rules`. See `cmd/warden` for a daemon built on this package.
package automod
