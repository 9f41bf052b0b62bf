// Package watcher provides background pollers that keep cached problem
// sources in sync with their providers.
//
// A Watcher periodically lists a provider's problem ids and feeds newly
// discovered and vanished ids into a CachedSource. This replaces push-style
// discovery (e.g. bus signals) for providers that can only be polled.
package watcher
