// Package staleness provides policies for deciding when a populated problem
// cache should be considered stale.
//
// This package defines the Policy interface and several implementations that
// decide, from the time a cache was last populated, whether it should be
// repopulated on the next access. These policies can be used with the
// problem-cache package to customize cache refresh behavior.
package staleness
