// Package source provides adapters and utilities for working with problem
// providers in the problem-cache library.
//
// This package contains several adapters for implementing the Provider
// interface. These adapters make it easier to implement and work with
// providers in a type-safe way.
package source
