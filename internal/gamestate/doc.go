// Package gamestate tracks the fabricated sessions and instances created by
// the hand-written backend routes. Nothing here is persisted; records live
// until the process exits or, when idle expiry is configured, until they go
// untouched for too long.
package gamestate
