// Package tier stores the media catalog across two storage tiers: a small
// budgeted JSON file and a blob-backed fallback inside the shared container.
//
// The primary tier is preferred until a write exceeds its byte budget. At
// that point the whole catalog migrates to the fallback and the preference
// flips permanently, recorded on disk so restarts keep reading the right
// tier.
package tier
