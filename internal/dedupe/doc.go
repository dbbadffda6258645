// Package dedupe remembers the outcome of recent submissions so that a
// repeated submission (a double-clicked send button, a retried request)
// can be answered with the original result instead of being applied twice.
package dedupe
