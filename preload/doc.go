// Package preload implements a loading queue for game and web assets.
//
// Items are normalized from paths or partial descriptors, matched to a
// Strategy through a Registry and loaded with a bounded number of concurrent
// loads. The queue aggregates progress across items, keeps items marked
// MaintainOrder (and javascript, unless disabled) surfacing in submission
// order, and caches results by id and by src.
//
// Failures of single items are reported as events and never stop the queue
// unless Options.StopOnError is set.
package preload
