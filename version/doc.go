// Package version implements vector clocks, the causality marker every
// replicated entity carries.
//
// A VectorClock is an immutable value. Increment and Merge return new clocks
// and never modify the receiver, so clocks can be shared between goroutines
// once created.
//
//	a := version.NewVectorClock().Increment("device-a")      // {"device-a":1}
//	b := version.NewVectorClock().Increment("device-b")      // {"device-b":1}
//
//	a.CompareTo(b)                                           // Concurrent
//	merged := a.Merge(b).Increment("device-a")               // {"device-a":2,"device-b":1}
//	merged.CompareTo(a)                                      // HappenedAfter
//
// Clocks serialize to a flat JSON object of node id to counter, for example
// {"nodeA":2,"nodeB":1}. Absent nodes are implicitly zero, so two clocks that
// differ only in zero-valued entries are Equal.
//
// ClockManager holds the current clock of one node behind a mutex for callers
// that stamp local writes and observe remote clocks from several goroutines.
package version
