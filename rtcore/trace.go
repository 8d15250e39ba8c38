package rtcore

import "github.com/achilleasa/rtcore/engine"

// TraceEvent captures one query call. Before and After hold copies of the
// active lanes; inactive lanes are omitted.
type TraceEvent struct {
	// Identifies the device that served the query.
	DeviceID string

	Kind  string
	Width Width
	Lanes []int

	Before []engine.Ray
	After  []engine.Ray
}

// RayCollector receives trace events. Collectors run on the querying
// goroutine and must not modify the rays they are handed.
type RayCollector interface {
	CollectRays(ev TraceEvent)
}

// RayCollectorFunc adapts a function to the RayCollector interface.
type RayCollectorFunc func(ev TraceEvent)

func (f RayCollectorFunc) CollectRays(ev TraceEvent) {
	f(ev)
}
