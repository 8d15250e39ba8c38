package engine

import "time"

type ThreadStat struct {
	// The commit team member id.
	ThreadID int

	// The geometries and primitives assigned to this thread and the
	// percentage of the total primitive count they represent.
	Geometries  int
	Primitives  int
	WorkPercent float32

	// Number of bvh nodes produced.
	Nodes int

	// Time spent building the assigned geometries.
	BuildTime time.Duration
}

type BuildStats struct {
	// Individual team member stats.
	Threads []ThreadStat

	// Top level tree size.
	TopLevelNodes int
	Primitives    int

	// Tracked bytes held by the acceleration structure.
	Bytes int64

	// Total build time from the first arrival to finalization.
	BuildTime time.Duration
}
