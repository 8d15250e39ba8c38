package engine

import "sort"

// The Scheduler interface is implemented by algorithms that split the
// geometries of a build between the members of a commit team.
type Scheduler interface {
	// Assign each work item to one of numThreads threads. The workload
	// slice holds an estimated cost per item (the primitive count).
	//
	// This function returns the item indices for each thread; every item
	// appears exactly once.
	Schedule(workload []int, numThreads int) [][]int
}

// The round-robin scheduler ignores item costs and deals items out in order.
type roundRobinScheduler struct{}

// Create a new round-robin scheduler instance.
func NewRoundRobinScheduler() Scheduler {
	return roundRobinScheduler{}
}

func (roundRobinScheduler) Schedule(workload []int, numThreads int) [][]int {
	assignment := make([][]int, numThreads)
	for idx := range workload {
		thread := idx % numThreads
		assignment[thread] = append(assignment[thread], idx)
	}
	return assignment
}

// The balanced scheduler assumes that build time is proportional to the
// number of primitives and assigns the most expensive remaining item to the
// least loaded thread.
type balancedScheduler struct{}

// Create a new balanced scheduler instance.
func NewBalancedScheduler() Scheduler {
	return balancedScheduler{}
}

func (balancedScheduler) Schedule(workload []int, numThreads int) [][]int {
	order := make([]int, len(workload))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool {
		return workload[order[i]] > workload[order[j]]
	})

	assignment := make([][]int, numThreads)
	load := make([]int, numThreads)
	for _, idx := range order {
		// Ties go to the lowest thread id
		target := 0
		for thread := 1; thread < numThreads; thread++ {
			if load[thread] < load[target] {
				target = thread
			}
		}
		assignment[target] = append(assignment[target], idx)
		load[target] += workload[idx]
	}
	return assignment
}
