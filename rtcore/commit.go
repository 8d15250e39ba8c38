package rtcore

import (
	"sync"

	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/fpenv"
)

// A cyclic barrier for a fixed number of parties.
type barrier struct {
	mu      sync.Mutex
	cv      *sync.Cond
	parties int
	waiting int
	gen     uint64
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cv = sync.NewCond(&b.mu)
	return b
}

// Block until every party has called wait for the current generation.
func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cv.Broadcast()
		return
	}
	for gen == b.gen {
		b.cv.Wait()
	}
}

// One collective build of a scene. Join and leave bookkeeping is guarded by
// the scene commit lock; err has its own lock since team members record
// failures while building.
type episode struct {
	numThreads int
	build      *engine.Build
	version    uint64

	joined  []bool
	arrived int
	left    int
	closed  bool

	barrier *barrier

	mu  sync.Mutex
	err error
}

func (ep *episode) fail(err error) {
	if err == nil {
		return
	}
	ep.mu.Lock()
	if ep.err == nil {
		ep.err = err
	}
	ep.mu.Unlock()
}

func (ep *episode) failed() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.err
}

// Commit builds the scene on the calling goroutine. It is equivalent to
// CommitThread(h, 0, 1).
func (t *Thread) Commit(h Scene) {
	do(t, "Commit", func(c *apiCall) error {
		return commit(c, h, 0, 1)
	})
}

// CommitThread joins a team of numThreads callers building the scene
// together. Every member must call it with the same numThreads and a
// distinct threadID in [0, numThreads). The call returns once the whole
// team is done; the scene is committed only if no member failed and no
// mutation raced with the build.
func (t *Thread) CommitThread(h Scene, threadID, numThreads int) {
	do(t, "CommitThread", func(c *apiCall) error {
		return commit(c, h, threadID, numThreads)
	})
}

func commit(c *apiCall, h Scene, threadID, numThreads int) error {
	s, err := lookupScene(h)
	if err != nil {
		return err
	}
	c.use(s.dev)

	if numThreads == 0 {
		return errorf(InvalidOperation, "commit team needs at least one thread")
	}
	if numThreads < 0 || threadID < 0 || threadID >= numThreads {
		return errorf(InvalidArgument, "invalid argument: thread %d of %d", threadID, numThreads)
	}

	ep, err := s.join(threadID, numThreads)
	if err != nil {
		return err
	}

	release := fpenv.Acquire()
	defer release()

	ep.fail(safely(func() error { return ep.build.Partition(threadID) }))
	ep.barrier.wait()
	if threadID == 0 && ep.failed() == nil {
		ep.fail(safely(ep.build.Finalize))
	}
	ep.barrier.wait()

	return s.leave(ep)
}

// Enter the current episode or open a new one.
func (s *scene) join(threadID, numThreads int) (*episode, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	// A full team is still running; wait for the next episode.
	for s.episode != nil && s.episode.arrived == s.episode.numThreads {
		s.commitCv.Wait()
	}

	ep := s.episode
	if ep == nil {
		var err error
		if ep, err = s.openEpisode(numThreads); err != nil {
			return nil, err
		}
		s.episode = ep
	}

	if ep.numThreads != numThreads {
		return nil, errorf(InvalidOperation, "commit team size mismatch: %d joined a team of %d", numThreads, ep.numThreads)
	}
	if ep.joined[threadID] {
		return nil, errorf(InvalidOperation, "thread %d already joined the commit team", threadID)
	}
	ep.joined[threadID] = true
	ep.arrived++
	return ep, nil
}

// Snapshot the scene and move it to Building. Must be called with the
// commit lock held.
func (s *scene) openEpisode(numThreads int) (*episode, error) {
	s.eng.Lock()
	defer s.eng.Unlock()

	fn, ctx := s.progressFn, s.progressCtx
	var progress engine.ProgressFunc
	if fn != nil {
		progress = func(fraction float64) {
			_ = fn(ctx, fraction)
		}
	}

	build, err := s.eng.NewBuild(numThreads, progress)
	if err != nil {
		return nil, err
	}
	s.state = Building

	return &episode{
		numThreads: numThreads,
		build:      build,
		version:    s.version,
		joined:     make([]bool, numThreads),
		barrier:    newBarrier(numThreads),
	}, nil
}

// Leave the episode. The last member publishes or aborts the build; every
// member waits for that and returns the episode outcome.
func (s *scene) leave(ep *episode) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	ep.left++
	if ep.left < ep.numThreads {
		for !ep.closed {
			s.commitCv.Wait()
		}
		return ep.failed()
	}

	err := ep.failed()
	s.eng.Lock()
	if err == nil {
		err = ep.build.Publish()
	}
	if err != nil {
		ep.build.Abort()
	}
	if err == nil && s.version == ep.version {
		s.state = Committed
	} else {
		s.state = Modified
	}
	accel := s.eng.Accel()
	s.eng.Unlock()
	ep.fail(err)

	if err == nil && accel != nil {
		stats := accel.Stats()
		s.dev.lastBuild.Store(&stats)
		if s.dev.cfg.verbose >= 3 {
			s.dev.logger.Infof("scene build statistics\n%s", renderBuildStats(stats))
		}
	}

	ep.closed = true
	s.episode = nil
	s.commitCv.Broadcast()
	return ep.failed()
}
