package rtcore

import (
	"sync"

	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/handle"
)

// Scene is an opaque scene handle. The zero value is the null handle.
type Scene struct {
	h handle.Handle
}

// IsNil returns true for the null handle.
func (s Scene) IsNil() bool { return s.h.IsNil() }

func (s Scene) String() string { return s.h.String() }

// SceneFlags select the scene update and query behavior.
type SceneFlags uint32

const (
	SceneStatic      SceneFlags = 0
	SceneDynamic     SceneFlags = 1 << 0
	SceneCompact     SceneFlags = 1 << 8
	SceneCoherent    SceneFlags = 1 << 9
	SceneIncoherent  SceneFlags = 1 << 10
	SceneHighQuality SceneFlags = 1 << 11
	SceneRobust      SceneFlags = 1 << 16
)

// AlgorithmFlags select the query widths a scene serves. The zero value
// enables every width and interpolation.
type AlgorithmFlags uint32

const (
	Intersect1 AlgorithmFlags = 1 << iota
	Intersect4
	Intersect8
	Intersect16
	Interpolate
)

func (f AlgorithmFlags) allows(w Width) bool {
	if f == 0 {
		return true
	}
	switch w {
	case W1:
		return f&Intersect1 != 0
	case W4:
		return f&Intersect4 != 0
	case W8:
		return f&Intersect8 != 0
	case W16:
		return f&Intersect16 != 0
	}
	return false
}

func (f AlgorithmFlags) interpolates() bool {
	return f == 0 || f&Interpolate != 0
}

// State of the scene build state machine.
type State uint8

const (
	Modified State = iota
	Building
	Committed
)

func (s State) String() string {
	switch s {
	case Modified:
		return "modified"
	case Building:
		return "building"
	case Committed:
		return "committed"
	}
	return "unknown"
}

// ProgressMonitorFunc receives the build progress as a fraction in [0, 1].
// Its return value is informational; builds cannot be cancelled.
type ProgressMonitorFunc func(ctx interface{}, fraction float64) bool

type scene struct {
	dev    *device
	flags  SceneFlags
	aflags AlgorithmFlags

	// Mutation lock. The fields below are guarded by it.
	eng     *engine.Scene
	state   State
	version uint64

	progressFn  ProgressMonitorFunc
	progressCtx interface{}

	// Commit episode bookkeeping.
	commitMu sync.Mutex
	commitCv *sync.Cond
	episode  *episode
}

var scenes = handle.NewTable[*scene](handle.SceneKind)

func lookupScene(h Scene) (*scene, error) {
	if h.IsNil() {
		return nil, errorf(InvalidArgument, "invalid argument: null scene handle")
	}
	s, ok := scenes.Get(h.h)
	if !ok {
		return nil, errorf(InvalidArgument, "invalid argument: stale or foreign scene handle %s", h)
	}
	return s, nil
}

func newScene(c *apiCall, h Device, flags SceneFlags, aflags AlgorithmFlags) (Scene, error) {
	dev, err := lookupDevice(h)
	if err != nil {
		return Scene{}, err
	}
	c.use(dev)

	if flags&SceneCoherent != 0 && flags&SceneIncoherent != 0 {
		return Scene{}, errorf(InvalidArgument, "coherent and incoherent flags are mutually exclusive")
	}
	if flags&(SceneCoherent|SceneIncoherent) == 0 {
		flags |= SceneIncoherent
	}
	if aflags&^(Intersect1|Intersect4|Intersect8|Intersect16|Interpolate) != 0 {
		return Scene{}, errorf(InvalidArgument, "unknown algorithm flags %#x", uint32(aflags))
	}

	s := &scene{
		dev:    dev,
		flags:  flags,
		aflags: aflags,
		eng:    engine.NewScene(dev.alloc, engine.NewBalancedScheduler()),
	}
	s.commitCv = sync.NewCond(&s.commitMu)
	dev.scenes.Add(1)
	return Scene{h: scenes.Insert(s)}, nil
}

// NewScene creates a scene owned by dev. Setting both SceneCoherent and
// SceneIncoherent is rejected; setting neither selects SceneIncoherent.
func (t *Thread) NewScene(dev Device, flags SceneFlags, aflags AlgorithmFlags) Scene {
	return guarded(t, "NewScene", Scene{}, func(c *apiCall) (Scene, error) {
		return newScene(c, dev, flags, aflags)
	})
}

// DeleteScene destroys a scene and releases its memory. Deleting a scene
// while a commit is in progress fails with InvalidOperation.
func (t *Thread) DeleteScene(h Scene) {
	do(t, "DeleteScene", func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)

		s.commitMu.Lock()
		busy := s.episode != nil
		s.commitMu.Unlock()
		if busy {
			return errorf(InvalidOperation, "scene is being committed")
		}
		if _, ok := scenes.Remove(h.h); !ok {
			return errorf(InvalidArgument, "invalid argument: scene %s already deleted", h)
		}
		s.eng.Close()
		s.dev.scenes.Add(-1)
		return nil
	})
}

// SceneFlags returns the effective scene flags.
func (t *Thread) SceneFlags(h Scene) SceneFlags {
	return guarded(t, "SceneFlags", SceneFlags(0), func(c *apiCall) (SceneFlags, error) {
		s, err := lookupScene(h)
		if err != nil {
			return 0, err
		}
		c.use(s.dev)
		return s.flags, nil
	})
}

// SetProgressMonitorFunction registers a callback reporting build progress.
func (t *Thread) SetProgressMonitorFunction(h Scene, fn ProgressMonitorFunc, ctx interface{}) {
	do(t, "SetProgressMonitorFunction", func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)

		s.eng.Lock()
		s.progressFn = fn
		s.progressCtx = ctx
		s.eng.Unlock()
		return nil
	})
}

// SceneState returns the build state of the scene.
func (t *Thread) SceneState(h Scene) State {
	return guarded(t, "SceneState", Modified, func(c *apiCall) (State, error) {
		s, err := lookupScene(h)
		if err != nil {
			return Modified, err
		}
		c.use(s.dev)
		return s.currentState(), nil
	})
}

// IsCommitted returns true if the scene is ready for queries.
func (t *Thread) IsCommitted(h Scene) bool {
	return t.SceneState(h) == Committed
}

func (s *scene) currentState() State {
	s.eng.Lock()
	defer s.eng.Unlock()
	return s.state
}

// Run fn on geometry id while holding the scene mutation lock. A successful
// structural change re-opens the scene for building.
func (s *scene) withGeometry(id GeomID, fn func(g *engine.Geometry) error) error {
	s.eng.Lock()
	defer s.eng.Unlock()

	g, err := s.eng.Geometry(id)
	if err != nil {
		return err
	}
	if err := fn(g); err != nil {
		return err
	}
	s.markModified()
	return nil
}

// Run fn on the engine scene while holding the mutation lock.
func (s *scene) withScene(fn func(es *engine.Scene) error) error {
	s.eng.Lock()
	defer s.eng.Unlock()

	if err := fn(s.eng); err != nil {
		return err
	}
	s.markModified()
	return nil
}

// Must be called with the mutation lock held.
func (s *scene) markModified() {
	s.state = Modified
	s.version++
}
