package rtcore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/handle"
	"github.com/achilleasa/rtcore/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Device is an opaque device handle. The zero value is the null handle.
type Device struct {
	h handle.Handle
}

// IsNil returns true for the null handle.
func (d Device) IsNil() bool { return d.h.IsNil() }

func (d Device) String() string { return d.h.String() }

// ErrorFunc receives every error raised by calls on a device.
type ErrorFunc func(code Code, msg string)

// MemoryMonitorFunc is consulted for every tracked allocation (bytes > 0)
// and release (bytes < 0). Returning false on an allocation fails the
// triggering call with OutOfMemory; the result is ignored for releases.
type MemoryMonitorFunc func(bytes int64, post bool) bool

// Parameter names a device parameter for SetParameter.
type Parameter int

const (
	// Size of the software tessellation cache in bytes.
	SoftwareCacheSize Parameter = iota
)

type device struct {
	id     string
	logger log.Logger
	cfg    config
	legacy bool

	// Guards the callbacks below. Callers are expected to configure them
	// before issuing work; the lock only keeps the reads coherent.
	mu        sync.RWMutex
	errorFn   ErrorFunc
	monitorFn MemoryMonitorFunc
	collector RayCollector
	cacheSize int64

	alloc  *engine.Allocator
	scenes atomic.Int32
	stats  *queryStats

	lastBuild atomic.Pointer[engine.BuildStats]
}

var devices = handle.NewTable[*device](handle.DeviceKind)

func newDevice(cfg string) (*device, error) {
	if !cpuSupported() {
		return nil, errorf(UnsupportedCPU, "cpu lacks the baseline instruction set")
	}
	parsed, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dev := &device{
		id:        id,
		logger:    log.New(fmt.Sprintf("rtcore/device-%s", id[:8])),
		cfg:       parsed,
		cacheSize: parsed.tessellationCacheSize,
		stats:     newQueryStats(id),
	}
	if dev.cacheSize != 0 && dev.cacheSize < minCacheSize {
		dev.cacheSize = minCacheSize
	}
	dev.alloc = engine.NewAllocator(engine.MemoryMonitorFunc(dev.notify))

	if parsed.verbose >= 1 {
		dev.logger.Infof("created device %s (isa %s, max packet width %d, threads %d)", id, parsed.isa, parsed.width, parsed.threads)
	}
	return dev, nil
}

func (d *device) notify(bytes int64, post bool) bool {
	d.mu.RLock()
	fn := d.monitorFn
	d.mu.RUnlock()
	if fn == nil {
		return true
	}
	return fn(bytes, post)
}

func (d *device) errorFunc() ErrorFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.errorFn
}

func (d *device) rayCollector() RayCollector {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.collector
}

func lookupDevice(h Device) (*device, error) {
	if h.IsNil() {
		return nil, errorf(InvalidArgument, "invalid argument: null device handle")
	}
	dev, ok := devices.Get(h.h)
	if !ok {
		return nil, errorf(InvalidArgument, "invalid argument: stale or foreign device handle %s", h)
	}
	return dev, nil
}

// NewDevice creates a device from a configuration string such as
// "threads=4,verbose=1,isa=avx2". It returns the null handle on failure.
func (t *Thread) NewDevice(cfg string) Device {
	return guarded(t, "NewDevice", Device{}, func(c *apiCall) (Device, error) {
		dev, err := newDevice(cfg)
		if err != nil {
			return Device{}, err
		}
		c.use(dev)
		return Device{h: devices.Insert(dev)}, nil
	})
}

// DeleteDevice destroys a device. Devices that still own scenes cannot be
// deleted.
func (t *Thread) DeleteDevice(h Device) {
	do(t, "DeleteDevice", func(c *apiCall) error {
		dev, err := lookupDevice(h)
		if err != nil {
			return err
		}
		c.use(dev)
		if dev.legacy {
			return errorf(InvalidOperation, "the legacy device is destroyed with Exit")
		}
		if n := dev.scenes.Load(); n > 0 {
			return errorf(InvalidOperation, "device still owns %d scene(s)", n)
		}
		devices.Remove(h.h)
		return nil
	})
}

// SetParameter sets a device parameter. Only SoftwareCacheSize is
// supported; its value is raised to at least 1 MiB.
func (t *Thread) SetParameter(h Device, p Parameter, value int64) {
	do(t, "SetParameter", func(c *apiCall) error {
		dev, err := lookupDevice(h)
		if err != nil {
			return err
		}
		c.use(dev)

		switch p {
		case SoftwareCacheSize:
			if value < minCacheSize {
				value = minCacheSize
			}
			dev.mu.Lock()
			dev.cacheSize = value
			dev.mu.Unlock()
			return nil
		}
		return errorf(InvalidArgument, "unknown parameter %d", int(p))
	})
}

// SetErrorFunction registers the device error callback. A nil func removes it.
func (t *Thread) SetErrorFunction(h Device, fn ErrorFunc) {
	do(t, "SetErrorFunction", func(c *apiCall) error {
		dev, err := lookupDevice(h)
		if err != nil {
			return err
		}
		c.use(dev)
		dev.mu.Lock()
		dev.errorFn = fn
		dev.mu.Unlock()
		return nil
	})
}

// SetMemoryMonitorFunction registers the device memory monitor. A nil func
// removes it.
func (t *Thread) SetMemoryMonitorFunction(h Device, fn MemoryMonitorFunc) {
	do(t, "SetMemoryMonitorFunction", func(c *apiCall) error {
		dev, err := lookupDevice(h)
		if err != nil {
			return err
		}
		c.use(dev)
		dev.mu.Lock()
		dev.monitorFn = fn
		dev.mu.Unlock()
		return nil
	})
}

// SetRayCollector registers a collector receiving before/after copies of
// every query on the device. A nil collector disables tracing.
func (t *Thread) SetRayCollector(h Device, collector RayCollector) {
	do(t, "SetRayCollector", func(c *apiCall) error {
		dev, err := lookupDevice(h)
		if err != nil {
			return err
		}
		c.use(dev)
		dev.mu.Lock()
		dev.collector = collector
		dev.mu.Unlock()
		return nil
	})
}

// MaxPacketWidth returns the widest packet the device serves, or 0 on failure.
func (t *Thread) MaxPacketWidth(h Device) Width {
	return guarded(t, "MaxPacketWidth", Width(0), func(c *apiCall) (Width, error) {
		dev, err := lookupDevice(h)
		if err != nil {
			return 0, err
		}
		c.use(dev)
		return dev.cfg.width, nil
	})
}

// Gatherer exposes the device query counters. Counters are only collected
// for devices created with "stats=1".
func (t *Thread) Gatherer(h Device) prometheus.Gatherer {
	return guarded[prometheus.Gatherer](t, "Gatherer", nil, func(c *apiCall) (prometheus.Gatherer, error) {
		dev, err := lookupDevice(h)
		if err != nil {
			return nil, err
		}
		c.use(dev)
		return dev.stats.registry, nil
	})
}

// DebugDump renders the query counters and the statistics of the last
// build, logs them and resets the counters.
func (t *Thread) DebugDump(h Device) string {
	return guarded(t, "DebugDump", "", func(c *apiCall) (string, error) {
		dev, err := lookupDevice(h)
		if err != nil {
			return "", err
		}
		c.use(dev)

		out, err := dev.stats.render(dev.lastBuild.Load())
		if err != nil {
			return "", err
		}
		dev.stats.reset()
		dev.logger.Noticef("device statistics\n%s", out)
		return out, nil
	})
}
