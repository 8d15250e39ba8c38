package rtcore

import "sync"

// The process wide device managed by Init and Exit.
var legacy struct {
	mu  sync.Mutex
	dev *device
	h   Device
}

func legacyDevice() *device {
	legacy.mu.Lock()
	defer legacy.mu.Unlock()
	return legacy.dev
}

// Init creates the process wide legacy device. It fails with
// InvalidOperation if the device already exists.
func (t *Thread) Init(cfg string) {
	do(t, "Init", func(c *apiCall) error {
		legacy.mu.Lock()
		defer legacy.mu.Unlock()

		if legacy.dev != nil {
			c.dev = legacy.dev
			return errorf(InvalidOperation, "already initialized")
		}
		dev, err := newDevice(cfg)
		if err != nil {
			return err
		}
		dev.legacy = true
		c.dev = dev
		legacy.dev = dev
		legacy.h = Device{h: devices.Insert(dev)}
		return nil
	})
}

// Exit destroys the legacy device. It fails with InvalidOperation if Init
// was not called or if the device still owns scenes.
func (t *Thread) Exit() {
	do(t, "Exit", func(c *apiCall) error {
		legacy.mu.Lock()
		defer legacy.mu.Unlock()

		if legacy.dev == nil {
			return errorf(InvalidOperation, "not initialized")
		}
		c.dev = legacy.dev
		if n := legacy.dev.scenes.Load(); n > 0 {
			return errorf(InvalidOperation, "legacy device still owns %d scene(s)", n)
		}
		devices.Remove(legacy.h.h)
		legacy.dev = nil
		legacy.h = Device{}
		return nil
	})
}

// LegacyDevice returns the handle of the legacy device or the null handle.
func (t *Thread) LegacyDevice() Device {
	legacy.mu.Lock()
	defer legacy.mu.Unlock()
	return legacy.h
}

// NewSceneLegacy creates a scene on the legacy device.
func (t *Thread) NewSceneLegacy(flags SceneFlags, aflags AlgorithmFlags) Scene {
	return guarded(t, "NewSceneLegacy", Scene{}, func(c *apiCall) (Scene, error) {
		legacy.mu.Lock()
		h := legacy.h
		legacy.mu.Unlock()

		if h.IsNil() {
			return Scene{}, errorf(InvalidOperation, "legacy device not initialized")
		}
		return newScene(c, h, flags, aflags)
	})
}
