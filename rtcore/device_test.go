package rtcore

import (
	"testing"

	"github.com/achilleasa/rtcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeviceConfig(t *testing.T) {
	specs := []struct {
		cfg string
		exp Code
	}{
		{"", NoError},
		{"threads=2, verbose=0", NoError},
		{"stats=1,tessellation_cache_size=4096", NoError},
		{"ISA=generic", NoError},
		{"threads", InvalidArgument},
		{"threads=-1", InvalidArgument},
		{"verbose=loud", InvalidArgument},
		{"isa=quantum", InvalidArgument},
		{"bogus=1", InvalidArgument},
	}

	th := NewThread()
	for specIndex, spec := range specs {
		dev := th.NewDevice(spec.cfg)
		if got := th.GetError(); got != spec.exp {
			t.Fatalf("[spec %d] config %q: expected %s; got %s", specIndex, spec.cfg, spec.exp, got)
		}
		if spec.exp != NoError {
			assert.True(t, dev.IsNil(), "[spec %d] failed call returned a handle", specIndex)
			continue
		}
		th.DeleteDevice(dev)
		require.Equal(t, NoError, th.GetError())
	}
}

func TestDeleteDevice(t *testing.T) {
	th := NewThread()
	dev := th.NewDevice("")
	s := th.NewScene(dev, SceneStatic, 0)
	require.Equal(t, NoError, th.GetError())

	th.DeleteDevice(dev)
	assert.Equal(t, InvalidOperation, th.GetError())

	th.DeleteScene(s)
	th.DeleteDevice(dev)
	require.Equal(t, NoError, th.GetError())

	// Stale handles are rejected.
	th.DeleteDevice(dev)
	assert.Equal(t, InvalidArgument, th.GetError())
	th.DeleteScene(s)
	assert.Equal(t, InvalidArgument, th.GetError())
	assert.Equal(t, Width(0), th.MaxPacketWidth(dev))
	assert.Equal(t, InvalidArgument, th.GetError())
}

func TestSetParameter(t *testing.T) {
	h := newTestDevice(t, "")
	th := NewThread()

	th.SetParameter(h, SoftwareCacheSize, 4096)
	require.Equal(t, NoError, th.GetError())
	dev, err := lookupDevice(h)
	require.NoError(t, err)
	assert.Equal(t, int64(minCacheSize), dev.cacheSize)

	th.SetParameter(h, SoftwareCacheSize, 64<<20)
	assert.Equal(t, int64(64<<20), dev.cacheSize)

	th.SetParameter(h, Parameter(42), 1)
	assert.Equal(t, InvalidArgument, th.GetError())
}

func TestMemoryMonitor(t *testing.T) {
	dev := newTestDevice(t, "")
	s := newTestScene(t, dev, SceneStatic, 0)
	th := NewThread()

	allow := true
	var (
		grown    int64
		released int64
	)
	th.SetMemoryMonitorFunction(dev, func(bytes int64, post bool) bool {
		if bytes > 0 {
			assert.False(t, post)
			if allow {
				grown += bytes
			}
		} else {
			assert.True(t, post)
			released -= bytes
		}
		return allow
	})

	id := th.NewTriangleMesh(s, GeometryStatic, 4, 12, 2)
	require.Equal(t, NoError, th.GetError())
	assert.Positive(t, grown)

	allow = false
	assert.Equal(t, InvalidGeometryID, th.NewTriangleMesh(s, GeometryStatic, 1, 3, 1))
	assert.Equal(t, OutOfMemory, th.GetError())

	// A refused release is still a release.
	th.DeleteGeometry(s, id)
	require.Equal(t, NoError, th.GetError())
	assert.Equal(t, grown, released)

	th.SetMemoryMonitorFunction(dev, nil)
	addTriangle(t, th, s, types.Vec3{})
}

func TestLegacyDevice(t *testing.T) {
	th := NewThread()

	th.Exit()
	require.Equal(t, InvalidOperation, th.GetError())
	assert.True(t, th.NewSceneLegacy(SceneStatic, 0).IsNil())
	assert.Equal(t, InvalidOperation, th.GetError())

	th.Init("verbose=0")
	require.Equal(t, NoError, th.GetError())
	t.Cleanup(func() { NewThread().Exit() })

	th.Init("")
	assert.Equal(t, InvalidOperation, th.GetError())

	legacyHandle := th.LegacyDevice()
	require.False(t, legacyHandle.IsNil())
	th.DeleteDevice(legacyHandle)
	assert.Equal(t, InvalidOperation, th.GetError())

	// Calls that fail before resolving a device report to the legacy device.
	var seen []Code
	th.SetErrorFunction(legacyHandle, func(code Code, _ string) { seen = append(seen, code) })
	th.DeleteScene(Scene{})
	assert.Equal(t, []Code{InvalidArgument}, seen)
	assert.Equal(t, InvalidArgument, th.GetError())

	s := th.NewSceneLegacy(SceneStatic, 0)
	require.Equal(t, NoError, th.GetError())
	addTriangle(t, th, s, types.Vec3{})
	th.Commit(s)
	r := downRay(0.5, 0.25)
	th.Intersect1(s, r)
	assert.True(t, r.Hit())

	th.Exit()
	assert.Equal(t, InvalidOperation, th.GetError())

	th.DeleteScene(s)
	th.Exit()
	require.Equal(t, NoError, th.GetError())
	assert.True(t, th.LegacyDevice().IsNil())
}
