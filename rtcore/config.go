package rtcore

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/achilleasa/rtcore/engine"
	"golang.org/x/sys/cpu"
)

// Device configuration parsed from a "key=value,key=value" string.
type config struct {
	threads int
	verbose int
	isa     string
	stats   bool

	// Packet width of the selected isa.
	width engine.Width

	tessellationCacheSize int64
}

// The minimum software cache size accepted by SetParameter.
const minCacheSize = 1 << 20

// Packet widths served by each instruction set, in ascending order.
var isaWidths = []struct {
	name  string
	width engine.Width
}{
	{"generic", engine.W1},
	{"sse2", engine.W4},
	{"sse4.2", engine.W4},
	{"neon", engine.W4},
	{"avx", engine.W8},
	{"avx2", engine.W8},
	{"avx512", engine.W16},
}

func isaWidth(name string) (engine.Width, bool) {
	for _, isa := range isaWidths {
		if isa.name == name {
			return isa.width, true
		}
	}
	return 0, false
}

// DetectISA returns the best instruction set of the host CPU and the widest
// packet it can serve.
func DetectISA() (string, engine.Width) {
	switch {
	case cpu.X86.HasAVX512F:
		return "avx512", engine.W16
	case cpu.X86.HasAVX2:
		return "avx2", engine.W8
	case cpu.X86.HasAVX:
		return "avx", engine.W8
	case cpu.X86.HasSSE42:
		return "sse4.2", engine.W4
	case cpu.X86.HasSSE2:
		return "sse2", engine.W4
	case cpu.ARM64.HasASIMD:
		return "neon", engine.W4
	}
	return "generic", engine.W1
}

// Returns false on x86 hosts lacking the baseline instruction set.
func cpuSupported() bool {
	switch runtime.GOARCH {
	case "386", "amd64":
		return cpu.X86.HasSSE2
	}
	return true
}

func parseConfig(cfg string) (config, error) {
	isa, width := DetectISA()
	out := config{
		threads: runtime.GOMAXPROCS(0),
		isa:     isa,
		width:   width,
	}

	for _, field := range strings.Split(cfg, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return config{}, errorf(InvalidArgument, "malformed configuration entry %q", field)
		}
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)

		var err error
		switch key {
		case "threads":
			out.threads, err = parseNonNegative(key, value)
		case "verbose":
			out.verbose, err = parseNonNegative(key, value)
		case "stats":
			var n int
			n, err = parseNonNegative(key, value)
			out.stats = n != 0
		case "tessellation_cache_size":
			var n int
			n, err = parseNonNegative(key, value)
			out.tessellationCacheSize = int64(n)
		case "isa":
			requested, known := isaWidth(strings.ToLower(value))
			if !known {
				return config{}, errorf(InvalidArgument, "unknown isa %q", value)
			}
			// Never exceed what the host supports.
			if requested < out.width {
				out.isa, out.width = strings.ToLower(value), requested
			}
		default:
			return config{}, errorf(InvalidArgument, "unknown configuration key %q", key)
		}
		if err != nil {
			return config{}, err
		}
	}
	return out, nil
}

func parseNonNegative(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errorf(InvalidArgument, "invalid value %q for %s", value, key)
	}
	return n, nil
}
