package cmd

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/achilleasa/rtcore/fpenv"
	"github.com/achilleasa/rtcore/rtcore"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/sys/cpu"
)

type cpuFeature struct {
	name    string
	present bool
}

func cpuFeatures() []cpuFeature {
	switch runtime.GOARCH {
	case "386", "amd64":
		return []cpuFeature{
			{"sse2", cpu.X86.HasSSE2},
			{"sse4.1", cpu.X86.HasSSE41},
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		}
	case "arm64":
		return []cpuFeature{
			{"asimd", cpu.ARM64.HasASIMD},
			{"fp", cpu.ARM64.HasFP},
			{"sve", cpu.ARM64.HasSVE},
		}
	}
	return nil
}

// Probe lists the detected cpu features and the packet widths a device
// configured with the current settings can serve.
func Probe(ctx *cli.Context) error {
	cfg, err := LoadConfig(ctx.String("config"))
	if err != nil {
		logger.Error(err)
		return err
	}
	setupLogging(ctx, cfg.Level())

	th := rtcore.NewThread()
	dev := th.NewDevice(cfg.Device.DeviceString())
	if err = th.Err(); err != nil {
		logger.Error(err)
		return err
	}
	defer th.DeleteDevice(dev)

	isa, width := rtcore.DetectISA()
	maxWidth := th.MaxPacketWidth(dev)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Architecture", runtime.GOARCH})
	for _, feature := range cpuFeatures() {
		table.Append([]string{"  " + feature.name, fmt.Sprintf("%t", feature.present)})
	}
	table.Append([]string{"Detected ISA", fmt.Sprintf("%s (%d-wide)", isa, width)})
	table.Append([]string{"Device config", fmt.Sprintf("%q", cfg.Device.DeviceString())})
	for _, w := range []rtcore.Width{rtcore.W1, rtcore.W4, rtcore.W8, rtcore.W16} {
		table.Append([]string{fmt.Sprintf("  packets of %d", w), fmt.Sprintf("%t", w <= maxWidth)})
	}
	table.Append([]string{"Hardware FTZ/DAZ", fmt.Sprintf("%t", fpenv.Hardware())})
	table.Render()

	logger.Noticef("cpu capabilities\n%s", buf.String())
	return nil
}
