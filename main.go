package main

import (
	"os"

	"github.com/achilleasa/rtcore/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	configFlag := cli.StringFlag{
		Name:   "config, c",
		Usage:  "load settings from a YAML file",
		EnvVar: "RTCORE_CONFIG",
	}

	app := cli.NewApp()
	app.Name = "rtcore"
	app.Usage = "inspect and exercise the ray tracing kernel"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "probe",
			Usage:  "list cpu features and the packet widths this host can serve",
			Flags:  []cli.Flag{configFlag},
			Action: cmd.Probe,
		},
		{
			Name:  "selftest",
			Usage: "build a test scene with a team commit and sweep it with ray packets",
			Description: `
Build a triangle grid together with a rotated instance of it, commit the scene
using a team of goroutines and trace packets of the selected width against it.

Hit counts and the device statistics are logged when the sweep completes.`,
			Flags: []cli.Flag{
				configFlag,
				cli.IntFlag{
					Name:  "threads, t",
					Value: 4,
					Usage: "number of goroutines joining the commit",
				},
				cli.IntFlag{
					Name:  "width, w",
					Value: 4,
					Usage: "packet width (1, 4, 8 or 16)",
				},
				cli.IntFlag{
					Name:  "grid, g",
					Value: 32,
					Usage: "quads along each side of the test grid",
				},
			},
			Action: cmd.Selftest,
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
