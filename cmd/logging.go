package cmd

import (
	"github.com/achilleasa/rtcore/log"
	"github.com/urfave/cli"
)

var logger = log.New("rtcore")

func setupLogging(ctx *cli.Context, level log.Level) {
	log.SetLevel(level)

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
