// Command tierscan classifies a folder of images into super_safe/safe/nsfw
// tiers and writes a JSON batch report. See internal/cliapp for the flag
// surface and internal/driver for the classification pipeline.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ST2Projects/tierscan/internal/cliapp"
)

var version = "dev"

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	app := cliapp.New(version)
	if err := app.Run(os.Args); err != nil {
		log.Errorf("tierscan failed: %v", err)
		os.Exit(1)
	}
}
