package main

import (
	"os"

	"github.com/go-kit/kit/log"

	"github.com/Aussie-Nomad/MacForge-sub002/app"
)

func main() {
	logger := log.NewLogfmtLogger(os.Stderr)
	status, err := app.Main(logger)
	if err != nil {
		logger.Log("err", err)
	}
	os.Exit(status)
}
