package gohelix

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Logger is the package-wide structured logger. Components tag their
// entries with a "component" field the way cmd/trace already tags callback
// log lines, so a host process can route/sample gohelix's logs by
// subsystem.
var Logger = log.New()

func init() {
	Logger.SetOutput(os.Stdout)
	Logger.SetLevel(log.InfoLevel)
}

func componentLogger(component string) *log.Entry {
	return Logger.WithField("component", component)
}
