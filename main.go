package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tphakala/plantdoc/cmd"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/telemetry"
)

// Injected with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

const telemetryShutdownTimeout = 2 * time.Second

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	info := buildinfo.NewContext(version, buildDate)
	settings := &conf.Settings{}

	defer telemetry.Shutdown(telemetryShutdownTimeout)

	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
