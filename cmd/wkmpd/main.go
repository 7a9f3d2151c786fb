// Command wkmpd is WKMP's daemon entrypoint: playback engine and
// ingest pipeline, driven by a cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/wkmp/core/cmd"
	"github.com/wkmp/core/internal/config"
	"github.com/wkmp/core/internal/wklog"
)

func main() {
	wklog.Init()

	settings, err := config.Load(os.Getenv("WKMP_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
