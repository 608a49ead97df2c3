package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/homesim/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override prefs path (optional)")
	storageMode := flag.String("storage", "", "storage mode: local or remote (overrides config)")
	importPath := flag.String("import", "", "import presets from a JSON file and exit")
	exportPath := flag.String("export", "", "export presets to a JSON file and exit")
	flag.Parse()

	if *importPath != "" && *exportPath != "" {
		fmt.Fprintln(os.Stderr, "homesim: -import and -export are mutually exclusive")
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Storage:    *storageMode,
		Import:     *importPath,
		Export:     *exportPath,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "homesim: %v\n", err)
		return 1
	}
	return 0
}
