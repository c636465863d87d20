// Command zeroconf-dlna serves a directory of media files to DLNA/UPnP
// renderers with no configuration: point it at a directory and every TV,
// console, and media player on the LAN can browse and stream it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richstokes/zeroconfdlna/internal/catalog"
	"github.com/richstokes/zeroconfdlna/internal/config"
	"github.com/richstokes/zeroconfdlna/internal/dlna"
	"github.com/richstokes/zeroconfdlna/internal/log"
	"github.com/richstokes/zeroconfdlna/internal/mimetypes"
	"github.com/richstokes/zeroconfdlna/internal/probe"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "zeroconf-dlna: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	log.Configure(log.Config{Level: level, Service: "zeroconf-dlna"})
	logger := log.WithComponent("main")

	logger.Info().
		Str("name", cfg.ServerName).
		Str("version", config.ServerVersion).
		Str("directory", cfg.MediaDirectory).
		Msg("starting")

	mimes := mimetypes.Default()
	identity := catalog.NewIdentity(cfg.MediaDirectory)
	prober, err := probe.New(cfg.ProbeCachePath)
	if err != nil {
		return err
	}
	defer prober.Close()

	srv := dlna.New(cfg, identity, mimes, prober)
	logger.Info().Int("media_files", srv.MediaFileCount()).Msg("scanned media directory")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("url", srv.BaseURL()).Msg("browse the library at /browse")
	return srv.Run(ctx)
}
