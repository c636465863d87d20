// Package config holds the server's runtime settings. The surface is
// deliberately tiny: a media directory, a port, a name, and a verbosity
// switch, each with a sensible default so the server runs with no arguments
// at all.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Identity constants advertised over SSDP and in the device description.
const (
	ServerVersion     = "1.0.15"
	ServerDescription = "ZeroConfigDLNA Server"
	Manufacturer      = "richstokes"
	ServerAgent       = "ZeroConfigDLNA/" + ServerVersion + " DLNA/1.50 UPnP/1.0"
)

// Config is the resolved runtime configuration.
type Config struct {
	MediaDirectory string // absolute path to the directory being served
	Port           int    // first TCP port to try; auto-increments when busy
	Verbose        bool   // debug-level logging
	ServerName     string // friendly name shown by renderers

	ProbeCachePath string // sqlite duration cache; empty = in memory
}

// Load parses flags from args (not including the program name) and applies
// env overrides. The media directory is made absolute; a missing directory
// is an error so a typo fails fast instead of serving an empty library.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("zeroconf-dlna", flag.ContinueOnError)
	c := &Config{}

	cwd, _ := os.Getwd()
	fs.StringVar(&c.MediaDirectory, "directory", cwd, "directory to serve media files from")
	fs.StringVar(&c.MediaDirectory, "d", cwd, "directory to serve media files from (shorthand)")
	fs.IntVar(&c.Port, "port", 8200, "port to run the server on")
	fs.IntVar(&c.Port, "p", 8200, "port to run the server on (shorthand)")
	fs.BoolVar(&c.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&c.Verbose, "v", false, "enable verbose output (shorthand)")
	fs.StringVar(&c.ServerName, "server_name", DefaultServerName(), "DLNA server name")
	fs.StringVar(&c.ServerName, "n", DefaultServerName(), "DLNA server name (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(c.MediaDirectory)
	if err != nil {
		return nil, fmt.Errorf("resolve media directory: %w", err)
	}
	c.MediaDirectory = abs

	info, err := os.Stat(c.MediaDirectory)
	if err != nil {
		return nil, fmt.Errorf("media directory %q does not exist", c.MediaDirectory)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media directory %q is not a directory", c.MediaDirectory)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", c.Port)
	}

	c.ProbeCachePath = os.Getenv("DLNA_PROBE_CACHE")
	return c, nil
}

// DefaultServerName is ZeroConfigDLNA_<host> where host is the machine's
// hostname truncated at the first dot and capped at 16 characters. The
// DLNA_HOSTNAME env var replaces the whole name.
func DefaultServerName() string {
	if v := os.Getenv("DLNA_HOSTNAME"); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "server"
	}
	host = strings.SplitN(host, ".", 2)[0]
	if len(host) > 16 {
		host = host[:16]
	}
	return "ZeroConfigDLNA_" + host
}
