// Package dlna is the server core: the HTTP surface (description, SOAP
// control, media delivery, HTML browsing) and the SSDP responder that makes
// renderers find it.
package dlna

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/richstokes/zeroconfdlna/internal/catalog"
	"github.com/richstokes/zeroconfdlna/internal/config"
	"github.com/richstokes/zeroconfdlna/internal/log"
	"github.com/richstokes/zeroconfdlna/internal/mimetypes"
	"github.com/richstokes/zeroconfdlna/internal/probe"
)

// methodSubscribe / methodUnsubscribe are the UPnP eventing verbs; chi only
// routes methods it knows about.
const (
	methodSubscribe   = "SUBSCRIBE"
	methodUnsubscribe = "UNSUBSCRIBE"
)

func init() {
	chi.RegisterMethod(methodSubscribe)
	chi.RegisterMethod(methodUnsubscribe)
}

// portProbeLimit bounds how far past the configured port the bind probe
// walks before giving up.
const portProbeLimit = 100

// Server ties the catalog, MIME resolver, and duration prober to the HTTP
// and SSDP listeners. IP and Port are fixed at Run time.
type Server struct {
	cfg      *config.Config
	identity *catalog.Identity
	mimes    *mimetypes.Resolver
	prober   *probe.Prober
	metrics  *metrics

	IP   string
	Port int

	logger zerolog.Logger
}

// New wires up a server. The bound port is decided later by Run, which
// probes from cfg.Port upward.
func New(cfg *config.Config, identity *catalog.Identity, mimes *mimetypes.Resolver, prober *probe.Prober) *Server {
	return &Server{
		cfg:      cfg,
		identity: identity,
		mimes:    mimes,
		prober:   prober,
		metrics:  newMetrics(),
		IP:       discoverIP(),
		Port:     cfg.Port,
		logger:   log.WithComponent("http"),
	}
}

// BaseURL is the root URL renderers use to reach this server.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.IP, s.Port)
}

// Run binds the TCP listener, starts the HTTP server and the SSDP
// responder, and blocks until ctx is canceled or a component fails. On
// cancellation SSDP sends its byebye batch and the HTTP server drains with
// a 5 second bound.
func (s *Server) Run(ctx context.Context) error {
	ln, port, err := bindFirstFree(s.IP, s.Port)
	if err != nil {
		return err
	}
	s.Port = port
	s.logger.Info().Str("ip", s.IP).Int("port", s.Port).Str("name", s.cfg.ServerName).Msg("listening")

	srv := &http.Server{
		Handler:           s.router(),
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}

	ssdp := newSSDP(s.identity, s.BaseURL())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ssdp.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/description.xml", s.handleDescription)
	r.Get("/cd_scpd.xml", s.handleSCPD(contentDirectorySCPD))
	r.Get("/cm_scpd.xml", s.handleSCPD(connectionManagerSCPD))
	r.Get("/browse", s.handleBrowsePage)
	r.Get("/media/*", s.handleMedia)
	r.Head("/media/*", s.handleMedia)
	r.Post("/control", s.handleControl)
	r.Method(methodSubscribe, "/events", http.HandlerFunc(s.handleSubscribe))
	r.Method(methodUnsubscribe, "/events", http.HandlerFunc(s.handleUnsubscribe))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "File not found", http.StatusNotFound)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","media_files":%d,"uuid":%q,"now_playing":%q}`,
		s.MediaFileCount(), s.identity.UUID(), s.identity.NowPlaying())
}

// MediaFileCount walks the library counting supported files. It feeds the
// startup log line and the health endpoint.
func (s *Server) MediaFileCount() int {
	count := 0
	filepath.WalkDir(s.cfg.MediaDirectory, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && s.mimes.IsSupported(d.Name()) {
			count++
		}
		return nil
	})
	return count
}

// corsMiddleware answers OPTIONS preflight for any path and lets everything
// else through.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, SUBSCRIBE, UNSUBSCRIBE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, SOAPAction, CALLBACK, NT, TIMEOUT, SID")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// discoverIP finds the LAN-facing address by opening a UDP socket toward a
// public resolver and reading the chosen local endpoint. Nothing is sent.
func discoverIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// bindFirstFree tries (ip, port), walking the port upward while the bind
// fails, so a second instance on the same host comes up on the next port.
func bindFirstFree(ip string, port int) (net.Listener, int, error) {
	for p := port; p < port+portProbeLimit && p <= 65535; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(p)))
		if err == nil {
			return ln, p, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in range %d-%d", port, port+portProbeLimit-1)
}
