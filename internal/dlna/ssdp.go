package dlna

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/richstokes/zeroconfdlna/internal/catalog"
	"github.com/richstokes/zeroconfdlna/internal/config"
	"github.com/richstokes/zeroconfdlna/internal/log"
)

const (
	multicastAddr = "239.255.255.250:1900"
	ssdpPort      = ":1900"

	// Alive announcements overlap the 60 s steady-state cadence.
	notifyMaxAge = 300
	// M-SEARCH replies may be cached much longer; the periodic NOTIFYs
	// keep the entry fresh anyway.
	searchMaxAge = 1800

	// Startup fast-announce: the first fastAnnounceCount batches go out
	// every 3 s so renderers notice a fresh server quickly.
	fastAnnounceCount    = 30
	fastAnnounceInterval = 3 * time.Second
	steadyInterval       = 60 * time.Second

	notifySpacing = 100 * time.Millisecond
)

// ssdpResponder answers M-SEARCH queries and advertises the server with
// periodic NOTIFY batches.
type ssdpResponder struct {
	identity *catalog.Identity
	location string

	notifyCount atomic.Int64
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

func newSSDP(identity *catalog.Identity, baseURL string) *ssdpResponder {
	return &ssdpResponder{
		identity: identity,
		location: baseURL + "/description.xml",
		// A chatty client (or a reflection attack) should not turn the
		// server into a unicast firehose.
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		logger:  log.WithComponent("ssdp"),
	}
}

// Run binds UDP 1900, joins the multicast group on every eligible
// interface, and services M-SEARCH and the announce cadence until ctx is
// done. The byebye batch goes out before returning.
func (s *ssdpResponder) Run(ctx context.Context) error {
	lc := net.ListenConfig{Control: reusePort}
	pc, err := lc.ListenPacket(ctx, "udp4", ssdpPort)
	if err != nil {
		return fmt.Errorf("ssdp listen: %w", err)
	}
	defer pc.Close()

	group := net.IPv4(239, 255, 255, 250)
	p := ipv4.NewPacketConn(pc)
	joined := 0
	ifaces, _ := net.Interfaces()
	for i := range ifaces {
		ifc := &ifaces[i]
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := p.JoinGroup(ifc, &net.UDPAddr{IP: group}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		// Fall back to the default interface choice.
		if err := p.JoinGroup(nil, &net.UDPAddr{IP: group}); err != nil {
			return fmt.Errorf("join multicast group: %w", err)
		}
	}
	s.logger.Info().Int("interfaces", joined).Msg("ssdp responder up")

	go s.announceLoop(ctx)

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			s.sendByebye()
			return nil
		default:
		}

		// Short read deadline so cancellation is observed promptly.
		pc.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				s.sendByebye()
				return nil
			}
			s.logger.Debug().Err(err).Msg("ssdp read error")
			continue
		}
		s.handleDatagram(pc, string(buf[:n]), addr)
	}
}

func (s *ssdpResponder) handleDatagram(pc net.PacketConn, msg string, addr net.Addr) {
	lines := strings.Split(strings.TrimSpace(msg), "\r\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "M-SEARCH") {
		return
	}
	headers := map[string]string{}
	for _, line := range lines[1:] {
		if k, v, ok := strings.Cut(line, ":"); ok {
			headers[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	st := strings.ToLower(headers["ST"])
	uuid := s.identity.UUID()

	match := st == "upnp:rootdevice" ||
		st == "urn:schemas-upnp-org:device:mediaserver:1" ||
		strings.HasPrefix(st, "urn:schemas-upnp-org:service:") ||
		st == "ssdp:all" ||
		st == strings.ToLower("uuid:"+uuid)
	if !match {
		return
	}
	if !s.limiter.Allow() {
		return
	}
	s.sendSearchResponse(pc, addr, st, uuid)
}

// sendSearchResponse unicasts the reply. ST and USN echo the searched
// target; ssdp:all and unrecognized targets get the root device.
func (s *ssdpResponder) sendSearchResponse(pc net.PacketConn, addr net.Addr, st, uuid string) {
	var replyST, usn string
	switch {
	case st == "upnp:rootdevice":
		replyST = "upnp:rootdevice"
		usn = "uuid:" + uuid + "::upnp:rootdevice"
	case strings.Contains(st, "mediaserver"):
		replyST = "urn:schemas-upnp-org:device:MediaServer:1"
		usn = "uuid:" + uuid + "::" + replyST
	case strings.Contains(st, "contentdirectory"):
		replyST = "urn:schemas-upnp-org:service:ContentDirectory:1"
		usn = "uuid:" + uuid + "::" + replyST
	case strings.Contains(st, "connectionmanager"):
		replyST = "urn:schemas-upnp-org:service:ConnectionManager:1"
		usn = "uuid:" + uuid + "::" + replyST
	case strings.HasPrefix(st, "uuid:"):
		replyST = "uuid:" + uuid
		usn = replyST
	default:
		replyST = "upnp:rootdevice"
		usn = "uuid:" + uuid + "::upnp:rootdevice"
	}

	resp := "HTTP/1.1 200 OK\r\n" +
		fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", searchMaxAge) +
		"DATE: " + time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT") + "\r\n" +
		"EXT:\r\n" +
		"LOCATION: " + s.location + "\r\n" +
		"SERVER: " + config.ServerAgent + "\r\n" +
		"ST: " + replyST + "\r\n" +
		"USN: " + usn + "\r\n" +
		"\r\n"

	if _, err := pc.WriteTo([]byte(resp), addr); err != nil {
		s.logger.Debug().Err(err).Str("to", addr.String()).Msg("search response failed")
		return
	}
	s.logger.Debug().Str("to", addr.String()).Str("st", replyST).Msg("answered M-SEARCH")
}

// notifyTargets lists the NT values advertised in alive batches, in order.
func (s *ssdpResponder) notifyTargets() []string {
	uuid := s.identity.UUID()
	return []string{
		"upnp:rootdevice",
		"uuid:" + uuid,
		"urn:schemas-upnp-org:device:MediaServer:1",
		"urn:schemas-upnp-org:service:ContentDirectory:1",
		"urn:schemas-upnp-org:service:ConnectionManager:1",
	}
}

func usnFor(nt, uuid string) string {
	if nt == "uuid:"+uuid {
		return nt
	}
	return "uuid:" + uuid + "::" + nt
}

func (s *ssdpResponder) announceLoop(ctx context.Context) {
	s.sendAlive()
	for {
		interval := steadyInterval
		if s.notifyCount.Load() < fastAnnounceCount {
			interval = fastAnnounceInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			s.sendAlive()
		}
	}
}

// sendAlive multicasts the five-message alive batch with spacing so a burst
// is not dropped wholesale by cheap switches.
func (s *ssdpResponder) sendAlive() {
	conn, err := net.Dial("udp4", multicastAddr)
	if err != nil {
		s.logger.Debug().Err(err).Msg("notify dial failed")
		return
	}
	defer conn.Close()

	uuid := s.identity.UUID()
	for _, nt := range s.notifyTargets() {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + multicastAddr + "\r\n" +
			fmt.Sprintf("CACHE-CONTROL: max-age=%d\r\n", notifyMaxAge) +
			"LOCATION: " + s.location + "\r\n" +
			"NT: " + nt + "\r\n" +
			"NTS: ssdp:alive\r\n" +
			"USN: " + usnFor(nt, uuid) + "\r\n" +
			"SERVER: " + config.ServerAgent + "\r\n" +
			"\r\n"
		conn.Write([]byte(msg))
		time.Sleep(notifySpacing)
	}
	n := s.notifyCount.Add(1)
	s.logger.Debug().Int64("batch", n).Msg("sent NOTIFY alive batch")
}

// sendByebye announces shutdown for the root device, the device UUID, and
// the MediaServer type.
func (s *ssdpResponder) sendByebye() {
	conn, err := net.Dial("udp4", multicastAddr)
	if err != nil {
		return
	}
	defer conn.Close()

	uuid := s.identity.UUID()
	targets := []string{
		"upnp:rootdevice",
		"uuid:" + uuid,
		"urn:schemas-upnp-org:device:MediaServer:1",
	}
	for _, nt := range targets {
		msg := "NOTIFY * HTTP/1.1\r\n" +
			"HOST: " + multicastAddr + "\r\n" +
			"NT: " + nt + "\r\n" +
			"NTS: ssdp:byebye\r\n" +
			"USN: " + usnFor(nt, uuid) + "\r\n" +
			"\r\n"
		conn.Write([]byte(msg))
		time.Sleep(notifySpacing)
	}
	s.logger.Info().Msg("sent NOTIFY byebye batch")
}

// reusePort sets SO_REUSEADDR and, best effort, SO_REUSEPORT so the server
// can share UDP 1900 with other UPnP daemons on the host.
func reusePort(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
