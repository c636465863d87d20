package dlna

import (
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/richstokes/zeroconfdlna/internal/catalog"
	"github.com/richstokes/zeroconfdlna/internal/log"
)

// capturePacketConn records WriteTo payloads; everything else is inert.
type capturePacketConn struct {
	sent [][]byte
	to   []net.Addr
}

func (c *capturePacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	c.sent = append(c.sent, buf)
	c.to = append(c.to, addr)
	return len(p), nil
}

func (c *capturePacketConn) ReadFrom(p []byte) (int, net.Addr, error) { return 0, nil, nil }
func (c *capturePacketConn) Close() error                             { return nil }
func (c *capturePacketConn) LocalAddr() net.Addr                      { return &net.UDPAddr{} }
func (c *capturePacketConn) SetDeadline(t time.Time) error            { return nil }
func (c *capturePacketConn) SetReadDeadline(t time.Time) error        { return nil }
func (c *capturePacketConn) SetWriteDeadline(t time.Time) error       { return nil }

func newTestResponder(t *testing.T) *ssdpResponder {
	t.Helper()
	return &ssdpResponder{
		identity: catalog.NewIdentity(t.TempDir()),
		location: "http://192.168.1.10:8200/description.xml",
		limiter:  rate.NewLimiter(rate.Limit(50), 100),
		logger:   log.WithComponent("ssdp"),
	}
}

func msearch(st string) string {
	return "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: " + st + "\r\n" +
		"\r\n"
}

func TestHandleDatagramAnswersMatchingSearch(t *testing.T) {
	s := newTestResponder(t)
	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 54321}

	tests := []struct {
		name    string
		st      string
		replyST string
	}{
		{"root device", "upnp:rootdevice", "ST: upnp:rootdevice"},
		{"ssdp:all", "ssdp:all", "ST: upnp:rootdevice"},
		{"media server", "urn:schemas-upnp-org:device:MediaServer:1", "ST: urn:schemas-upnp-org:device:MediaServer:1"},
		{"content directory", "urn:schemas-upnp-org:service:ContentDirectory:1", "ST: urn:schemas-upnp-org:service:ContentDirectory:1"},
		{"connection manager", "urn:schemas-upnp-org:service:ConnectionManager:1", "ST: urn:schemas-upnp-org:service:ConnectionManager:1"},
		{"device uuid", "uuid:" + s.identity.UUID(), "ST: uuid:" + s.identity.UUID()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := &capturePacketConn{}
			s.handleDatagram(pc, msearch(tt.st), from)
			if len(pc.sent) != 1 {
				t.Fatalf("sent %d responses, want 1", len(pc.sent))
			}
			resp := string(pc.sent[0])
			if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
				t.Errorf("response start = %q", resp[:20])
			}
			for _, want := range []string{
				tt.replyST + "\r\n",
				"CACHE-CONTROL: max-age=1800\r\n",
				"LOCATION: http://192.168.1.10:8200/description.xml\r\n",
				"USN: uuid:" + s.identity.UUID(),
				"EXT:\r\n",
			} {
				if !strings.Contains(resp, want) {
					t.Errorf("response missing %q:\n%s", want, resp)
				}
			}
			if pc.to[0] != from {
				t.Error("response not addressed to the searcher")
			}
		})
	}
}

func TestHandleDatagramIgnoresNonMatches(t *testing.T) {
	s := newTestResponder(t)
	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 54321}

	tests := []struct {
		name string
		msg  string
	}{
		{"other device type", msearch("urn:schemas-upnp-org:device:InternetGatewayDevice:1")},
		{"foreign uuid", msearch("uuid:00000000-0000-0000-0000-000000000000")},
		{"notify", "NOTIFY * HTTP/1.1\r\nNTS: ssdp:alive\r\n\r\n"},
		{"garbage", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := &capturePacketConn{}
			s.handleDatagram(pc, tt.msg, from)
			if len(pc.sent) != 0 {
				t.Errorf("sent %d responses, want none:\n%s", len(pc.sent), pc.sent[0])
			}
		})
	}
}

func TestHandleDatagramRateLimited(t *testing.T) {
	s := newTestResponder(t)
	s.limiter = rate.NewLimiter(rate.Limit(1), 2)
	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 54321}

	pc := &capturePacketConn{}
	for i := 0; i < 10; i++ {
		s.handleDatagram(pc, msearch("ssdp:all"), from)
	}
	if len(pc.sent) > 3 {
		t.Errorf("rate limiter let %d of 10 bursts through", len(pc.sent))
	}
}

func TestNotifyTargets(t *testing.T) {
	s := newTestResponder(t)
	targets := s.notifyTargets()
	want := []string{
		"upnp:rootdevice",
		"uuid:" + s.identity.UUID(),
		"urn:schemas-upnp-org:device:MediaServer:1",
		"urn:schemas-upnp-org:service:ContentDirectory:1",
		"urn:schemas-upnp-org:service:ConnectionManager:1",
	}
	if len(targets) != len(want) {
		t.Fatalf("got %d targets, want %d", len(targets), len(want))
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("targets[%d] = %q, want %q", i, targets[i], want[i])
		}
	}
}

func TestUsnFor(t *testing.T) {
	const id = "65da942e-1984-3309-abcd-ef0123456789"
	if got := usnFor("uuid:"+id, id); got != "uuid:"+id {
		t.Errorf("uuid NT should be bare: %q", got)
	}
	if got := usnFor("upnp:rootdevice", id); got != "uuid:"+id+"::upnp:rootdevice" {
		t.Errorf("usnFor(rootdevice) = %q", got)
	}
}
