package dlna

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeviceDescription(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/description.xml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"urn:schemas-upnp-org:device:MediaServer:1",
		"<friendlyName>TestServer</friendlyName>",
		"<UDN>uuid:" + srv.identity.UUID() + "</UDN>",
		"urn:schemas-upnp-org:service:ContentDirectory:1",
		"urn:schemas-upnp-org:service:ConnectionManager:1",
		"DMS-1.50",
		"/cd_scpd.xml",
		"/cm_scpd.xml",
		"/control",
		"/events",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("description missing %q", want)
		}
	}
}

func TestSCPDEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("content directory", func(t *testing.T) {
		rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/cd_scpd.xml", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{
			"<name>Browse</name>",
			"<name>GetSystemUpdateID</name>",
			"<name>GetSearchCapabilities</name>",
			"<name>GetSortCapabilities</name>",
			"SystemUpdateID",
			"BrowseDirectChildren",
			"BrowseMetadata",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("ContentDirectory SCPD missing %q", want)
			}
		}
	})

	t.Run("connection manager", func(t *testing.T) {
		rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/cm_scpd.xml", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{
			"<name>GetProtocolInfo</name>",
			"<name>GetCurrentConnectionIDs</name>",
			"<name>GetCurrentConnectionInfo</name>",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("ConnectionManager SCPD missing %q", want)
			}
		}
	})
}
