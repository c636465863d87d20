package dlna

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSubscribe(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(methodSubscribe, "/events", nil)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("CALLBACK", "<http://10.0.0.5:4004/>")
	rec := doRequest(t, srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	sid := rec.Header().Get("SID")
	if !strings.HasPrefix(sid, "uuid:") || len(sid) <= len("uuid:") {
		t.Errorf("SID = %q, want uuid:<id>", sid)
	}
	if got := rec.Header().Get("TIMEOUT"); got != "Second-1800" {
		t.Errorf("TIMEOUT = %q, want Second-1800", got)
	}

	// Each subscription gets its own SID.
	rec2 := doRequest(t, srv, httptest.NewRequest(methodSubscribe, "/events", nil))
	if rec2.Header().Get("SID") == sid {
		t.Error("two subscriptions returned the same SID")
	}
}

func TestUnsubscribe(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(methodUnsubscribe, "/events", nil)
	req.Header.Set("SID", "uuid:whatever")
	rec := doRequest(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Server") == "" {
		t.Error("missing Server header")
	}
}
