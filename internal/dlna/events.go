package dlna

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/richstokes/zeroconfdlna/internal/config"
)

// handleSubscribe acknowledges GENA subscriptions without delivering any
// events. Clients poll GetSystemUpdateID anyway; a fresh SID per request
// keeps them satisfied.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("SID", "uuid:"+uuid.NewString())
	w.Header().Set("TIMEOUT", "Second-1800")
	w.Header().Set("Server", config.ServerAgent)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Server", config.ServerAgent)
	w.WriteHeader(http.StatusOK)
}
