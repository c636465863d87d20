package dlna

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters are package level so building more than one Server (tests do)
// never double-registers with the default registry.
type metrics struct {
	browseRequests prometheus.Counter
	mediaRequests  prometheus.Counter
	soapFaults     prometheus.Counter
}

var defaultMetrics = &metrics{
	browseRequests: promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlna_browse_requests_total",
		Help: "ContentDirectory Browse actions handled.",
	}),
	mediaRequests: promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlna_media_requests_total",
		Help: "Media file requests served.",
	}),
	soapFaults: promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlna_soap_faults_total",
		Help: "SOAP requests rejected with Invalid Action.",
	}),
}

func newMetrics() *metrics {
	return defaultMetrics
}
