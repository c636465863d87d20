package dlna

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/richstokes/zeroconfdlna/internal/config"
)

const (
	contentDirectoryService  = "urn:schemas-upnp-org:service:ContentDirectory:1"
	connectionManagerService = "urn:schemas-upnp-org:service:ConnectionManager:1"
)

// handleControl dispatches SOAP POSTs. The action is matched by substring
// on the SOAPAction header first, then on the body, which tolerates clients
// that omit or mangle the header.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "error reading request", http.StatusInternalServerError)
		return
	}
	action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
	data := string(body)

	has := func(name string) bool {
		return strings.Contains(action, name) || strings.Contains(data, name)
	}

	switch {
	case has("Browse"):
		s.handleBrowseAction(w, data)
	case has("GetProtocolInfo"):
		s.writeSOAP(w, soapResponse(connectionManagerService, "GetProtocolInfo",
			fmt.Sprintf("            <Source>%s</Source>\n            <Sink></Sink>\n", sourceProtocolInfo())))
	case has("GetCurrentConnectionIDs"):
		s.writeSOAP(w, soapResponse(connectionManagerService, "GetCurrentConnectionIDs",
			"            <ConnectionIDs>0</ConnectionIDs>\n"))
	case has("GetCurrentConnectionInfo"):
		s.writeSOAP(w, soapResponse(connectionManagerService, "GetCurrentConnectionInfo",
			"            <RcsID>-1</RcsID>\n"+
				"            <AVTransportID>-1</AVTransportID>\n"+
				"            <ProtocolInfo></ProtocolInfo>\n"+
				"            <PeerConnectionManager></PeerConnectionManager>\n"+
				"            <PeerConnectionID>-1</PeerConnectionID>\n"+
				"            <Direction>Output</Direction>\n"+
				"            <Status>OK</Status>\n"))
	case has("GetSearchCapabilities"):
		s.writeSOAP(w, soapResponse(contentDirectoryService, "GetSearchCapabilities",
			"            <SearchCaps>dc:title,dc:creator,upnp:class,upnp:genre,dc:date</SearchCaps>\n"))
	case has("GetSortCapabilities"):
		s.writeSOAP(w, soapResponse(contentDirectoryService, "GetSortCapabilities",
			"            <SortCaps>dc:title,dc:creator,dc:date,upnp:class</SortCaps>\n"))
	case has("GetSystemUpdateID"):
		w.Header().Set("Cache-Control", "max-age=30")
		s.writeSOAP(w, soapResponse(contentDirectoryService, "GetSystemUpdateID",
			fmt.Sprintf("            <Id>%d</Id>\n", s.identity.SystemUpdateID())))
	default:
		s.logger.Warn().Str("soap_action", action).Msg("unsupported SOAP action")
		s.metrics.soapFaults.Inc()
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, soapFault)
	}
}

func (s *Server) writeSOAP(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.Header().Set("Ext", "")
	w.Header().Set("Server", config.ServerAgent)
	io.WriteString(w, body)
}

// extractTag pulls the text of the first <name ...>text</name> element out
// of raw SOAP. The opening tag may carry attributes or namespace junk; the
// scan just looks for the next ">".
func extractTag(data, name string) (string, bool) {
	open := strings.Index(data, "<"+name)
	if open == -1 {
		return "", false
	}
	gt := strings.Index(data[open:], ">")
	if gt == -1 {
		return "", false
	}
	rest := data[open+gt+1:]
	closeIdx := strings.Index(rest, "</"+name+">")
	if closeIdx == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:closeIdx]), true
}

func extractInt(data, name string, fallback int) int {
	v, ok := extractTag(data, name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
