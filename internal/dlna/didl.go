package dlna

import (
	"fmt"
	"html"
	"strings"
)

// DLNA.ORG_FLAGS values. The first marks streamable A/V content, the second
// interactive (image) content.
const (
	streamFlags = "01700000000000000000000000000000"
	imageFlags  = "00D00000000000000000000000000000"
)

// profile describes how a MIME type is advertised in DIDL-Lite res elements
// and in ContentFeatures headers. PN is empty for formats without a
// registered DLNA profile name; those get only the generic OP/FLAGS string.
type profile struct {
	PN         string
	Resolution string
	Bitrate    int
}

var profiles = map[string]profile{
	"video/mp4":        {PN: "AVC_MP4_MP_SD_AAC_MULT5", Resolution: "1280x720", Bitrate: 4_000_000},
	"video/x-msvideo":  {PN: "AVI", Resolution: "720x576", Bitrate: 1_500_000},
	"video/x-matroska": {PN: "MATROSKA", Resolution: "1920x1080", Bitrate: 8_000_000},
	"video/quicktime":  {Resolution: "1280x720", Bitrate: 4_000_000},
	"video/x-ms-wmv":   {Resolution: "1024x768", Bitrate: 2_000_000},
	"video/x-flv":      {Resolution: "640x480", Bitrate: 1_000_000},
	"video/webm":       {Resolution: "1280x720", Bitrate: 3_000_000},
	"video/x-m4v":      {Resolution: "1280x720", Bitrate: 4_000_000},
	"video/3gpp":       {Resolution: "320x240", Bitrate: 500_000},

	"audio/mpeg":     {PN: "MP3", Bitrate: 320_000},
	"audio/wav":      {PN: "LPCM", Bitrate: 1_411_200},
	"audio/mp4":      {PN: "AAC_ISO_320", Bitrate: 320_000},
	"audio/x-m4a":    {PN: "AAC_ISO_320", Bitrate: 320_000},
	"audio/flac":     {Bitrate: 1_000_000},
	"audio/ogg":      {Bitrate: 320_000},
	"audio/x-ms-wma": {Bitrate: 256_000},
	"audio/aiff":     {Bitrate: 1_411_200},

	"image/jpeg": {PN: "JPEG_LRG", Resolution: "1920x1080"},
	"image/png":  {PN: "PNG_LRG", Resolution: "1920x1080"},
	"image/gif":  {Resolution: "800x600"},
	"image/bmp":  {Resolution: "1024x768"},
	"image/tiff": {Resolution: "2048x1536"},
	"image/webp": {Resolution: "1920x1080"},
}

func flagsFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return imageFlags
	}
	return streamFlags
}

// dlnaProfile builds the fourth protocolInfo field: an optional PN followed
// by the OP and FLAGS tokens.
func dlnaProfile(mimeType string) string {
	base := "DLNA.ORG_OP=01;DLNA.ORG_FLAGS=" + flagsFor(mimeType)
	if p, ok := profiles[mimeType]; ok && p.PN != "" {
		return "DLNA.ORG_PN=" + p.PN + ";" + base
	}
	return base
}

// contentFeatures is the ContentFeatures.DLNA.ORG header value for range
// responses. It is the DIDL profile plus DLNA.ORG_CI=0 (the content is not
// a converted copy).
func contentFeatures(mimeType string) string {
	base := "DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=" + flagsFor(mimeType)
	if p, ok := profiles[mimeType]; ok && p.PN != "" {
		return "DLNA.ORG_PN=" + p.PN + ";" + base
	}
	return base
}

func protocolInfo(mimeType string) string {
	return "http-get:*:" + mimeType + ":" + dlnaProfile(mimeType)
}

// sourceProtocolInfo is the comma-joined Source set for GetProtocolInfo,
// covering every MIME type the server will hand out.
func sourceProtocolInfo() string {
	mimes := []string{
		"video/mp4", "video/x-msvideo", "video/x-matroska", "video/quicktime",
		"video/x-ms-wmv", "video/x-flv", "video/webm", "video/x-m4v", "video/3gpp",
		"audio/mpeg", "audio/wav", "audio/mp4", "audio/x-m4a", "audio/flac",
		"audio/ogg", "audio/x-ms-wma", "audio/aiff",
		"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp",
	}
	entries := make([]string, len(mimes))
	for i, m := range mimes {
		entries[i] = protocolInfo(m)
	}
	return strings.Join(entries, ",")
}

// mediaItem is the transient per-Browse view of one file.
type mediaItem struct {
	ID       string
	ParentID string
	Name     string
	RelPath  string
	AbsPath  string
	Size     int64
	MIME     string
}

// resAttributes renders the attribute string of the res element: always
// size, plus duration for A/V and resolution/bitrate where the profile
// table has them.
func resAttributes(it mediaItem, duration string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "size=%q", fmt.Sprint(it.Size))
	if duration != "" {
		fmt.Fprintf(&b, " duration=%q", duration)
	}
	if p, ok := profiles[it.MIME]; ok {
		if p.Resolution != "" {
			fmt.Fprintf(&b, " resolution=%q", p.Resolution)
		}
		if p.Bitrate > 0 && !strings.HasPrefix(it.MIME, "image/") {
			fmt.Fprintf(&b, " bitrate=%q", fmt.Sprint(p.Bitrate))
		}
	}
	return b.String()
}

// didlContainer renders one container element. searchable and restricted
// are fixed; renderers that honor writeStatus see the library is read-only.
func didlContainer(id, parentID, title string, childCount int) string {
	return fmt.Sprintf(
		"<container id=%q parentID=%q restricted=\"1\" searchable=\"1\" childCount=\"%d\">\n"+
			"    <dc:title>%s</dc:title>\n"+
			"    <upnp:class>object.container.storageFolder</upnp:class>\n"+
			"    <upnp:writeStatus>NOT_WRITABLE</upnp:writeStatus>\n"+
			"</container>",
		id, parentID, childCount, html.EscapeString(title))
}

// didlItem renders one item element with class-specific placeholder
// metadata. Renderers look better with a populated creator/genre block even
// when the filesystem has nothing to offer.
func didlItem(it mediaItem, itemURL, duration string) string {
	title := html.EscapeString(it.Name)
	pi := protocolInfo(it.MIME)
	res := resAttributes(it, duration)

	switch {
	case strings.HasPrefix(it.MIME, "audio/"):
		return fmt.Sprintf(
			"<item id=%q parentID=%q restricted=\"1\">\n"+
				"    <dc:title>%s</dc:title>\n"+
				"    <upnp:class>object.item.audioItem.musicTrack</upnp:class>\n"+
				"    <dc:creator>Unknown Artist</dc:creator>\n"+
				"    <upnp:artist>Unknown Artist</upnp:artist>\n"+
				"    <upnp:album>Unknown Album</upnp:album>\n"+
				"    <upnp:genre>Music</upnp:genre>\n"+
				"    <dc:date>2024-01-01T00:00:00</dc:date>\n"+
				"    <res protocolInfo=%q %s>%s</res>\n"+
				"</item>",
			it.ID, it.ParentID, title, pi, res, itemURL)
	case strings.HasPrefix(it.MIME, "image/"):
		return fmt.Sprintf(
			"<item id=%q parentID=%q restricted=\"1\">\n"+
				"    <dc:title>%s</dc:title>\n"+
				"    <upnp:class>object.item.imageItem.photo</upnp:class>\n"+
				"    <dc:creator>Unknown Creator</dc:creator>\n"+
				"    <upnp:artist>Unknown Artist</upnp:artist>\n"+
				"    <dc:description>Image: %s</dc:description>\n"+
				"    <res protocolInfo=%q %s>%s</res>\n"+
				"</item>",
			it.ID, it.ParentID, title, title, pi, res, itemURL)
	default:
		return fmt.Sprintf(
			"<item id=%q parentID=%q restricted=\"1\">\n"+
				"    <dc:title>%s</dc:title>\n"+
				"    <upnp:class>object.item.videoItem</upnp:class>\n"+
				"    <dc:creator>Unknown Creator</dc:creator>\n"+
				"    <upnp:artist>Unknown Artist</upnp:artist>\n"+
				"    <upnp:genre>Video</upnp:genre>\n"+
				"    <dc:description>Video File: %s</dc:description>\n"+
				"    <res protocolInfo=%q %s>%s</res>\n"+
				"</item>",
			it.ID, it.ParentID, title, title, pi, res, itemURL)
	}
}

// didlDocument wraps rendered fragments in the DIDL-Lite envelope.
func didlDocument(fragments []string) string {
	return "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<DIDL-Lite xmlns=\"urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/\" " +
		"xmlns:dc=\"http://purl.org/dc/elements/1.1/\" " +
		"xmlns:upnp=\"urn:schemas-upnp-org:metadata-1-0/upnp/\" " +
		"xmlns:dlna=\"urn:schemas-dlna-org:metadata-1-0/\">\n" +
		strings.Join(fragments, "\n") +
		"\n</DIDL-Lite>"
}

// soapResponse wraps an action response body in the SOAP envelope. service
// is the full urn, action the bare name, inner the pre-rendered argument
// elements.
func soapResponse(service, action, inner string) string {
	return fmt.Sprintf(
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"+
			"<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\" s:encodingStyle=\"http://schemas.xmlsoap.org/soap/encoding/\">\n"+
			"    <s:Body>\n"+
			"        <u:%sResponse xmlns:u=%q>\n"+
			"%s"+
			"        </u:%sResponse>\n"+
			"    </s:Body>\n"+
			"</s:Envelope>",
		action, service, inner, action)
}

// soapFault is the Invalid Action fault body sent with HTTP 500.
const soapFault = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
    <s:Body>
        <s:Fault>
            <faultcode>s:Client</faultcode>
            <faultstring>UPnPError</faultstring>
            <detail>
                <UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
                    <errorCode>401</errorCode>
                    <errorDescription>Invalid Action</errorDescription>
                </UPnPError>
            </detail>
        </s:Fault>
    </s:Body>
</s:Envelope>`
