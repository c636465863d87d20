package dlna

import (
	"fmt"
	"net/http"

	"github.com/richstokes/zeroconfdlna/internal/config"
)

const projectURL = "https://github.com/richstokes/ZeroConfigDLNA"

// deviceDescription renders the UPnP root device document served at
// /description.xml. Clients fetch this after SSDP discovery to learn the
// control and SCPD URLs.
func (s *Server) deviceDescription() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0" xmlns:dlna="urn:schemas-dlna-org:device-1-0">
<specVersion>
    <major>1</major>
    <minor>0</minor>
</specVersion>
<device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>%s</manufacturer>
    <manufacturerURL>%s</manufacturerURL>
    <modelDescription>DLNA/UPnP Media Server</modelDescription>
    <modelName>%s</modelName>
    <modelNumber>%s</modelNumber>
    <modelURL>%s</modelURL>
    <serialNumber>12345678</serialNumber>
    <UDN>uuid:%s</UDN>
    <dlna:X_DLNADOC xmlns:dlna="urn:schemas-dlna-org:device-1-0">DMS-1.50</dlna:X_DLNADOC>
    <serviceList>
        <service>
            <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
            <serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
            <controlURL>/control</controlURL>
            <eventSubURL>/events</eventSubURL>
            <SCPDURL>/cd_scpd.xml</SCPDURL>
        </service>
        <service>
            <serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
            <serviceId>urn:upnp-org:serviceId:ConnectionManager</serviceId>
            <controlURL>/control</controlURL>
            <eventSubURL>/events</eventSubURL>
            <SCPDURL>/cm_scpd.xml</SCPDURL>
        </service>
    </serviceList>
    <presentationURL>http://%s:%d/</presentationURL>
</device>
</root>`,
		s.cfg.ServerName, config.Manufacturer, projectURL,
		s.cfg.ServerName, config.ServerVersion, projectURL,
		s.identity.UUID(), s.IP, s.Port)
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	body := s.deviceDescription()
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, SOAPAction")
	w.Header().Set("Server", config.ServerAgent)
	fmt.Fprint(w, body)
}

func (s *Server) handleSCPD(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Server", config.ServerAgent)
		fmt.Fprint(w, body)
	}
}

// contentDirectorySCPD advertises exactly the implemented ContentDirectory
// actions. SystemUpdateID and ContainerUpdateIDs are evented variables even
// though /events only acknowledges subscriptions.
const contentDirectorySCPD = `<?xml version="1.0" encoding="utf-8"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
<specVersion>
    <major>1</major>
    <minor>0</minor>
</specVersion>
<actionList>
    <action>
        <name>Browse</name>
        <argumentList>
            <argument>
                <name>ObjectID</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_ObjectID</relatedStateVariable>
            </argument>
            <argument>
                <name>BrowseFlag</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_BrowseFlag</relatedStateVariable>
            </argument>
            <argument>
                <name>Filter</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_Filter</relatedStateVariable>
            </argument>
            <argument>
                <name>StartingIndex</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_Index</relatedStateVariable>
            </argument>
            <argument>
                <name>RequestedCount</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable>
            </argument>
            <argument>
                <name>SortCriteria</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_SortCriteria</relatedStateVariable>
            </argument>
            <argument>
                <name>Result</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_Result</relatedStateVariable>
            </argument>
            <argument>
                <name>NumberReturned</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable>
            </argument>
            <argument>
                <name>TotalMatches</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_Count</relatedStateVariable>
            </argument>
            <argument>
                <name>UpdateID</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_UpdateID</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
    <action>
        <name>GetSearchCapabilities</name>
        <argumentList>
            <argument>
                <name>SearchCaps</name>
                <direction>out</direction>
                <relatedStateVariable>SearchCapabilities</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
    <action>
        <name>GetSortCapabilities</name>
        <argumentList>
            <argument>
                <name>SortCaps</name>
                <direction>out</direction>
                <relatedStateVariable>SortCapabilities</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
    <action>
        <name>GetSystemUpdateID</name>
        <argumentList>
            <argument>
                <name>Id</name>
                <direction>out</direction>
                <relatedStateVariable>SystemUpdateID</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
</actionList>
<serviceStateTable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_ObjectID</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_BrowseFlag</name>
        <dataType>string</dataType>
        <allowedValueList>
            <allowedValue>BrowseMetadata</allowedValue>
            <allowedValue>BrowseDirectChildren</allowedValue>
        </allowedValueList>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_Filter</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_Index</name>
        <dataType>ui4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_Count</name>
        <dataType>ui4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_SortCriteria</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_Result</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_UpdateID</name>
        <dataType>ui4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>SearchCapabilities</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>SortCapabilities</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="yes">
        <name>SystemUpdateID</name>
        <dataType>ui4</dataType>
    </stateVariable>
    <stateVariable sendEvents="yes">
        <name>ContainerUpdateIDs</name>
        <dataType>string</dataType>
    </stateVariable>
</serviceStateTable>
</scpd>`

const connectionManagerSCPD = `<?xml version="1.0" encoding="utf-8"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
<specVersion>
    <major>1</major>
    <minor>0</minor>
</specVersion>
<actionList>
    <action>
        <name>GetProtocolInfo</name>
        <argumentList>
            <argument>
                <name>Source</name>
                <direction>out</direction>
                <relatedStateVariable>SourceProtocolInfo</relatedStateVariable>
            </argument>
            <argument>
                <name>Sink</name>
                <direction>out</direction>
                <relatedStateVariable>SinkProtocolInfo</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
    <action>
        <name>GetCurrentConnectionIDs</name>
        <argumentList>
            <argument>
                <name>ConnectionIDs</name>
                <direction>out</direction>
                <relatedStateVariable>CurrentConnectionIDs</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
    <action>
        <name>GetCurrentConnectionInfo</name>
        <argumentList>
            <argument>
                <name>ConnectionID</name>
                <direction>in</direction>
                <relatedStateVariable>A_ARG_TYPE_ConnectionID</relatedStateVariable>
            </argument>
            <argument>
                <name>RcsID</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_RcsID</relatedStateVariable>
            </argument>
            <argument>
                <name>AVTransportID</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_AVTransportID</relatedStateVariable>
            </argument>
            <argument>
                <name>ProtocolInfo</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_ProtocolInfo</relatedStateVariable>
            </argument>
            <argument>
                <name>PeerConnectionManager</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_ConnectionManager</relatedStateVariable>
            </argument>
            <argument>
                <name>PeerConnectionID</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_ConnectionID</relatedStateVariable>
            </argument>
            <argument>
                <name>Direction</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_Direction</relatedStateVariable>
            </argument>
            <argument>
                <name>Status</name>
                <direction>out</direction>
                <relatedStateVariable>A_ARG_TYPE_ConnectionStatus</relatedStateVariable>
            </argument>
        </argumentList>
    </action>
</actionList>
<serviceStateTable>
    <stateVariable sendEvents="no">
        <name>SourceProtocolInfo</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>SinkProtocolInfo</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="yes">
        <name>CurrentConnectionIDs</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_ConnectionID</name>
        <dataType>i4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_RcsID</name>
        <dataType>i4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_AVTransportID</name>
        <dataType>i4</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_ProtocolInfo</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_ConnectionManager</name>
        <dataType>string</dataType>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_Direction</name>
        <dataType>string</dataType>
        <allowedValueList>
            <allowedValue>Input</allowedValue>
            <allowedValue>Output</allowedValue>
        </allowedValueList>
    </stateVariable>
    <stateVariable sendEvents="no">
        <name>A_ARG_TYPE_ConnectionStatus</name>
        <dataType>string</dataType>
        <allowedValueList>
            <allowedValue>OK</allowedValue>
            <allowedValue>ContentFormatMismatch</allowedValue>
            <allowedValue>InsufficientBandwidth</allowedValue>
            <allowedValue>UnreliableChannel</allowedValue>
            <allowedValue>Unknown</allowedValue>
        </allowedValueList>
    </stateVariable>
</serviceStateTable>
</scpd>`
