// ABOUTME: Websocket feed message type definitions
// ABOUTME: JSON control messages plus the binary spectrum frame layout
package protocol

// Message is the top-level wrapper for all JSON messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Subscriptions a client may request in its hello
const (
	SubscribeSpectrum = "spectrum"
	SubscribeStatus   = "status"
)

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID      string      `json:"client_id,omitempty"` // assigned by the server when empty
	Name          string      `json:"name"`
	Version       int         `json:"version"`
	Subscriptions []string    `json:"subscriptions,omitempty"`
	DeviceInfo    *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	FFTSize    int         `json:"fft_size"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// ConsoleStatus is pushed periodically as console/status
type ConsoleStatus struct {
	Frequency     int64   `json:"frequency"`
	FrequencyB    int64   `json:"frequency_b"`
	VFO           string  `json:"vfo"`
	Mode          string  `json:"mode"`
	FilterLow     int     `json:"filter_low"`
	FilterHigh    int     `json:"filter_high"`
	Bandwidth     int     `json:"bandwidth"`
	SampleRate    int     `json:"sample_rate"`
	PreampDB      float64 `json:"preamp_db"`
	Playing       bool    `json:"playing"`
	PlayingPath   string  `json:"playing_path,omitempty"`
	Recording     bool    `json:"recording"`
	RecordingPath string  `json:"recording_path,omitempty"`
	RecordedBytes int64   `json:"recorded_bytes,omitempty"`
}

// ClientCommand carries a CAT or TCI command string
type ClientCommand struct {
	Command string `json:"command"`
}

// CommandReply is the response to client/command
type CommandReply struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp
}

// ServerError reports a rejected request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
