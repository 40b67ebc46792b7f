// ABOUTME: Maps errors from the console stack to short reason names
// ABOUTME: Used in ERR replies and status displays
package control

import (
	"errors"

	"github.com/harperreed/sdrconsole/internal/engine"
	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/internal/spectrum"
	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

var reasons = []struct {
	err  error
	name string
}{
	{engine.ErrDeviceUnavailable, "device_unavailable"},
	{engine.ErrStreamOpenFailed, "stream_open_failed"},
	{wav.ErrFileNotFound, "file_not_found"},
	{wav.ErrUnsupportedFormat, "unsupported_format"},
	{wav.ErrHeaderInvalid, "header_invalid"},
	{wav.ErrFileCreateFailed, "file_create_failed"},
	{spectrum.ErrMalformedDatagram, "malformed_datagram"},
	{radio.ErrInvalidParameter, "invalid_parameter"},
}

// Reason returns the named reason for err, "error" for anything unclassified
// and "" for nil.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "error"
}
