// ABOUTME: File names for recordings
// ABOUTME: Encodes mode, frequency, rate and local time in the name
package console

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/sdrconsole/internal/radio"
)

// QuickAudioFile is the fixed quick record/play file name
const QuickAudioFile = "SDRQuickAudio.wav"

// RecordingName returns "<MODE> <MHz>MHz [<k>k] <yyyy-mm-dd hh mm ss>.wav"
func RecordingName(mode radio.Mode, frequencyHz int64, sampleRate int, t time.Time) string {
	name := fmt.Sprintf("%s %.6fMHz [%dk] %s.wav",
		mode, float64(frequencyHz)/1e6, sampleRate/1000, t.Format("2006-01-02 15 04 05"))
	return strings.ReplaceAll(name, "/", "-")
}

// RecordingPath joins the recording directory and a generated name
func RecordingPath(dir string, mode radio.Mode, frequencyHz int64, sampleRate int, t time.Time) string {
	return filepath.Join(dir, RecordingName(mode, frequencyHz, sampleRate, t))
}
