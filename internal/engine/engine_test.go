// ABOUTME: Tests for the audio engine callback and session control
// ABOUTME: Drives Process directly and through the null device clock
package engine

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/sdrconsole/pkg/audio/device"
	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

// writeWAV creates a 16-bit file holding samples
func writeWAV(t *testing.T, channels, sampleRate int, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	w, err := wav.Create(path, channels, sampleRate)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readWAV(t *testing.T, path string) (wav.Header, []float32) {
	t.Helper()
	r, err := wav.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	buf := make([]float32, 1024)
	n, _ := r.ReadSamples(buf)
	return r.Header(), buf[:n]
}

func expectSamples(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	e := New(Config{}, device.NewNull())
	if err := e.Stop(); err != nil {
		t.Errorf("expected no-op stop, got %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	e := New(Config{}, device.NewNull())
	if err := e.Initialize(48000, 8); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer e.Stop()

	if err := e.Initialize(48000, 8); !errors.Is(err, ErrStreamOpenFailed) {
		t.Errorf("expected ErrStreamOpenFailed, got %v", err)
	}
	if err := e.Initialize(0, 8); !errors.Is(err, ErrStreamOpenFailed) {
		t.Errorf("expected open stream to be left alone, got %v", err)
	}
}

func TestInitializeUnknownBackend(t *testing.T) {
	e := New(Config{Backend: "jack"}, nil)
	if err := e.Initialize(48000, 256); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestProcessSilenceWithoutSessions(t *testing.T) {
	e := New(Config{}, nil)
	out := []float32{1, 1, 1, 1}

	if status := e.Process(make([]float32, 4), out); status != device.Continue {
		t.Errorf("expected Continue, got %s", status)
	}
	expectSamples(t, out, []float32{0, 0, 0, 0})
}

func TestPlaybackAppliesGain(t *testing.T) {
	path := writeWAV(t, 2, 48000, []float32{0.25, -0.25, 0.125, 0.5})
	e := New(Config{}, nil)
	if err := e.SetPreamp(2); err != nil {
		t.Fatalf("SetPreamp failed: %v", err)
	}
	if err := e.StartPlayback(path, 7); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	out := make([]float32, 8)
	e.Process(nil, out)
	expectSamples(t, out, []float32{0.5, -0.5, 0.25, 1, 0, 0, 0, 0})

	select {
	case ev := <-e.Events():
		if ev.Kind != PlaybackEnded || ev.ID != 7 {
			t.Errorf("expected playback_ended for 7, got %s for %d", ev.Kind, ev.ID)
		}
	default:
		t.Fatal("expected an end-of-file event")
	}
	if e.Stats().Playing {
		t.Error("expected playback to be retired")
	}
}

func TestPlaybackEOFMidPeriodStaysInBounds(t *testing.T) {
	path := writeWAV(t, 2, 48000, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5})
	e := New(Config{}, nil)
	if err := e.StartPlayback(path, 1); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	buf := make([]float32, 24)
	for i := range buf {
		buf[i] = 9
	}
	out := buf[:16]
	e.Process(nil, out)

	expectSamples(t, out, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	for i, v := range buf[16:] {
		if v != 9 {
			t.Fatalf("sample %d past the period was overwritten: %v", i, v)
		}
	}
}

func TestPlaybackAcrossPeriods(t *testing.T) {
	samples := make([]float32, 2*600)
	for i := range samples {
		samples[i] = float32(i%64) / 128
	}
	path := writeWAV(t, 2, 48000, samples)

	e := New(Config{WindowFrames: 64}, nil)
	if err := e.StartPlayback(path, 1); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	var got []float32
	out := make([]float32, 2*256)
	for i := 0; i < 3; i++ {
		e.Process(nil, out)
		got = append(got, out...)
	}
	expectSamples(t, got[:len(samples)], samples)
	for _, v := range got[len(samples):] {
		if v != 0 {
			t.Fatalf("expected silence after end of file, got %v", v)
		}
	}
}

func TestPlaybackMonoDuplicated(t *testing.T) {
	path := writeWAV(t, 1, 48000, []float32{0.5, -0.25})
	e := New(Config{}, nil)
	if err := e.StartPlayback(path, 1); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	out := make([]float32, 4)
	e.Process(nil, out)
	expectSamples(t, out, []float32{0.5, 0.5, -0.25, -0.25})
}

func TestSecondPlaybackReplacesFirst(t *testing.T) {
	first := writeWAV(t, 2, 48000, []float32{0.25, 0.25, 0.25, 0.25})
	second := writeWAV(t, 2, 48000, []float32{-0.5, -0.5, -0.5, -0.5})

	e := New(Config{}, nil)
	if err := e.StartPlayback(first, 1); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	if err := e.StartPlayback(second, 2); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	if id := e.Stats().PlaybackID; id != 2 {
		t.Fatalf("expected playback 2, got %d", id)
	}

	e.StopPlayback(1)
	if !e.Stats().Playing {
		t.Fatal("stopping a replaced id should not stop the active playback")
	}

	out := make([]float32, 4)
	e.Process(nil, out)
	expectSamples(t, out, []float32{-0.5, -0.5, -0.5, -0.5})
}

func TestStopPlayback(t *testing.T) {
	path := writeWAV(t, 2, 48000, make([]float32, 2048))
	e := New(Config{}, nil)
	if err := e.StartPlayback(path, 3); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	e.StopPlayback(3)
	if e.Stats().Playing {
		t.Fatal("expected playback stopped")
	}

	out := []float32{1, 1}
	e.Process(nil, out)
	expectSamples(t, out, []float32{0, 0})
}

func TestStartPlaybackErrors(t *testing.T) {
	e := New(Config{}, nil)

	if err := e.StartPlayback(filepath.Join(t.TempDir(), "missing.wav"), 1); !errors.Is(err, wav.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	path := writeWAV(t, 2, 44100, []float32{0, 0})
	if err := e.StartPlayback(path, 1); !errors.Is(err, wav.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if e.Stats().Playing {
		t.Error("expected no active playback after failures")
	}
}

func TestRecordingIgnoresGain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	e := New(Config{}, nil)
	if err := e.SetPreamp(4); err != nil {
		t.Fatalf("SetPreamp failed: %v", err)
	}
	if err := e.StartRecording(path, 2, 48000); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	in := []float32{0.5, -0.5, 0.25, -0.25}
	e.Process(in, make([]float32, 4))
	e.Process(in, make([]float32, 4))

	if got := e.Stats().RecordedBytes; got != 16 {
		t.Errorf("expected 16 bytes recorded, got %d", got)
	}
	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	header, samples := readWAV(t, path)
	if header.DataSize != 16 {
		t.Errorf("expected data size 16, got %d", header.DataSize)
	}
	expectSamples(t, samples, append(append([]float32{}, in...), in...))
}

func TestRecordingMonoTakesLeft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	e := New(Config{}, nil)
	if err := e.StartRecording(path, 1, 48000); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	e.Process([]float32{0.5, -0.5, 0.25, -0.25}, make([]float32, 4))
	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	header, samples := readWAV(t, path)
	if header.Channels != 1 {
		t.Errorf("expected mono header, got %d channels", header.Channels)
	}
	expectSamples(t, samples, []float32{0.5, 0.25})
}

func expectEvent(t *testing.T, e *Engine, kind EventKind) Event {
	t.Helper()
	select {
	case ev := <-e.Events():
		if ev.Kind != kind {
			t.Fatalf("expected %s event, got %s", kind, ev.Kind)
		}
		if ev.Err == nil {
			t.Errorf("expected %s event to carry an error", kind)
		}
		return ev
	default:
		t.Fatalf("expected a %s event", kind)
	}
	return Event{}
}

func TestRecordingWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.wav")
	e := New(Config{}, nil)
	if err := e.StartRecording(path, 2, 48000); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	// A closed writer fails every write
	e.recording.Load().writer.Close()

	out := make([]float32, 4)
	if status := e.Process([]float32{0.5, -0.5, 0.25, -0.25}, out); status != device.Continue {
		t.Errorf("expected Continue after a write failure, got %s", status)
	}

	ev := expectEvent(t, e, RecordingFailed)
	if ev.Path != path {
		t.Errorf("expected path %s, got %s", path, ev.Path)
	}
	if e.Stats().Recording {
		t.Error("expected recording to be stopped")
	}

	// The next period runs without the failed session
	if status := e.Process([]float32{0.5, -0.5, 0.25, -0.25}, out); status != device.Continue {
		t.Errorf("expected Continue, got %s", status)
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("expected StopRecording after failure to succeed, got %v", err)
	}
}

func TestPlaybackReadFailure(t *testing.T) {
	path := writeWAV(t, 2, 48000, []float32{0.25, -0.25, 0.125, 0.5})
	e := New(Config{}, nil)
	if err := e.StartPlayback(path, 3); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	// Reads from a closed file fail with something other than EOF
	e.playback.Load().reader.Close()

	out := []float32{1, 1, 1, 1}
	if status := e.Process(nil, out); status != device.Continue {
		t.Errorf("expected Continue after a read failure, got %s", status)
	}
	expectSamples(t, out, []float32{0, 0, 0, 0})

	ev := expectEvent(t, e, PlaybackFailed)
	if ev.ID != 3 {
		t.Errorf("expected playback id 3, got %d", ev.ID)
	}
	if e.Stats().Playing {
		t.Error("expected playback to be stopped")
	}
}

func TestStartRecordingInvalidFormat(t *testing.T) {
	e := New(Config{}, nil)
	dir := t.TempDir()

	if err := e.StartRecording(filepath.Join(dir, "a.wav"), 3, 48000); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 3 channels, got %v", err)
	}
	if err := e.StartRecording(filepath.Join(dir, "b.wav"), 2, 12345); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 12345 Hz, got %v", err)
	}
	if err := e.StartRecording(filepath.Join(dir, "missing", "c.wav"), 2, 48000); !errors.Is(err, wav.ErrFileCreateFailed) {
		t.Errorf("expected ErrFileCreateFailed, got %v", err)
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("expected StopRecording without a recording to succeed, got %v", err)
	}
}

func TestSetPreamp(t *testing.T) {
	e := New(Config{}, nil)

	for _, g := range []float32{-1, float32(math.NaN()), float32(math.Inf(1))} {
		if err := e.SetPreamp(g); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter for %v, got %v", g, err)
		}
	}
	if e.Gain() != 1 {
		t.Errorf("expected unity gain after rejections, got %v", e.Gain())
	}

	if err := e.SetPreampDB(20); err != nil {
		t.Fatalf("SetPreampDB failed: %v", err)
	}
	if math.Abs(float64(e.Gain())-10) > 1e-4 {
		t.Errorf("expected gain 10, got %v", e.Gain())
	}
	if err := e.SetPreampDB(90); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for 90 dB, got %v", err)
	}
}

func TestRequestStop(t *testing.T) {
	e := New(Config{}, nil)
	e.RequestStop()
	if status := e.Process(nil, make([]float32, 2)); status != device.Stop {
		t.Errorf("expected Stop, got %s", status)
	}
}

func TestEventOverflowCounted(t *testing.T) {
	e := New(Config{}, nil)
	for i := 0; i < eventBuffer+3; i++ {
		e.post(Event{Kind: PlaybackEnded, ID: i})
	}
	if got := e.Stats().DroppedEvents; got != 3 {
		t.Errorf("expected 3 dropped events, got %d", got)
	}
}

func TestNullDeviceIntegration(t *testing.T) {
	path := writeWAV(t, 2, 48000, make([]float32, 2*480))
	rec := filepath.Join(t.TempDir(), "rec.wav")

	dev := device.NewNull()
	dev.Source = func(in []float32) {
		for i := range in {
			in[i] = 0.5
		}
	}

	e := New(Config{}, dev)
	if err := e.Initialize(48000, 48); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := e.StartPlayback(path, 11); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	if err := e.StartRecording(rec, 2, 48000); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case ev := <-e.Events():
		if ev.Kind != PlaybackEnded || ev.ID != 11 {
			t.Errorf("expected playback_ended for 11, got %s for %d", ev.Kind, ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback to end")
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if e.Stats().Running || e.Stats().Recording {
		t.Error("expected engine stopped and recording finalized")
	}

	header, samples := readWAV(t, rec)
	if header.DataSize == 0 || int(header.DataSize) < len(samples)*2 {
		t.Errorf("unexpected data size %d for %d samples", header.DataSize, len(samples))
	}
	for _, v := range samples {
		if v != 0.5 {
			t.Fatalf("expected recorded input 0.5, got %v", v)
		}
	}

	// The device can be opened again after a full stop
	if err := e.Initialize(48000, 48); err != nil {
		t.Fatalf("re-Initialize failed: %v", err)
	}
	e.Stop()
}

func TestStreamStopsOnRequest(t *testing.T) {
	e := New(Config{}, device.NewNull())
	if err := e.Initialize(48000, 48); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.RequestStop()

	deadline := time.Now().Add(2 * time.Second)
	for e.Stats().Running {
		if time.Now().After(deadline) {
			t.Fatal("engine still running after stop request")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
