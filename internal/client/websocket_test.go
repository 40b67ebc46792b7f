// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Connects to a real feed hub over httptest and checks message routing
package client

import (
	"context"
	"encoding/binary"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/sdrconsole/internal/console"
	"github.com/harperreed/sdrconsole/internal/protocol"
	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/internal/server"
	"github.com/harperreed/sdrconsole/internal/spectrum"
	clocksync "github.com/harperreed/sdrconsole/internal/sync"
)

type fakeStatus struct{}

func (fakeStatus) Status() console.Status {
	return console.Status{Radio: radio.New().State(), Playing: true, PlayingPath: "/tmp/a.wav"}
}

type fakeCommander struct{}

func (fakeCommander) Execute(cmd string) string {
	if cmd == "frequency;" {
		return "frequency:7000000;"
	}
	return "?;"
}

func startHub(t *testing.T, spec server.Spectrum) string {
	t.Helper()
	hub := server.New(server.Config{Name: "bench", FrameRate: 50}, spec, fakeStatus{}, fakeCommander{})
	hub.StartBroadcast()
	ts := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return strings.TrimPrefix(ts.URL, "http://")
}

func connect(t *testing.T, addr string, config Config) *Client {
	t.Helper()
	config.ServerAddr = addr
	c := NewClient(config)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{ServerAddr: "localhost:8927", Name: "Test Monitor"})

	if c.config.Path != DefaultPath {
		t.Errorf("expected path %s, got %s", DefaultPath, c.config.Path)
	}
	if c.IsConnected() {
		t.Error("expected new client to be disconnected")
	}
	if err := c.SendCommand("frequency;"); err == nil {
		t.Error("expected error sending while disconnected")
	}
}

func TestConnectHandshake(t *testing.T) {
	a, err := spectrum.New(spectrum.Config{Size: 64})
	if err != nil {
		t.Fatalf("spectrum.New failed: %v", err)
	}
	addr := startHub(t, a)

	c := connect(t, addr, Config{Name: "monitor", Version: server.ProtocolVersion})

	sh := c.ServerHello()
	if sh.Name != "bench" {
		t.Errorf("expected server name bench, got %q", sh.Name)
	}
	if sh.ClientID == "" {
		t.Error("expected server to assign a client ID")
	}
	if sh.FFTSize != 64 {
		t.Errorf("expected fft size 64, got %d", sh.FFTSize)
	}
	if !c.IsConnected() {
		t.Error("expected client to be connected")
	}
}

func TestConnectRejectedDuplicate(t *testing.T) {
	addr := startHub(t, nil)
	connect(t, addr, Config{Name: "first", ClientID: "same"})

	c := NewClient(Config{ServerAddr: addr, Name: "second", ClientID: "same"})
	err := c.Connect(context.Background())
	if err == nil {
		c.Close()
		t.Fatal("expected duplicate client ID to be rejected")
	}
	if !strings.Contains(err.Error(), "duplicate_client_id") {
		t.Errorf("expected duplicate_client_id in error, got %v", err)
	}
}

func TestSendCommand(t *testing.T) {
	addr := startHub(t, nil)
	c := connect(t, addr, Config{Name: "monitor"})

	if err := c.SendCommand("frequency;"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	select {
	case reply := <-c.Replies:
		if reply.Command != "frequency;" || reply.Reply != "frequency:7000000;" {
			t.Errorf("unexpected reply %+v", reply)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestStatusDelivered(t *testing.T) {
	addr := startHub(t, nil)
	c := connect(t, addr, Config{Name: "monitor", Subscriptions: []string{protocol.SubscribeStatus}})

	select {
	case st := <-c.Status:
		if st.Frequency != radio.DefaultFrequency {
			t.Errorf("expected frequency %d, got %d", radio.DefaultFrequency, st.Frequency)
		}
		if !st.Playing || st.PlayingPath != "/tmp/a.wav" {
			t.Errorf("unexpected playback status %+v", st)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for status")
	}
}

func TestSpectrumDelivered(t *testing.T) {
	const size = 16
	a, err := spectrum.New(spectrum.Config{Size: size, CenterHz: 7_074_000, BandwidthHz: 48000})
	if err != nil {
		t.Fatalf("spectrum.New failed: %v", err)
	}
	addr := startHub(t, a)
	c := connect(t, addr, Config{Name: "panel", Subscriptions: []string{protocol.SubscribeSpectrum}})

	block := make([]byte, size*8)
	for k := 0; k < size; k++ {
		binary.LittleEndian.PutUint32(block[k*8:], math.Float32bits(1))
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.Ingest(block)
			}
		}
	}()

	select {
	case f := <-c.Spectrum:
		if f.CenterHz != 7_074_000 || f.BandwidthHz != 48000 {
			t.Errorf("unexpected frame header %+v", f)
		}
		if len(f.Bins) != size {
			t.Fatalf("expected %d bins, got %d", size, len(f.Bins))
		}
		peak := 0
		for i, v := range f.Bins {
			if v > f.Bins[peak] {
				peak = i
			}
		}
		if peak != size/2 {
			t.Errorf("expected DC peak at bin %d, got %d", size/2, peak)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for spectrum")
	}
}

func TestTimeSync(t *testing.T) {
	addr := startHub(t, nil)
	c := connect(t, addr, Config{Name: "monitor", Subscriptions: []string{protocol.SubscribeSpectrum}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.RunTimeSync(ctx, 20*time.Millisecond)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, q := c.Clock().Stats(); q == clocksync.QualityGood {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected clock quality to become good")
}

func TestCloseEndsConnection(t *testing.T) {
	addr := startHub(t, nil)
	c := connect(t, addr, Config{Name: "monitor"})

	c.Close()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close")
	}
	if c.IsConnected() {
		t.Error("expected client to be disconnected")
	}
}
