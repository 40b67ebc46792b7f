// ABOUTME: Command-line monitor for an SDR console feed
// ABOUTME: Finds a console, prints status and spectrum peaks, or runs one command
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/sdrconsole/internal/client"
	"github.com/harperreed/sdrconsole/internal/discovery"
	"github.com/harperreed/sdrconsole/internal/protocol"
	"github.com/harperreed/sdrconsole/internal/server"
	"github.com/harperreed/sdrconsole/internal/version"
)

var (
	serverAddr = flag.String("server", "", "Console feed address host:port (default: discover via mDNS)")
	name       = flag.String("name", "", "Monitor name (default: hostname-sdrmonitor)")
	command    = flag.String("cmd", "", "Send one CAT/TCI command, print the reply and exit")
	noSpectrum = flag.Bool("no-spectrum", false, "Do not subscribe to spectrum frames")
	timeout    = flag.Duration("timeout", 10*time.Second, "Discovery and command timeout")
)

func main() {
	flag.Parse()

	monitorName := *name
	if monitorName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		monitorName = fmt.Sprintf("%s-sdrmonitor", hostname)
	}

	addr, path := *serverAddr, client.DefaultPath
	if addr == "" {
		found, err := discover(*timeout)
		if err != nil {
			log.Fatalf("%v", err)
		}
		addr = fmt.Sprintf("%s:%d", found.Host, found.Port)
		if found.Path != "" {
			path = found.Path
		}
		log.Printf("Discovered %s at %s", found.Name, addr)
	}

	subs := []string{protocol.SubscribeStatus}
	if !*noSpectrum && *command == "" {
		subs = append(subs, protocol.SubscribeSpectrum)
	}

	c := client.NewClient(client.Config{
		ServerAddr:    addr,
		Path:          path,
		Name:          monitorName,
		Version:       server.ProtocolVersion,
		Subscriptions: subs,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     "sdrmonitor",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, *timeout)
	err := c.Connect(dialCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()

	if *command != "" {
		reply, err := runCommand(ctx, c, *command, *timeout)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(reply)
		return
	}

	sh := c.ServerHello()
	fmt.Printf("Connected to %s, fft size %d\n", sh.Name, sh.FFTSize)
	if sh.DeviceInfo != nil {
		log.Printf("Console software: %s %s", sh.DeviceInfo.ProductName, sh.DeviceInfo.SoftwareVersion)
	}

	go c.RunTimeSync(ctx, 5*time.Second)
	monitor(ctx, c)
}

// discover returns the first console found on the network
func discover(timeout time.Duration) (*discovery.ServerInfo, error) {
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	if err := disc.Browse(); err != nil {
		return nil, fmt.Errorf("browse failed: %w", err)
	}

	select {
	case s := <-disc.Servers():
		return s, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no console found after %s", timeout)
	}
}

func runCommand(ctx context.Context, c *client.Client, cmd string, timeout time.Duration) (string, error) {
	if err := c.SendCommand(cmd); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	select {
	case reply := <-c.Replies:
		return reply.Reply, nil
	case <-c.Done():
		return "", fmt.Errorf("connection closed before reply")
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", fmt.Errorf("no reply after %s", timeout)
	}
}

func monitor(ctx context.Context, c *client.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			log.Printf("Console closed the connection")
			return
		case st := <-c.Status:
			fmt.Println(formatStatus(st))
		case f := <-c.Spectrum:
			if f.Seq%10 == 0 {
				hz, db := peak(f)
				fmt.Printf("spectrum #%d peak %d Hz %.1f dB\n", f.Seq, hz, db)
			}
		}
	}
}

func formatStatus(st protocol.ConsoleStatus) string {
	line := fmt.Sprintf("%s %d Hz %s filter %d-%d preamp %.1f dB",
		st.VFO, st.Frequency, st.Mode, st.FilterLow, st.FilterHigh, st.PreampDB)
	if st.Playing {
		line += " playing " + st.PlayingPath
	}
	if st.Recording {
		line += fmt.Sprintf(" recording %s (%d bytes)", st.RecordingPath, st.RecordedBytes)
	}
	return line
}

// peak returns the frequency and level of the strongest bin. Bin len/2 sits
// on the center frequency.
func peak(f protocol.SpectrumFrame) (int64, float32) {
	if len(f.Bins) == 0 {
		return f.CenterHz, 0
	}
	best := 0
	for i, v := range f.Bins {
		if v > f.Bins[best] {
			best = i
		}
	}
	binWidth := float64(f.BandwidthHz) / float64(len(f.Bins))
	offset := float64(best-len(f.Bins)/2) * binWidth
	return f.CenterHz + int64(offset), f.Bins[best]
}
