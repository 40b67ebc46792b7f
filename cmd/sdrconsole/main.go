// ABOUTME: Entry point for the SDR console
// ABOUTME: Loads config, wires engine, analyzer, control plane and feeds, then runs them together
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/sdrconsole/internal/config"
	"github.com/harperreed/sdrconsole/internal/console"
	"github.com/harperreed/sdrconsole/internal/control"
	"github.com/harperreed/sdrconsole/internal/discovery"
	"github.com/harperreed/sdrconsole/internal/engine"
	"github.com/harperreed/sdrconsole/internal/iqstream"
	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/internal/server"
	"github.com/harperreed/sdrconsole/internal/spectrum"
	"github.com/harperreed/sdrconsole/internal/ui"
	"github.com/harperreed/sdrconsole/internal/version"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "YAML config file (default: built-in defaults)")
	backend    = flag.String("backend", "", "Audio backend: malgo, portaudio, oto or null")
	deviceName = flag.String("device", "", "Audio device name (default: system default)")
	name       = flag.String("name", "", "Console name for mDNS and the websocket feed")
	logFile    = flag.String("log-file", "", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	browse     = flag.Bool("browse", false, "List consoles on the network and exit")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// statusInterval paces TUI refreshes
const statusInterval = 250 * time.Millisecond

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}
	if *browse {
		browseConsoles(10 * time.Second)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s: %s", version.Product, version.Version, cfg.Network.Name)
	if cfg.Logging.Debug {
		log.Printf("Debug logging enabled")
	}

	if err := run(cfg, useTUI); err != nil {
		log.Printf("Console error: %v", err)
		if useTUI {
			fmt.Fprintf(os.Stderr, "Console error: %v\n", err)
		}
		os.Exit(1)
	}
	log.Printf("Console stopped")
}

// loadConfig layers explicitly set flags over the config file
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Audio.Backend = *backend
		case "device":
			cfg.Audio.Device = *deviceName
		case "name":
			cfg.Network.Name = *name
		case "log-file":
			cfg.Logging.File = *logFile
		case "debug":
			cfg.Logging.Debug = *debug
		case "no-mdns":
			cfg.Network.Advertise = !*noMDNS
		}
	})

	if cfg.Network.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Network.Name = fmt.Sprintf("%s-sdrconsole", hostname)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRadio applies the configured tuning
func newRadio(cfg config.RadioConfig) (*radio.Radio, error) {
	r := radio.New()
	mode, err := radio.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	for _, set := range []func() error{
		func() error { return r.SetFrequency(cfg.Frequency) },
		func() error { return r.SetMode(mode) },
		func() error { return r.SetBandwidth(cfg.Bandwidth) },
		func() error { return r.SetSampleRate(cfg.SampleRate) },
		func() error { return r.SetPreampDB(cfg.PreampDB) },
	} {
		if err := set(); err != nil {
			return nil, fmt.Errorf("invalid radio setting: %w", err)
		}
	}
	return r, nil
}

func run(cfg *config.Config, useTUI bool) error {
	debugOn := cfg.Logging.Debug

	r, err := newRadio(cfg.Radio)
	if err != nil {
		return err
	}

	analyzer, err := spectrum.New(spectrum.Config{
		Size:  cfg.Spectrum.FFTSize,
		Gain:  cfg.Spectrum.Gain,
		Debug: debugOn,
	})
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	eng := engine.New(engine.Config{
		Backend:    cfg.Audio.Backend,
		DeviceName: cfg.Audio.Device,
		Debug:      debugOn,
	}, nil)
	if err := eng.Initialize(cfg.Audio.SampleRate, cfg.Audio.PeriodFrames); err != nil {
		return err
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			log.Printf("Audio engine stop error: %v", err)
		}
	}()
	if err := eng.Start(); err != nil {
		return err
	}

	con := console.New(console.Config{
		RecordDir:      cfg.Recording.Dir,
		DataDir:        cfg.Recording.DataDir,
		RecordChannels: cfg.Recording.Channels,
		RecordRate:     cfg.Recording.SampleRate,
		Debug:          debugOn,
	}, r, eng, analyzer)
	if paths := flag.Args(); len(paths) > 0 {
		con.Playlist().Add(paths...)
		log.Printf("Playlist: %d files", len(paths))
	}

	dispatcher := control.NewDispatcher(con, debugOn)

	ctrlSrv := control.NewServer(dispatcher)
	if err := ctrlSrv.Listen(fmt.Sprintf(":%d", cfg.Network.ControlPort)); err != nil {
		return err
	}

	receiver := iqstream.NewReceiver(analyzer, dispatcher, debugOn)

	hub := server.New(server.Config{
		Port:      cfg.Network.FeedPort,
		Name:      cfg.Network.Name,
		FrameRate: cfg.Network.FrameRate,
		Debug:     debugOn,
	}, analyzer, con, dispatcher)

	if cfg.Network.Advertise {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: cfg.Network.Name,
			Port:        cfg.Network.FeedPort,
			Path:        server.Path,
			ControlPort: cfg.Network.ControlPort,
			IQPort:      cfg.Network.IQPort,
			Version:     version.Version,
		})
		if err := disc.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
		defer disc.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return con.Run(ctx) })
	g.Go(func() error { return ctrlSrv.Serve(ctx) })
	g.Go(func() error {
		return receiver.Run(ctx, fmt.Sprintf("%s:%d", cfg.Network.IQAddr, cfg.Network.IQPort))
	})
	g.Go(func() error { return hub.Run(ctx) })

	if useTUI {
		controls := ui.NewControls()
		tui := ui.New(cfg.Network.Name, controls)

		g.Go(func() error {
			err := tui.Run()
			cancel()
			if err != nil {
				return fmt.Errorf("TUI failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			ticker := time.NewTicker(statusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					tui.Stop()
					return nil
				case cmd := <-controls.Commands:
					tui.Reply(dispatcher.Execute(cmd))
				case <-controls.Quit:
					cancel()
				case <-ticker.C:
					sent, dropped := hub.FrameStats()
					tui.Update(ui.StatusMsg{
						Console:     con.Status(),
						Engine:      eng.Stats(),
						Analyzer:    analyzer.Stats(),
						Frame:       analyzer.Latest(),
						Clients:     hub.ClientCount(),
						FeedSent:    sent,
						FeedDropped: dropped,
					})
				}
			}
		})
	} else {
		log.Printf("TUI disabled - press Ctrl-C to stop")
		if debugOn {
			g.Go(func() error {
				ticker := time.NewTicker(10 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						st := analyzer.Stats()
						es := eng.Stats()
						sent, dropped := hub.FrameStats()
						log.Printf("[DEBUG] periods=%d frames=%d dropped=%d feed clients=%d sent=%d dropped=%d",
							es.Periods, st.Frames, st.Dropped, hub.ClientCount(), sent, dropped)
					}
				}
			})
		}
	}

	return g.Wait()
}

// browseConsoles prints consoles discovered within timeout
func browseConsoles(timeout time.Duration) {
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	if err := disc.Browse(); err != nil {
		log.Fatalf("Browse failed: %v", err)
	}

	seen := make(map[string]bool)
	deadline := time.After(timeout)
	for {
		select {
		case s := <-disc.Servers():
			key := fmt.Sprintf("%s:%d", s.Host, s.Port)
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Printf("%s\tws://%s:%d%s\tcontrol=%d iq=%d version=%s\n",
				s.Name, s.Host, s.Port, s.Path, s.ControlPort, s.IQPort, s.Version)
		case <-deadline:
			if len(seen) == 0 {
				fmt.Println("No consoles found")
			}
			return
		}
	}
}
