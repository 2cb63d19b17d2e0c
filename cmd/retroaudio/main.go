// ABOUTME: Entry point for the retroaudio emulator audio path
// ABOUTME: Parses CLI flags and wires a core, the audio engine and an output device
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/retroaudio/retroaudio/internal/frontend"
	"github.com/retroaudio/retroaudio/internal/monitor"
	"github.com/retroaudio/retroaudio/internal/source"
	"github.com/retroaudio/retroaudio/internal/ui"
	"github.com/retroaudio/retroaudio/internal/version"
	"github.com/retroaudio/retroaudio/pkg/audio/output"
	"github.com/retroaudio/retroaudio/pkg/engine"
)

var (
	outputName   = flag.String("output", "oto", "Output backend ("+strings.Join(output.Backends, ", ")+")")
	sourceArg    = flag.String("source", "tone", "Core to run: \"tone\" or an audio file (MP3, FLAC, WAV, OGG)")
	region       = flag.String("region", "ntsc", "Tone core region (ntsc, pal)")
	coreRate     = flag.Float64("core-rate", 0, "Override the tone core's sample rate in Hz")
	toneFreq     = flag.Float64("tone-freq", 440, "Tone frequency in Hz")
	fileFPS      = flag.Float64("fps", source.DefaultFileFPS, "Frame rate used to slice file cores")
	loop         = flag.Bool("loop", true, "Loop file cores")
	displayHz    = flag.Float64("display-hz", frontend.DefaultDisplayHz, "Display refresh rate the core is synced to")
	targetRate   = flag.Int("target-rate", 48000, "Device sample rate in Hz")
	capacity     = flag.Int("capacity", 0, "Ring capacity in bytes (0: two device periods)")
	periodFrames = flag.Int("period-frames", output.DefaultPeriodFrames, "Device period in frames")
	monitorPort  = flag.Int("monitor-port", monitor.DefaultPort, "Monitor WebSocket port (0 disables)")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement of the monitor")
	logFile      = flag.String("log-file", "retroaudio.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	duration     = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// regionSetter is implemented by cores that can switch video region
type regionSetter interface {
	SetRegion(region source.Region)
	Region() source.Region
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
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

	log.Printf("Starting %s", version.String())

	core, title, closeCore, err := openCore()
	if err != nil {
		log.Fatalf("Failed to open core: %v", err)
	}
	defer closeCore()

	dev, err := output.New(*outputName, *periodFrames)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	eng := engine.New(engine.Config{Device: dev})
	runner := frontend.NewRunner(core, eng, frontend.RunnerConfig{DisplayHz: *displayHz})

	if err := eng.Start(runner.Rate(), *targetRate, *capacity); err != nil {
		log.Fatalf("Failed to start audio engine: %v", err)
	}

	var mon *monitor.Server
	if *monitorPort > 0 {
		mon, err = monitor.NewServer(monitor.Config{
			Port:       *monitorPort,
			EnableMDNS: !*noMDNS,
			OnRegion:   regionHandler(core),
		}, eng)
		if err != nil {
			log.Fatalf("Failed to create monitor: %v", err)
		}
		go func() {
			if err := mon.Start(); err != nil {
				log.Printf("Monitor error: %v", err)
			}
		}()
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), *duration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Printf("Runner stopped: %v", err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		controls := ui.NewControls()
		tui := ui.New(controls)

		go handleControls(ctx, controls, eng, core)
		go func() {
			ticker := time.NewTicker(250 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				tui.Update(status(title, dev, core, eng, runner))
			}
		}()
		go func() {
			select {
			case <-controls.Quit:
				log.Printf("Received quit signal from TUI")
			case <-sigChan:
				log.Printf("Shutdown signal received")
			case <-ctx.Done():
			}
			cancel()
			tui.Stop()
		}()

		if err := tui.Start(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		cancel()
	} else {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
		case <-ctx.Done():
		}
		cancel()
	}

	wg.Wait()

	if mon != nil {
		mon.Stop()
	}
	if err := eng.Stop(); err != nil {
		log.Printf("Error stopping engine: %v", err)
	}

	st := eng.Stats()
	log.Printf("Stopped after %d frames: %d underruns, %d stalls (%v)",
		runner.Frames(), st.Underruns, st.Stalls, st.StallTime.Round(time.Millisecond))
}

// openCore builds the core selected by -source
func openCore() (frontend.Core, string, func(), error) {
	if *sourceArg == "tone" {
		r, err := source.ParseRegion(*region)
		if err != nil {
			return nil, "", nil, err
		}
		tone, err := source.NewTone(source.ToneConfig{
			Frequency:  *toneFreq,
			Region:     r,
			SampleRate: *coreRate,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return tone, fmt.Sprintf("tone %.0fHz", *toneFreq), func() {}, nil
	}

	file, err := source.NewFile(source.FileConfig{
		Path: *sourceArg,
		FPS:  *fileFPS,
		Loop: *loop,
	})
	if err != nil {
		return nil, "", nil, err
	}
	return file, file.Title(), func() { _ = file.Close() }, nil
}

// regionHandler returns a region request handler, or nil when core has no regions
func regionHandler(core frontend.Core) func(string) error {
	rs, ok := core.(regionSetter)
	if !ok {
		return nil
	}
	return func(name string) error {
		r, err := source.ParseRegion(name)
		if err != nil {
			return err
		}
		rs.SetRegion(r)
		log.Printf("Region set to %s", r)
		return nil
	}
}

// handleControls applies key actions from the TUI
func handleControls(ctx context.Context, controls *ui.Controls, eng *engine.Engine, core frontend.Core) {
	setRegion := regionHandler(core)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-controls.Mute:
			eng.SetMuted(msg.Muted)
			log.Printf("Muted: %v", msg.Muted)
		case msg := <-controls.Region:
			if setRegion == nil {
				log.Printf("Core has no region setting")
				continue
			}
			if err := setRegion(msg.Region); err != nil {
				log.Printf("Region change failed: %v", err)
			}
		}
	}
}

func status(title string, dev output.Device, core frontend.Core, eng *engine.Engine, runner *frontend.Runner) ui.Status {
	st := ui.Status{
		Core:        title,
		Output:      dev.Name(),
		Engine:      eng.Stats(),
		CoreRate:    runner.Rate(),
		Frames:      runner.Frames(),
		EmptyFrames: runner.EmptyFrames(),
		Dropped:     runner.Dropped(),
	}
	if rs, ok := core.(regionSetter); ok {
		st.Region = rs.Region().String()
	}
	return st
}
