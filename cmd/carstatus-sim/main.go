// Command carstatus-sim drives a car status hub with synthetic perception
// producers and records the speed advisory a driver would have seen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/carstatus/internal/config"
	"github.com/banshee-data/carstatus/internal/monitoring"
	"github.com/banshee-data/carstatus/internal/speedsensor"
	"github.com/banshee-data/carstatus/internal/telemetry"
	"github.com/banshee-data/carstatus/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to status config JSON (built-in defaults when empty)")
	duration     = flag.Duration("duration", 2*time.Minute, "How long to run; 0 runs until interrupted")
	serialPort   = flag.String("serial-port", "", "Radar serial port for live car speed (synthetic profile when empty)")
	baudRate     = flag.Int("baud-rate", 19200, "Baud rate of -serial-port")
	pollInterval = flag.Duration("poll-interval", 500*time.Millisecond, "Advisory poll cadence")
	plotDir      = flag.String("plot-dir", "", "Write advisory.png and advisory.html here when set")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (*config.StatusConfig, error) {
	if path == "" {
		return config.DefaultStatusConfig(), nil
	}
	return config.LoadStatusConfig(path)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *pollInterval <= 0 {
		log.Fatal("-poll-interval must be positive")
	}

	monitoring.SetLogger(log.Printf)
	log.Printf("carstatus-sim %s", version.String())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	sim := newSimulation(cfg, simOptions{
		PollInterval: *pollInterval,
		SerialPort:   *serialPort,
		Port:         speedsensor.PortOptions{BaudRate: *baudRate},
	})
	if err := sim.Run(ctx); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	samples := sim.recorder.Samples()
	log.Printf("run %s: %s", sim.hub.RunID(), telemetry.Summarize(samples))
	log.Printf("%d advisory events", len(sim.recorder.Events()))

	if *plotDir != "" {
		if err := writeOutputs(samples, *plotDir); err != nil {
			log.Fatalf("failed to write outputs: %v", err)
		}
	}
}

func writeOutputs(samples []telemetry.Sample, dir string) error {
	if err := telemetry.WritePlot(samples, filepath.Join(dir, "advisory.png")); err != nil {
		if errors.Is(err, telemetry.ErrNoSamples) {
			log.Print("no samples recorded, skipping outputs")
			return nil
		}
		return err
	}

	path := filepath.Join(dir, "advisory.html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := telemetry.WriteChart(samples, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote %s", dir)
	return nil
}
