// Command analytics-publisher runs the inbound half of the analytics
// pipeline: pull frames from the configured WHEP source, run motion
// detection and the (pluggable) object detector, and publish frame +
// detections to the frame IPC slot.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/agent/internal/analyticspipeline"
	"github.com/breeze-rmm/agent/internal/config"
	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/motion"
)

var version = "0.1.0"
var cfgFile string
var log = logging.L("main")

var rootCmd = &cobra.Command{Use: "analytics-publisher", Short: "Pulls frames, runs detection, publishes to frame IPC"}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the publisher until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		runPublisher()
	},
}

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("analytics-publisher v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the publisher's configured frame source and IPC slot",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/camera-agent/camera-agent.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: Not configured")
		return
	}
	if cfg.WHEPEndpoint == "" {
		fmt.Println("Status: Not configured (whep_endpoint unset)")
		return
	}
	fmt.Println("Status: Configured")
	fmt.Printf("WHEP endpoint: %s\n", cfg.WHEPEndpoint)
	fmt.Printf("Frame IPC slot: %s\n", cfg.FrameIPCSlotName)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPublisher() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		if rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups); err == nil {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")

	if cfg.ServerURL != "" && cfg.CameraID != "" {
		logging.InitShipper(logging.ShipperConfig{
			ServerURL:   cfg.ServerURL,
			CameraID:    cfg.CameraID,
			AuthToken:   cfg.AuthToken,
			BinaryLabel: "analytics-publisher",
			MinLevel:    cfg.LogShippingLevel,
		})
		defer logging.StopShipper()
	}

	if cfg.WHEPEndpoint == "" {
		fmt.Fprintln(os.Stderr, "whep_endpoint is required")
		os.Exit(1)
	}

	motionD := motion.New()
	defer motionD.Close()

	// No real inference engine is wired here. Operators running this
	// binary against a live deployment substitute a StubDetector-compatible
	// adapter for their own YOLO engine.
	detector := detection.StubDetector{}

	pub, err := analyticspipeline.NewPublisher(analyticspipeline.PublisherParams{
		WHEPEndpoint: cfg.WHEPEndpoint,
		Insecure:     cfg.Insecure,
		FrameIPCSlot: cfg.FrameIPCSlotName,
		Detection: detection.Params{
			ConfidenceThreshold: 0.5,
			ImageSize:           640,
			MaxDetections:       100,
		},
		MotionGate: true,
	}, detector, motionD)
	if err != nil {
		log.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}
	defer pub.Close()
	pub.Health = health.NewMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("publisher stopped unexpectedly", "error", err)
		}
	}()

	go reportHealth(ctx, pub.Health)

	log.Info("analytics publisher running", "whepEndpoint", cfg.WHEPEndpoint, "slot", cfg.FrameIPCSlotName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down analytics publisher")
	cancel()
}

// reportHealth periodically logs the worst component status so operators
// tailing logs see frame-source/detector degradation without a metrics
// endpoint.
func reportHealth(ctx context.Context, mon *health.Monitor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if overall := mon.Overall(); overall != health.Healthy {
				log.Warn("publisher health degraded", "status", string(overall), "checks", mon.All())
			}
		}
	}
}
