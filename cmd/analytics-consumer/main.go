// Command analytics-consumer runs the outbound half of the analytics
// pipeline: attach to the frame IPC slot, track objects across frames, and
// crop every object on first appearance or manual request.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/agent/internal/analyticspipeline"
	"github.com/breeze-rmm/agent/internal/archive"
	"github.com/breeze-rmm/agent/internal/audit"
	"github.com/breeze-rmm/agent/internal/config"
	"github.com/breeze-rmm/agent/internal/cropper"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/logging"
)

var version = "0.1.0"
var cfgFile string
var log = logging.L("main")

var rootCmd = &cobra.Command{Use: "analytics-consumer", Short: "Tracks objects and crops new detections"}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the consumer until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		runConsumer()
	},
}

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("analytics-consumer v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the consumer's configured frame source and crop output",
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
	if cfg.FrameIPCSlotName == "" {
		fmt.Println("Status: Not configured (frame_ipc_slot unset)")
		return
	}
	fmt.Println("Status: Configured")
	fmt.Printf("Frame IPC slot: %s\n", cfg.FrameIPCSlotName)
	fmt.Printf("Crop output dir: %s\n", cfg.CropOutputDir)
	fmt.Printf("Archive enabled: %v\n", cfg.ArchiveEnabled)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runConsumer() {
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
			BinaryLabel: "analytics-consumer",
			MinLevel:    cfg.LogShippingLevel,
		})
		defer logging.StopShipper()
	}

	auditLog, err := audit.NewLogger(cfg)
	if err != nil {
		log.Error("failed to open audit log, continuing without it", "error", err)
	}
	defer auditLog.Close()

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled {
		backend, ok := archive.NewBackend(cfg)
		if !ok {
			log.Warn("archive enabled but backend could not be constructed, archival disabled", "backend", cfg.ArchiveBackend)
		} else {
			archiver = archive.NewArchiver(backend, auditLog)
			defer archiver.Close(context.Background())
		}
	}

	targetClasses := make(map[string]bool, len(cfg.TargetClasses))
	for _, c := range cfg.TargetClasses {
		targetClasses[strings.ToLower(c)] = true
	}

	crop := cropper.New(cropper.Params{
		OutputDir:      cfg.CropOutputDir,
		ManualCropDir:  cfg.ManualCropDir,
		Format:         cfg.CropFormat,
		Quality:        cfg.CropQuality,
		Padding:        cfg.Padding,
		MinSize:        cfg.MinSize,
		TargetClasses:  targetClasses,
		KeepLatestOnly: cfg.KeepLatestOnly,
		MaxImages:      cfg.MaxImages,
		OverlayLabels:  cfg.OverlayLabels,
	}, archiver, auditLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var trigger *analyticspipeline.ManualTrigger
	if cfg.ManualTriggerAddr != "" {
		trigger = analyticspipeline.NewManualTrigger(cfg.ManualTriggerAddr)
		trigger.Start()
		defer trigger.Stop()
	}

	consumer, err := analyticspipeline.NewConsumer(ctx, analyticspipeline.ConsumerParams{
		FrameIPCSlot:  cfg.FrameIPCSlotName,
		AttachRetry:   time.Duration(cfg.FrameIPCRetryMs) * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		IoUThreshold:  cfg.IoUThreshold,
		ObjectTimeout: time.Duration(cfg.ObjectTimeoutMs) * time.Millisecond,
	}, crop, trigger)
	if err != nil {
		log.Error("failed to attach to frame ipc slot", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	consumer.Health = health.NewMonitor()

	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("consumer stopped unexpectedly", "error", err)
		}
	}()

	go reportHealth(ctx, consumer.Health)

	log.Info("analytics consumer running", "slot", cfg.FrameIPCSlotName, "outputDir", cfg.CropOutputDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down analytics consumer")
	cancel()
}

// reportHealth periodically logs the worst component status (see the
// analytics-publisher counterpart).
func reportHealth(ctx context.Context, mon *health.Monitor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if overall := mon.Overall(); overall != health.Healthy {
				log.Warn("consumer health degraded", "status", string(overall), "checks", mon.All())
			}
		}
	}
}
