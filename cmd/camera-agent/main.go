// Command camera-agent runs the per-camera agent: registration, then the
// PTZ polling or heartbeat loop.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/agent/internal/agent"
	"github.com/breeze-rmm/agent/internal/audit"
	"github.com/breeze-rmm/agent/internal/config"
	"github.com/breeze-rmm/agent/internal/controlclient"
	"github.com/breeze-rmm/agent/internal/correction"
	"github.com/breeze-rmm/agent/internal/health"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/motor"
	"github.com/breeze-rmm/agent/internal/mtls"
	"github.com/breeze-rmm/agent/internal/secmem"
)

var version = "0.1.0"
var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "camera-agent",
	Short: "Per-camera registration and PTZ control agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register with the control plane and run the agent loop",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("camera-agent v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check this agent's registration status",
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
	if cfg.CameraID == "" {
		fmt.Println("Status: Not registered")
		return
	}
	fmt.Println("Status: Registered")
	fmt.Printf("Camera ID: %s\n", cfg.CameraID)
	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Printf("Mode: %s\n", cfg.Mode)
	fmt.Printf("Supports PTZ: %v\n", cfg.SupportsPTZ)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ServerURL == "" {
		fmt.Fprintln(os.Stderr, "url is required (set it in config or CAMAGENT_URL)")
		os.Exit(1)
	}

	initLogging(cfg)

	secureToken := secmem.NewSecureString(cfg.AuthToken)
	cfg.AuthToken = ""
	defer secureToken.Zero()
	defer logging.StopShipper()

	var tlsCfg *tls.Config
	if cfg.MTLSCertPEM != "" {
		c, err := mtls.BuildTLSConfig(cfg.MTLSCertPEM, cfg.MTLSKeyPEM)
		if err != nil {
			log.Error("failed to load mTLS client certificate, continuing without it", "error", err)
		} else {
			tlsCfg = c
		}
	}

	auditLog, err := audit.NewLogger(cfg)
	if err != nil {
		log.Error("failed to open audit log, continuing without it", "error", err)
	}
	defer auditLog.Close()

	client := controlclient.New(cfg.ServerURL, secureToken.Reveal(), tlsCfg)

	descriptor := agent.Descriptor{
		Name:       cfg.Name,
		Mode:       cfg.Mode,
		MasterMFID: cfg.MasterMFID,
		Connection: controlclient.Connection{
			Type:    cfg.ConnectionType,
			Address: cfg.Address,
			Port:    cfg.Port,
			Credentials: &controlclient.Credentials{
				Username: cfg.Username,
				Password: cfg.Password,
				Token:    cfg.Token,
			},
		},
		Capabilities: controlclient.Capabilities{SupportsPTZ: cfg.SupportsPTZ},
		Metadata:     cfg.Metadata,
	}

	corr := correction.Correction{
		SwapPanTilt: cfg.SwapPanTilt,
		InvertPan:   cfg.InvertPan,
		InvertTilt:  cfg.InvertTilt,
	}

	mon := health.NewMonitor()

	var backend motor.Backend
	switch cfg.MotorBackend {
	case "serial":
		backend = motor.NewSerialBackend(cfg.SerialPort, cfg.SerialBaudRate)
	default:
		backend = motor.NewVirtualBackend()
	}
	if err := backend.Connect(context.Background()); err != nil {
		log.Error("motor backend connect failed, continuing with degraded PTZ", "error", err)
		mon.Update("motor", health.Unhealthy, err.Error())
	} else {
		mon.Update("motor", health.Healthy, "")
	}
	defer backend.Disconnect()

	a := agent.New(client, descriptor, corr, backend, cfg.VirtualPTZ, auditLog)
	a.Health = mon

	ctx := context.Background()
	if err := a.Register(ctx); err != nil {
		log.Error("registration failed", "error", err)
		os.Exit(1)
	}
	cfg.CameraID = a.CameraID()
	if err := config.SaveTo(cfg, cfgFile); err != nil {
		log.Warn("failed to persist assigned camera id", "error", err)
	}

	logging.InitShipper(logging.ShipperConfig{
		ServerURL:   cfg.ServerURL,
		CameraID:    cfg.CameraID,
		AuthToken:   secureToken.Reveal(),
		BinaryLabel: "camera-agent",
		MinLevel:    cfg.LogShippingLevel,
	})

	go a.Run(ctx)
	go reportHealth(ctx, mon)
	log.Info("camera agent running", "cameraId", cfg.CameraID, "supportsPtz", cfg.SupportsPTZ)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down camera agent")
	a.Stop()
	a.Wait()

	unregCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Unregister(unregCtx); err != nil {
		log.Warn("deregistration failed", "error", err)
	}
	log.Info("camera agent stopped")
}

// reportHealth periodically logs the worst component status so operators
// tailing logs see control-plane/motor degradation without a metrics
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
				log.Warn("camera agent health degraded", "status", string(overall), "checks", mon.All())
			}
		}
	}
}
