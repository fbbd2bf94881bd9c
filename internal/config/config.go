// Package config loads and validates camera-agent / analytics-pipeline
// configuration: Default/Load/Save plus a ValidateTiered fatal-vs-warning
// split.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds every recognized option for the camera agent and analytics
// pipeline, plus the ambient logging/audit/archive/frame-ipc settings this
// repository adds.
type Config struct {
	// Control plane connection.
	ServerURL string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	Insecure  bool   `mapstructure:"insecure"`

	// Optional mTLS client certificate for the control-plane connection.
	MTLSCertPEM string `mapstructure:"mtls_cert_pem"`
	MTLSKeyPEM  string `mapstructure:"mtls_key_pem"`

	// Camera identity (persisted once assigned by RegisterCamera).
	CameraID string `mapstructure:"camera_id"`

	// Registration descriptor.
	Name           string            `mapstructure:"name"`
	MasterMFID     string            `mapstructure:"master_mf_id"`
	Mode           string            `mapstructure:"mode"`
	ConnectionType string            `mapstructure:"connection_type"`
	Address        string            `mapstructure:"address"`
	Port           int               `mapstructure:"port"`
	Username       string            `mapstructure:"username"`
	Password       string            `mapstructure:"password"`
	Token          string            `mapstructure:"token"`
	SupportsPTZ    bool              `mapstructure:"supports_ptz"`
	Metadata       map[string]string `mapstructure:"metadata"`

	// PTZ behavior.
	VirtualPTZ  bool `mapstructure:"virtual_ptz"`
	SwapPanTilt bool `mapstructure:"ptz_correction_swap_pan_tilt"`
	InvertPan   bool `mapstructure:"ptz_correction_invert_pan"`
	InvertTilt  bool `mapstructure:"ptz_correction_invert_tilt"`

	// Motor backend selection: picks VirtualBackend vs SerialBackend.
	MotorBackend   string `mapstructure:"motor_backend"` // "virtual" | "serial"
	SerialPort     string `mapstructure:"serial_port"`
	SerialBaudRate int    `mapstructure:"serial_baud_rate"`

	// Analytics pipeline tuning.
	IoUThreshold    float64  `mapstructure:"iou_threshold"`
	ObjectTimeoutMs int      `mapstructure:"object_timeout_ms"`
	MinSize         int      `mapstructure:"min_size"`
	Padding         int      `mapstructure:"padding"`
	TargetClasses   []string `mapstructure:"target_classes"`
	KeepLatestOnly  bool     `mapstructure:"keep_latest_only"`
	MaxImages       int      `mapstructure:"max_images"`
	CropFormat      string   `mapstructure:"format"` // "jpg" | "png"
	CropQuality     int      `mapstructure:"quality"`
	CropOutputDir   string   `mapstructure:"crop_output_dir"`
	ManualCropDir   string   `mapstructure:"manual_crop_dir"`
	OverlayLabels   bool     `mapstructure:"overlay_labels"`

	// Frame source (WHEP pull) and frame IPC.
	WHEPEndpoint     string `mapstructure:"whep_endpoint"`
	FrameIPCSlotName string `mapstructure:"frame_ipc_slot_name"`
	FrameIPCRetryMs  int    `mapstructure:"frame_ipc_retry_ms"`

	// Manual crop trigger channel.
	ManualTriggerAddr string `mapstructure:"manual_trigger_addr"`

	// Crop archival.
	ArchiveEnabled         bool   `mapstructure:"archive_enabled"`
	ArchiveBackend         string `mapstructure:"archive_backend"` // "local" | "s3" | "azure" | "gcs" | "b2"
	ArchiveLocalPath       string `mapstructure:"archive_local_path"`
	ArchiveS3Bucket        string `mapstructure:"archive_s3_bucket"`
	ArchiveS3Region        string `mapstructure:"archive_s3_region"`
	ArchiveAzureContainer  string `mapstructure:"archive_azure_container"`
	ArchiveAzureAccountURL string `mapstructure:"archive_azure_account_url"`
	ArchiveAzureAccountKey string `mapstructure:"archive_azure_account_key"`
	ArchiveGCSBucket       string `mapstructure:"archive_gcs_bucket"`
	ArchiveB2Bucket        string `mapstructure:"archive_b2_bucket"`
	ArchiveB2KeyID         string `mapstructure:"archive_b2_key_id"`
	ArchiveB2Key           string `mapstructure:"archive_b2_key"`

	// Logging configuration.
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"`
	LogFile          string `mapstructure:"log_file"`
	LogMaxSizeMB     int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups    int    `mapstructure:"log_max_backups"`
	LogShippingLevel string `mapstructure:"log_shipping_level"`

	// Audit configuration.
	AuditEnabled    bool `mapstructure:"audit_enabled"`
	AuditMaxSizeMB  int  `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int  `mapstructure:"audit_max_backups"`
}

// Default returns a Config seeded with safe defaults.
func Default() *Config {
	return &Config{
		Mode:           "AUTONOMOUS",
		ConnectionType: "WEBRTC",
		MotorBackend:   "virtual",
		SerialBaudRate: 115200,

		IoUThreshold:    0.3,
		ObjectTimeoutMs: 2000,
		MinSize:         20,
		Padding:         10,
		CropFormat:      "jpg",
		CropQuality:     90,
		CropOutputDir:   "crops",
		ManualCropDir:   "crops/manual",
		OverlayLabels:   true,

		FrameIPCSlotName: "webrtc_motion_frame",
		FrameIPCRetryMs:  1000,

		ManualTriggerAddr: "127.0.0.1:8787",

		ArchiveBackend:   "local",
		ArchiveLocalPath: "archive",

		LogLevel:         "info",
		LogFormat:        "text",
		LogMaxSizeMB:     50,
		LogMaxBackups:    3,
		LogShippingLevel: "warn",

		AuditEnabled:    true,
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,
	}
}

// Load reads configuration from cfgFile (or the platform default search
// path), applies env overrides under the CAMAGENT_ prefix, and validates
// it. Fatal validation errors abort with a non-nil error so the process
// fails fast at startup rather than running in a known-broken state.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("camera-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CAMAGENT")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w)
	}
	if result.HasFatals() {
		for _, f := range result.Fatals {
			log.Error("config validation fatal", "error", f)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// Save persists cfg to its default location.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo persists cfg as YAML to cfgFile (or the default location if
// empty), chmod'd owner-only since it can carry credentials.
func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("url", cfg.ServerURL)
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("camera_id", cfg.CameraID)
	viper.Set("name", cfg.Name)
	viper.Set("master_mf_id", cfg.MasterMFID)
	viper.Set("mode", cfg.Mode)
	viper.Set("connection_type", cfg.ConnectionType)
	viper.Set("supports_ptz", cfg.SupportsPTZ)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "camera-agent.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "CameraAgent", "data")
	case "darwin":
		return "/Library/Application Support/CameraAgent/data"
	default:
		return "/var/lib/camera-agent"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "CameraAgent")
	case "darwin":
		return "/Library/Application Support/CameraAgent"
	default:
		return "/etc/camera-agent"
	}
}
