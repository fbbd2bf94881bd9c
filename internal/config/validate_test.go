package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredMissingNameIsFatal(t *testing.T) {
	cfg := Default()
	cfg.ConnectionType = "WEBRTC"
	cfg.MasterMFID = "master-1"
	cfg.ServerURL = "https://example.com"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("empty name should be fatal")
	}
}

func TestValidateTieredInvalidModeIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Name = "cam-1"
	cfg.MasterMFID = "master-1"
	cfg.ServerURL = "https://example.com"
	cfg.Mode = "BOGUS"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid mode should be fatal")
	}
}

func TestValidateTieredInvalidConnectionTypeIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Name = "cam-1"
	cfg.MasterMFID = "master-1"
	cfg.ServerURL = "https://example.com"
	cfg.ConnectionType = "BLUETOOTH"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid connection_type should be fatal")
	}
}

func TestValidateTieredInvalidURLSchemeIsFatal(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ServerURL = "ftp://example.com"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid URL scheme should be fatal")
	}
}

func TestValidateTieredMissingURLIsFatal(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ServerURL = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("missing url should be fatal")
	}
}

func TestValidateTieredSerialBackendRequiresPort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.MotorBackend = "serial"
	cfg.SerialPort = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("serial backend without serial_port should be fatal")
	}
}

func TestValidateTieredRetentionPoliciesAreMutuallyExclusive(t *testing.T) {
	cfg := validBaseConfig()
	cfg.KeepLatestOnly = true
	cfg.MaxImages = 10
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("keep_latest_only and max_images together should be fatal")
	}
	found := false
	for _, err := range result.Fatals {
		if strings.Contains(err.Error(), "mutually exclusive") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected mutual-exclusivity error in fatals")
	}
}

func TestValidateTieredIoUThresholdClampingIsWarning(t *testing.T) {
	cfg := validBaseConfig()
	cfg.IoUThreshold = 1.5
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped iou_threshold should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for out-of-range iou_threshold")
	}
	if cfg.IoUThreshold != 0.3 {
		t.Fatalf("IoUThreshold = %v, want 0.3 (clamped)", cfg.IoUThreshold)
	}
}

func TestValidateTieredObjectTimeoutClampingIsWarning(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ObjectTimeoutMs = 1
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped object_timeout_ms should be warning: %v", result.Fatals)
	}
	if cfg.ObjectTimeoutMs != 100 {
		t.Fatalf("ObjectTimeoutMs = %d, want 100 (clamped)", cfg.ObjectTimeoutMs)
	}
}

func TestValidateTieredCropQualityClampingIsWarning(t *testing.T) {
	cfg := validBaseConfig()
	cfg.CropQuality = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped quality should be warning: %v", result.Fatals)
	}
	if cfg.CropQuality != 90 {
		t.Fatalf("CropQuality = %d, want 90 (clamped)", cfg.CropQuality)
	}
}

func TestValidateTieredUnknownCropFormatIsWarning(t *testing.T) {
	cfg := validBaseConfig()
	cfg.CropFormat = "bmp"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown format should not be fatal")
	}
	if cfg.CropFormat != "jpg" {
		t.Fatalf("CropFormat = %q, want jpg (defaulted)", cfg.CropFormat)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := validBaseConfig()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateTieredArchiveEnabledWithoutBucketDisables(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ArchiveEnabled = true
	cfg.ArchiveBackend = "s3"
	cfg.ArchiveS3Bucket = ""
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("missing archive bucket should be warning: %v", result.Fatals)
	}
	if cfg.ArchiveEnabled {
		t.Fatal("archival should be disabled when the backend is missing its bucket")
	}
}

func TestValidateTieredUnrecognizedArchiveBackendDisables(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ArchiveEnabled = true
	cfg.ArchiveBackend = "ftp"
	cfg.ValidateTiered()
	if cfg.ArchiveEnabled {
		t.Fatal("archival should be disabled for an unrecognized backend")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestValidConfigHasNoFatals(t *testing.T) {
	cfg := validBaseConfig()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}

// validBaseConfig returns a Default() config with the fields ValidateTiered
// requires non-empty filled in, so tests can flip exactly one field.
func validBaseConfig() *Config {
	cfg := Default()
	cfg.Name = "cam-1"
	cfg.MasterMFID = "master-1"
	cfg.ServerURL = "https://example.com"
	return cfg
}
