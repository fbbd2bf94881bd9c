package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validModes = map[string]bool{
	"AUTONOMOUS": true,
	"LIGHTWEIGHT": true,
}

var validConnectionTypes = map[string]bool{
	"ONVIF":      true,
	"NDI":        true,
	"USB_SERIAL": true,
	"WEBRTC":     true,
	"RTSP":       true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

var validCropFormats = map[string]bool{
	"jpg": true,
	"png": true,
}

// ValidationResult splits validation findings into fatal (block startup
// with a non-zero exit code) and warning (logged, startup continues)
// tiers.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal errors were found.
func (r *ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r *ValidationResult) fatal(format string, args ...any) {
	r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
}

// ValidateTiered checks the config for invalid values, classifying each
// finding as fatal or a clamp-and-warn. Dangerous zero/out-of-range values
// that would destabilize the executor or tracker are clamped in place so
// a borderline config does not crash a long-running agent.
func (c *Config) ValidateTiered() *ValidationResult {
	result := &ValidationResult{}

	// Registration descriptor invariants: name non-empty, master_mf_id
	// non-empty, exactly one connection type.
	if strings.TrimSpace(c.Name) == "" {
		result.fatal("name is required")
	}
	if strings.TrimSpace(c.MasterMFID) == "" {
		result.fatal("master_mf_id is required")
	}
	if c.Mode != "" && !validModes[c.Mode] {
		result.fatal("mode %q is not valid (use AUTONOMOUS or LIGHTWEIGHT)", c.Mode)
	}
	if c.ConnectionType != "" && !validConnectionTypes[c.ConnectionType] {
		result.fatal("connection_type %q is not valid (use ONVIF, NDI, USB_SERIAL, WEBRTC, or RTSP)", c.ConnectionType)
	}
	if c.ConnectionType == "" {
		result.fatal("connection_type is required")
	}

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			result.fatal("url %q is not a valid URL: %w", c.ServerURL, err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			result.fatal("url scheme must be http or https, got %q", u.Scheme)
		}
	} else {
		result.fatal("url is required")
	}

	if c.MotorBackend != "" && c.MotorBackend != "virtual" && c.MotorBackend != "serial" {
		result.fatal("motor_backend %q is not valid (use virtual or serial)", c.MotorBackend)
	}
	if c.MotorBackend == "serial" && strings.TrimSpace(c.SerialPort) == "" {
		result.fatal("serial_port is required when motor_backend is serial")
	}

	// Retention policy exclusivity is enforced here rather than duplicated
	// inside the cropper, which trusts this precondition.
	if c.KeepLatestOnly && c.MaxImages > 0 {
		result.fatal("keep_latest_only and max_images are mutually exclusive retention policies; configure at most one")
	}

	// Clamp IoU threshold and timeouts to safe ranges.
	if c.IoUThreshold <= 0 || c.IoUThreshold >= 1 {
		result.warn("iou_threshold %v is out of (0,1), clamping to default 0.3", c.IoUThreshold)
		c.IoUThreshold = 0.3
	}
	if c.ObjectTimeoutMs < 100 {
		result.warn("object_timeout_ms %d is below minimum 100, clamping", c.ObjectTimeoutMs)
		c.ObjectTimeoutMs = 100
	}
	if c.MinSize < 0 {
		result.warn("min_size %d is negative, clamping to 0", c.MinSize)
		c.MinSize = 0
	}
	if c.Padding < 0 {
		result.warn("padding %d is negative, clamping to 0", c.Padding)
		c.Padding = 0
	}
	if c.CropQuality < 1 || c.CropQuality > 100 {
		result.warn("quality %d is out of [1,100], clamping to 90", c.CropQuality)
		c.CropQuality = 90
	}
	if c.CropFormat != "" && !validCropFormats[strings.ToLower(c.CropFormat)] {
		result.warn("format %q is not valid (use jpg or png), defaulting to jpg", c.CropFormat)
		c.CropFormat = "jpg"
	}
	if c.MaxImages < 0 {
		result.warn("max_images %d is negative, treating as unlimited (0)", c.MaxImages)
		c.MaxImages = 0
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.warn("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.warn("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	if c.ArchiveEnabled {
		switch c.ArchiveBackend {
		case "local":
			if strings.TrimSpace(c.ArchiveLocalPath) == "" {
				result.warn("archive_local_path is empty, archival disabled")
				c.ArchiveEnabled = false
			}
		case "s3":
			if strings.TrimSpace(c.ArchiveS3Bucket) == "" {
				result.warn("archive_s3_bucket is empty, archival disabled")
				c.ArchiveEnabled = false
			}
		case "azure":
			if strings.TrimSpace(c.ArchiveAzureContainer) == "" {
				result.warn("archive_azure_container is empty, archival disabled")
				c.ArchiveEnabled = false
			}
		case "gcs":
			if strings.TrimSpace(c.ArchiveGCSBucket) == "" {
				result.warn("archive_gcs_bucket is empty, archival disabled")
				c.ArchiveEnabled = false
			}
		case "b2":
			if strings.TrimSpace(c.ArchiveB2Bucket) == "" {
				result.warn("archive_b2_bucket is empty, archival disabled")
				c.ArchiveEnabled = false
			}
		default:
			result.warn("archive_backend %q is not recognized, archival disabled", c.ArchiveBackend)
			c.ArchiveEnabled = false
		}
	}

	return result
}
