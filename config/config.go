package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	DisplayName      string
	Shape            string
	Ocpus            float32
	MemoryInGBs      float32
	SSHKeyFile       string
	FailLogPath      string
	CompartmentID    string
	ImageID          string
	OCIProfile       string
	MetricsPort      int
	LogLevel         string
	TransientBackoff time.Duration
	RejectedBackoff  time.Duration
	ResultTopic      string
	GoogleProjectID  string
	CredentialsFile  string
}

func Load() *Config {
	cfg := &Config{
		DisplayName:      strings.TrimSpace(getEnv("GRABBER_DISPLAY_NAME", "Armz0")),
		Shape:            strings.TrimSpace(getEnv("GRABBER_SHAPE", "VM.Standard.A1.Flex")),
		Ocpus:            getEnvFloat("GRABBER_OCPUS", 4),
		MemoryInGBs:      getEnvFloat("GRABBER_MEMORY_GBS", 24),
		SSHKeyFile:       expandHome(strings.TrimSpace(getEnv("GRABBER_SSH_KEY_FILE", "~/.ssh/id_rsa.pub"))),
		FailLogPath:      strings.TrimSpace(getEnv("GRABBER_FAIL_LOG", "faillog.txt")),
		CompartmentID:    strings.TrimSpace(os.Getenv("GRABBER_COMPARTMENT_ID")),
		ImageID:          strings.TrimSpace(os.Getenv("GRABBER_IMAGE_ID")),
		OCIProfile:       strings.TrimSpace(os.Getenv("GRABBER_OCI_PROFILE")),
		MetricsPort:      getEnvInt("GRABBER_METRICS_PORT", 8080),
		LogLevel:         strings.TrimSpace(getEnv("GRABBER_LOG_LEVEL", "info")),
		TransientBackoff: getEnvDuration("GRABBER_TRANSIENT_BACKOFF", 20*time.Second),
		RejectedBackoff:  getEnvDuration("GRABBER_REJECTED_BACKOFF", 60*time.Second),
		ResultTopic:      strings.TrimSpace(os.Getenv("GRABBER_RESULT_TOPIC")),
		CredentialsFile:  strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), os.Getenv("GRABBER_GSA_CREDENTIALS"))),
	}

	// Notification is optional; only resolve a Google project when a result
	// topic was asked for.
	if cfg.ResultTopic != "" {
		cfg.GoogleProjectID = getGoogleProjectID(cfg.CredentialsFile, strings.TrimSpace(os.Getenv("GRABBER_PUBSUB_PROJECT_ID")))
		if cfg.GoogleProjectID == "" {
			log.Warn().Msg("result topic set but Google project ID not resolved; set GOOGLE_APPLICATION_CREDENTIALS or GRABBER_PUBSUB_PROJECT_ID")
		}
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.MetricsPort))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"displayName":         c.DisplayName,
		"shape":               c.Shape,
		"ocpus":               c.Ocpus,
		"memoryInGBs":         c.MemoryInGBs,
		"sshKeyFile":          c.SSHKeyFile,
		"failLogPath":         c.FailLogPath,
		"compartmentSet":      c.CompartmentID != "",
		"imageOverride":       c.ImageID != "",
		"ociProfile":          c.OCIProfile,
		"metricsPort":         c.MetricsPort,
		"logLevel":            c.LogLevel,
		"transientBackoff":    c.TransientBackoff.String(),
		"rejectedBackoff":     c.RejectedBackoff.String(),
		"resultTopic":         c.ResultTopic,
		"projectID":           c.GoogleProjectID,
		"credentialsProvided": c.CredentialsFile != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid int in environment; using default")
	}
	return def
}

func getEnvFloat(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		fv, err := strconv.ParseFloat(v, 32)
		if err == nil {
			return float32(fv)
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid float in environment; using default")
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		dv, err := time.ParseDuration(v)
		if err == nil && dv > 0 {
			return dv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration in environment; using default")
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// expandHome resolves a leading ~/ against the current user's home dir.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

func projectIDFromCredentials(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", err
	}
	return x.ProjectID, nil
}

func getGoogleProjectID(credsFile string, explicit string) string {
	// 1) Prefer GOOGLE_APPLICATION_CREDENTIALS if set
	if p := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); p != "" {
		log.Info().Str("credsFile", p).Msg("GOOGLE_APPLICATION_CREDENTIALS is set; extracting project_id from credentials file")
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			return strings.TrimSpace(pid)
		}
		log.Warn().Str("credsFile", p).Msg("project_id not found in credentials file or unreadable")
	}

	// 2) Explicit override from grabber env
	if explicit != "" {
		log.Info().Str("projectID", explicit).Msg("using GRABBER_PUBSUB_PROJECT_ID for Google project")
		return explicit
	}

	// 3) Common Google envs
	if v := firstNonEmpty(os.Getenv("GOOGLE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT")); strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		log.Info().Str("projectID", v).Msg("using Google project from environment")
		return v
	}

	// 4) Fallback to provided credentials file path (GRABBER_GSA_CREDENTIALS)
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("using project_id from provided credentials file")
			return strings.TrimSpace(pid)
		}
	}
	return ""
}
