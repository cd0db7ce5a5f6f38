package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"geoagent/logging"
)

// Config holds all environment-driven settings.
type Config struct {
	// Model endpoint
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int

	// Validation
	ConfidenceThreshold float64

	// Storage
	DBPath          string
	VectorIndexPath string
	VectorDimension int

	// Upload boundary
	MaxImageSize   int64
	AllowedFormats []string
	UploadDir      string
	DataDir        string

	// Outer-layer budgets. MaxRetries drives the database init retry loop;
	// Timeout bounds the per-request context at the server layer. Neither is
	// enforced inside the inference engine.
	MaxRetries int
	Timeout    time.Duration

	// HTTP server
	Host string
	Port string

	// Ingestion
	IngestWatch bool
}

// Load reads configuration from the environment, an optional .env file, and
// an optional YAML overlay named by GEOAGENT_CONFIG.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		APIKey:              getenv("SILICON_FLOW_API_KEY", ""),
		BaseURL:             getenv("SILICON_FLOW_BASE_URL", "https://api.siliconflow.com/v1"),
		Model:               getenv("DEFAULT_MODEL", "qwen2.5-72b-instruct"),
		Temperature:         getenvFloat("MODEL_TEMPERATURE", 0.3),
		MaxTokens:           getenvInt("MAX_OUTPUT_TOKENS", 500),
		ConfidenceThreshold: getenvFloat("CONFIDENCE_THRESHOLD", 0.7),
		DBPath:              getenv("DB_PATH", "geolocation.db"),
		VectorIndexPath:     getenv("VECTOR_DB_PATH", "./data/vector_db"),
		VectorDimension:     clampInt(getenvInt("VECTOR_DIMENSION", 128), 8, 4096),
		MaxImageSize:        int64(getenvInt("MAX_IMAGE_SIZE", 5000000)),
		AllowedFormats:      splitList(getenv("ALLOWED_IMAGE_FORMATS", "JPEG,PNG,JPG,TIFF")),
		UploadDir:           getenv("UPLOAD_FOLDER", "./uploads"),
		DataDir:             getenv("DATA_FOLDER", "./data"),
		MaxRetries:          clampInt(getenvInt("MAX_RETRIES", 3), 1, 10),
		Timeout:             time.Duration(getenvInt("TIMEOUT", 30)) * time.Second,
		Host:                getenv("API_HOST", "0.0.0.0"),
		Port:                getenv("API_PORT", "8000"),
		IngestWatch:         getenvBool("INGEST_WATCH", false),
	}

	if overlay := os.Getenv("GEOAGENT_CONFIG"); overlay != "" {
		if err := applyYAMLOverlay(&cfg, overlay); err != nil {
			logging.LogWarning("cannot apply config overlay %s: %v", overlay, err)
		}
	}

	return cfg
}

// yamlOverlay mirrors the Config fields that may be overridden from a YAML
// file. Pointer fields so that absent keys leave the env value in place.
type yamlOverlay struct {
	APIKey              *string  `yaml:"api_key"`
	BaseURL             *string  `yaml:"base_url"`
	Model               *string  `yaml:"model"`
	Temperature         *float64 `yaml:"temperature"`
	MaxTokens           *int     `yaml:"max_tokens"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	DBPath              *string  `yaml:"db_path"`
	VectorIndexPath     *string  `yaml:"vector_db_path"`
	VectorDimension     *int     `yaml:"vector_dimension"`
	MaxImageSize        *int64   `yaml:"max_image_size"`
	AllowedFormats      []string `yaml:"allowed_image_formats"`
	UploadDir           *string  `yaml:"upload_folder"`
	DataDir             *string  `yaml:"data_folder"`
	MaxRetries          *int     `yaml:"max_retries"`
	TimeoutSeconds      *int     `yaml:"timeout_seconds"`
	Host                *string  `yaml:"api_host"`
	Port                *string  `yaml:"api_port"`
	IngestWatch         *bool    `yaml:"ingest_watch"`
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var o yamlOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return err
	}

	if o.APIKey != nil {
		cfg.APIKey = *o.APIKey
	}
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
	}
	if o.Model != nil {
		cfg.Model = *o.Model
	}
	if o.Temperature != nil {
		cfg.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		cfg.MaxTokens = *o.MaxTokens
	}
	if o.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *o.ConfidenceThreshold
	}
	if o.DBPath != nil {
		cfg.DBPath = *o.DBPath
	}
	if o.VectorIndexPath != nil {
		cfg.VectorIndexPath = *o.VectorIndexPath
	}
	if o.VectorDimension != nil {
		cfg.VectorDimension = clampInt(*o.VectorDimension, 8, 4096)
	}
	if o.MaxImageSize != nil {
		cfg.MaxImageSize = *o.MaxImageSize
	}
	if o.AllowedFormats != nil {
		cfg.AllowedFormats = o.AllowedFormats
	}
	if o.UploadDir != nil {
		cfg.UploadDir = *o.UploadDir
	}
	if o.DataDir != nil {
		cfg.DataDir = *o.DataDir
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = clampInt(*o.MaxRetries, 1, 10)
	}
	if o.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*o.TimeoutSeconds) * time.Second
	}
	if o.Host != nil {
		cfg.Host = *o.Host
	}
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.IngestWatch != nil {
		cfg.IngestWatch = *o.IngestWatch
	}

	return nil
}

// FormatAllowed reports whether ext (with or without a leading dot) is in
// the configured allowlist. The comparison is case-insensitive.
func (c Config) FormatAllowed(ext string) bool {
	ext = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, allowed := range c.AllowedFormats {
		if strings.ToUpper(strings.TrimSpace(allowed)) == ext {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
