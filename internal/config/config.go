package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// OCR engines
	EngineTesseract = "tesseract"
	EngineVertex    = "vertex"

	// Default values
	DefaultObjectPrefix     = "pps"
	DefaultCollection       = "pps_verifications"
	DefaultRegion           = "us-central1"
	DefaultOCRLanguages     = "fra+eng"
	DefaultSegmentationMode = "6"
	DefaultRasterScale      = 2.0
	DefaultMaxFileSize      = 10 * 1024 * 1024 // 10MB
	DefaultUploadMaxRetries = 4
	DefaultListenAddr       = ":8080"
	DefaultLogLevel         = "info"
)

const (
	maxRasterScale      = 8.0
	maxSegmentationMode = 13
)

// Configuration keys. Each is also read from the upper-cased environment variable.
const (
	KeyProjectID           = "project_id"
	KeyBucket              = "pps_bucket"
	KeyObjectPrefix        = "pps_object_prefix"
	KeyPublicBaseURL       = "public_base_url"
	KeyCollection          = "firestore_collection"
	KeyWorkflowID          = "workflow_id"
	KeyWorkflowLocation    = "workflow_location"
	KeyVertexRegion        = "vertex_ai_region"
	KeyVertexOCRModel      = "vertex_ocr_model"
	KeyOCREngine           = "ocr_engine"
	KeyOCRLanguages        = "ocr_languages"
	KeyOCRSegmentationMode = "ocr_segmentation_mode"
	KeyRasterScale         = "raster_scale"
	KeyMaxFileSize         = "max_file_size"
	KeyPreferTextLayer     = "prefer_text_layer"
	KeyUploadMaxRetries    = "upload_max_retries"
	KeyListenAddr          = "listen_addr"
	KeyAllowedOrigins      = "allowed_origins"
	KeyLogLevel            = "log_level"
)

// Config holds all configuration for the verification service.
type Config struct {
	// GCP
	ProjectID           string
	Bucket              string
	ObjectPrefix        string
	PublicBaseURL       string
	FirestoreCollection string // empty disables attempt records
	WorkflowID          string // empty disables the post-acceptance workflow
	WorkflowLocation    string
	VertexAIRegion      string
	VertexOCRModel      string

	// Recognition
	OCREngine           string
	OCRLanguages        string
	OCRSegmentationMode string
	RasterScale         float64
	PreferTextLayer     bool

	// Limits
	MaxFileSize      int64
	UploadMaxRetries int

	// HTTP
	ListenAddr     string
	AllowedOrigins []string

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyObjectPrefix, DefaultObjectPrefix)
	v.SetDefault(KeyCollection, DefaultCollection)
	v.SetDefault(KeyWorkflowLocation, DefaultRegion)
	v.SetDefault(KeyVertexRegion, DefaultRegion)
	v.SetDefault(KeyOCREngine, EngineTesseract)
	v.SetDefault(KeyOCRLanguages, DefaultOCRLanguages)
	v.SetDefault(KeyOCRSegmentationMode, DefaultSegmentationMode)
	v.SetDefault(KeyRasterScale, DefaultRasterScale)
	v.SetDefault(KeyMaxFileSize, DefaultMaxFileSize)
	v.SetDefault(KeyPreferTextLayer, false)
	v.SetDefault(KeyUploadMaxRetries, DefaultUploadMaxRetries)
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads the configuration from v, with environment variables and
// defaults layered underneath anything already bound to v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		ProjectID:           v.GetString(KeyProjectID),
		Bucket:              v.GetString(KeyBucket),
		ObjectPrefix:        strings.Trim(v.GetString(KeyObjectPrefix), "/"),
		PublicBaseURL:       v.GetString(KeyPublicBaseURL),
		FirestoreCollection: v.GetString(KeyCollection),
		WorkflowID:          v.GetString(KeyWorkflowID),
		WorkflowLocation:    v.GetString(KeyWorkflowLocation),
		VertexAIRegion:      v.GetString(KeyVertexRegion),
		VertexOCRModel:      v.GetString(KeyVertexOCRModel),
		OCREngine:           strings.ToLower(v.GetString(KeyOCREngine)),
		OCRLanguages:        v.GetString(KeyOCRLanguages),
		OCRSegmentationMode: v.GetString(KeyOCRSegmentationMode),
		RasterScale:         v.GetFloat64(KeyRasterScale),
		PreferTextLayer:     v.GetBool(KeyPreferTextLayer),
		MaxFileSize:         v.GetInt64(KeyMaxFileSize),
		UploadMaxRetries:    v.GetInt(KeyUploadMaxRetries),
		ListenAddr:          v.GetString(KeyListenAddr),
		AllowedOrigins:      splitList(v.GetString(KeyAllowedOrigins)),
		LogLevel:            v.GetString(KeyLogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// BindFlags defines command line flags on fs and binds them to v under the
// same keys the environment uses.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("ocr-engine", EngineTesseract, "OCR engine: 'tesseract' or 'vertex'")
	fs.String("ocr-languages", DefaultOCRLanguages, "Tesseract language string")
	fs.String("ocr-psm", DefaultSegmentationMode, "Tesseract page segmentation mode")
	fs.Float64("scale", DefaultRasterScale, "PDF render scale")
	fs.Bool("prefer-text-layer", false, "Use the PDF text layer when it is present instead of OCR")
	fs.Int64("max-file-size", DefaultMaxFileSize, "Maximum document size in bytes")
	fs.String("project", "", "GCP project ID (vertex engine)")
	fs.String("region", DefaultRegion, "Vertex AI region (vertex engine)")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")

	bindings := map[string]string{
		KeyOCREngine:           "ocr-engine",
		KeyOCRLanguages:        "ocr-languages",
		KeyOCRSegmentationMode: "ocr-psm",
		KeyRasterScale:         "scale",
		KeyPreferTextLayer:     "prefer-text-layer",
		KeyMaxFileSize:         "max-file-size",
		KeyProjectID:           "project",
		KeyVertexRegion:        "region",
		KeyLogLevel:            "log-level",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineTesseract:
	case EngineVertex:
		if c.ProjectID == "" {
			return errors.New("the vertex OCR engine requires PROJECT_ID")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be either '%s' or '%s', got %q", EngineTesseract, EngineVertex, c.OCREngine)
	}

	psm, err := strconv.Atoi(c.OCRSegmentationMode)
	if err != nil || psm < 0 || psm > maxSegmentationMode {
		return fmt.Errorf("OCR_SEGMENTATION_MODE must be a number between 0 and %d, got %q", maxSegmentationMode, c.OCRSegmentationMode)
	}
	if strings.TrimSpace(c.OCRLanguages) == "" {
		return errors.New("OCR_LANGUAGES cannot be empty")
	}
	if c.RasterScale <= 0 || c.RasterScale > maxRasterScale {
		return fmt.Errorf("RASTER_SCALE must be in (0, %g], got %g", maxRasterScale, c.RasterScale)
	}
	if c.MaxFileSize <= 0 {
		return errors.New("MAX_FILE_SIZE must be positive")
	}
	if c.UploadMaxRetries < 1 {
		return errors.New("UPLOAD_MAX_RETRIES must be at least 1")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

// RequireCloud checks the settings the deployed functions cannot run without.
func (c *Config) RequireCloud() error {
	if c.ProjectID == "" {
		return errors.New("PROJECT_ID environment variable must be set")
	}
	if c.Bucket == "" {
		return errors.New("PPS_BUCKET environment variable must be set")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
