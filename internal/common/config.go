package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once and passed by value.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Text       TextConfig       `yaml:"text"`
	Layout     LayoutConfig     `yaml:"layout"`
	Output     OutputConfig     `yaml:"output"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallback_model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"-"`
	Temperature   float32       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	Retries       int           `yaml:"retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// ClassifierConfig holds the panel-page thresholds.
type ClassifierConfig struct {
	MinImagesPerPage int   `yaml:"min_images_per_page"`
	MaxImagesPerPage int   `yaml:"max_images_per_page"`
	MinImageSize     int64 `yaml:"min_image_size"` // encoded bytes
}

// ExtractionConfig controls quadrant assignment and the raster fallback.
type ExtractionConfig struct {
	QuadrantTolerance float64 `yaml:"quadrant_tolerance"` // fraction of page width/height
	RenderDPI         float64 `yaml:"render_dpi"`
}

// TextConfig controls the text layout heuristics.
type TextConfig struct {
	HeaderMargin  float64 `yaml:"header_margin"` // fraction of page height
	FooterMargin  float64 `yaml:"footer_margin"`
	LineTolerance float64 `yaml:"line_tolerance"` // points
	IndentUnit    float64 `yaml:"indent_unit"`    // points
	HeadingRatio  float64 `yaml:"heading_ratio"`
}

// LayoutConfig is the panel document template.
type LayoutConfig struct {
	PageSize               string  `yaml:"page_size"`
	Orientation            string  `yaml:"orientation"`
	Margin                 float64 `yaml:"margin"`
	FontFamily             string  `yaml:"font_family"`
	TitleSize              float64 `yaml:"title_size"`
	BodySize               float64 `yaml:"body_size"`
	CaptionHeight          float64 `yaml:"caption_height"`
	GridGap                float64 `yaml:"grid_gap"` // fraction of grid width
	ImagePadding           float64 `yaml:"image_padding"`
	DescriptionBlockHeight float64 `yaml:"description_block_height"`
	Title                  string  `yaml:"title"`
	UnidadEjecutora        string  `yaml:"unidad_ejecutora"`
	Tramo                  string  `yaml:"tramo"`
	MesEjecutado           string  `yaml:"mes_ejecutado"`
}

// OutputConfig controls where artifacts land.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	UnifiedName string `yaml:"unified_name"`
	Clean       bool   `yaml:"clean"`
	WriteXLSX   bool   `yaml:"write_xlsx"`
}

// PipelineConfig controls run concurrency.
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// DatabaseConfig holds run-ledger configuration
type DatabaseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr     string        `yaml:"grpc_addr"`
	Inbox        string        `yaml:"inbox"`
	Debounce     time.Duration `yaml:"debounce"`
	RunTimeout   time.Duration `yaml:"run_timeout"`   // zero means unbounded
	DrainTimeout time.Duration `yaml:"drain_timeout"` // grace period for the in-flight run on shutdown
}

// DefaultConfig returns the configuration used when no file overrides a value.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Model:         "gpt-4o-mini",
			FallbackModel: "",
			BaseURL:       "https://api.openai.com/v1",
			Temperature:   0,
			MaxTokens:     400,
			CallTimeout:   45 * time.Second,
			Retries:       2,
			RetryBackoff:  time.Second,
		},
		Classifier: ClassifierConfig{
			MinImagesPerPage: 4,
			MaxImagesPerPage: 5,
			MinImageSize:     10000,
		},
		Extraction: ExtractionConfig{
			QuadrantTolerance: 0.02,
			RenderDPI:         150,
		},
		Text: TextConfig{
			HeaderMargin:  0.06,
			FooterMargin:  0.06,
			LineTolerance: 2.5,
			IndentUnit:    12,
			HeadingRatio:  1.2,
		},
		Layout: LayoutConfig{
			PageSize:               "A4",
			Orientation:            "L",
			Margin:                 20,
			FontFamily:             "Helvetica",
			TitleSize:              14,
			BodySize:               9,
			CaptionHeight:          12,
			GridGap:                0.015,
			ImagePadding:           5,
			DescriptionBlockHeight: 48,
			Title:                  "Anexo VI Panel fotográfico",
		},
		Output: OutputConfig{
			Dir:         "output",
			UnifiedName: "paneles_fotograficos_unificados.pdf",
			Clean:       false,
			WriteXLSX:   true,
		},
		Pipeline: PipelineConfig{
			Workers:     2,
			PageTimeout: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Enabled:         true,
			Driver:          "sqlite",
			DSN:             "file:panels.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:     ":8081",
			Inbox:        "inbox",
			Debounce:     2 * time.Second,
			RunTimeout:   time.Hour,
			DrainTimeout: 30 * time.Second,
		},
	}
}

// LoadConfig loads .env (if present), the YAML file at path (if non-empty) over the defaults,
// then environment overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, NewAppError("CONFIG_ERROR", "parse config file", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.CallTimeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.CallTimeout)
	c.Pipeline.Workers = getEnvAsInt("PANELS_WORKERS", c.Pipeline.Workers)
	c.Output.Dir = getEnv("PANELS_OUTPUT_DIR", c.Output.Dir)
	c.Database.Driver = getEnv("PANELS_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("PANELS_DB_URL", c.Database.DSN)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. The API key is checked by the commands
// that actually call the model.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("llm.model", c.LLM.Model, Required)
	v.Field("llm.max_tokens", c.LLM.MaxTokens, AtLeast(1))
	v.Field("llm.retries", c.LLM.Retries, AtLeast(0))
	v.Field("llm.call_timeout", c.LLM.CallTimeout, PositiveDuration)
	v.Field("classifier.min_images_per_page", c.Classifier.MinImagesPerPage, AtLeast(4))
	v.Field("classifier.max_images_per_page", c.Classifier.MaxImagesPerPage, AtLeast(c.Classifier.MinImagesPerPage))
	v.Field("classifier.min_image_size", int(c.Classifier.MinImageSize), AtLeast(0))
	v.Field("extraction.quadrant_tolerance", c.Extraction.QuadrantTolerance, Fraction)
	v.Field("text.header_margin", c.Text.HeaderMargin, Fraction)
	v.Field("text.footer_margin", c.Text.FooterMargin, Fraction)
	v.Field("layout.grid_gap", c.Layout.GridGap, Fraction)
	v.Field("output.dir", c.Output.Dir, Required)
	v.Field("output.unified_name", c.Output.UnifiedName, Required)
	v.Field("pipeline.workers", c.Pipeline.Workers, AtLeast(1))
	if c.Database.Enabled {
		v.Field("database.driver", c.Database.Driver, OneOf("sqlite", "postgres"))
		v.Field("database.dsn", c.Database.DSN, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// RequireAPIKey fails when no model credential is configured.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
