package openai

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config for an OpenAI-compatible chat completions service.
type Config struct {
	APIKey       string        // falls back to OPENAI_API_KEY
	BaseURL      string        // any OpenAI-compatible gateway
	Organization string        // optional OpenAI-Organization header
	Timeout      time.Duration // transport ceiling; call deadlines come from the context
}

// Client implements llm.Model over the chat/completions endpoint.
type Client struct {
	endpoint llm.Endpoint
	logger   *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	if cfg.Organization != "" {
		header.Set("OpenAI-Organization", cfg.Organization)
	}
	return &Client{
		endpoint: llm.Endpoint{
			URL:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
			Header: header,
			Client: &http.Client{Timeout: cfg.Timeout},
			Logger: logger,
		},
		logger: logger,
	}
}
