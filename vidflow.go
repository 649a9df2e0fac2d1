package vidflow

import (
	"strings"

	vhttp "vidflow/http"
	"vidflow/internal/config"
	"vidflow/internal/storage"
	"vidflow/media"
)

// NewHTTPClient returns a backend HTTP client with default retry, rate limit
// and circuit breaker settings.
func NewHTTPClient(baseURL string, tokens vhttp.TokenSource) *vhttp.Client {
	cfg := vhttp.DefaultConfig()
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.Tokens = tokens
	return vhttp.New(cfg)
}

// NewClient returns a workflow client for the backend at baseURL.
func NewClient(baseURL string, tokens vhttp.TokenSource) *media.Client {
	return media.NewClient(NewHTTPClient(baseURL, tokens), media.Options{})
}

// Setup is a client stack built from the vidflow configuration.
type Setup struct {
	HTTP    *vhttp.Client
	Client  *media.Client
	Catalog *media.Catalog
	Auth    *media.Auth
	history *storage.JSONStore
}

// NewFromConfig loads the configuration the way the vidflow command does and
// builds a client stack with download history enabled. Call Close when done.
func NewFromConfig() (*Setup, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	history, err := storage.NewJSONStore(cfg.HistoryFile)
	if err != nil {
		return nil, err
	}
	hc := vhttp.New(cfg.HTTPConfig())
	return &Setup{
		HTTP: hc,
		Client: media.NewClient(hc, media.Options{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxAttempts,
			History:     history,
		}),
		Catalog: media.NewCatalog(hc),
		Auth:    media.NewAuth(hc, storage.TokenFile{Path: cfg.TokenFile}),
		history: history,
	}, nil
}

// Close releases the HTTP client and the history file.
func (s *Setup) Close() error {
	s.HTTP.Close()
	return s.history.Close()
}
