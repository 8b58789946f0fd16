// Package config loads and validates the application settings (settings.yaml),
// exposing the Config struct with defaults for every recognized option.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors settings.yaml. Every field has a working default so the
// scraper runs with no configuration file at all.
type Config struct {
	BaseURL string `yaml:"BASE_URL"`
	DataDir string `yaml:"DATA_DIR"`

	TimeoutSeconds   int        `yaml:"TIMEOUT_SECONDS"`
	MaxRetries       int        `yaml:"MAX_RETRIES"`
	Delay            DelayRange `yaml:"DELAY_RANGE"`
	RateLimitDelay   DelayRange `yaml:"RATE_LIMIT_DELAY_RANGE"`
	UserAgents       []string   `yaml:"USER_AGENTS"`
	MinContentLength int        `yaml:"MIN_CONTENT_LENGTH"`
	BlockMarkers     []string   `yaml:"BLOCK_MARKERS"`
	RequiredFields   []string   `yaml:"REQUIRED_FIELDS"`

	Browser    Browser    `yaml:"BROWSER"`
	Database   Database   `yaml:"DATABASE"`
	SimpleMode bool       `yaml:"SIMPLE_MODE"`
	Checkpoint Checkpoint `yaml:"CHECKPOINT"`
	Download   Download   `yaml:"DOWNLOAD"`

	LogLevel  string `yaml:"LOG_LEVEL"`
	LogFormat string `yaml:"LOG_FORMAT"` // text|json|pretty
	LogColor  string `yaml:"LOG_COLOR"`  // auto|always|never
	LogDir    string `yaml:"LOG_DIR"`
}

// DelayRange is a randomized delay window in seconds.
type DelayRange struct {
	Min float64 `yaml:"MIN"`
	Max float64 `yaml:"MAX"`
}

// MinDuration returns the lower bound as a duration.
func (d DelayRange) MinDuration() time.Duration { return time.Duration(d.Min * float64(time.Second)) }

// MaxDuration returns the upper bound as a duration.
func (d DelayRange) MaxDuration() time.Duration { return time.Duration(d.Max * float64(time.Second)) }

// Browser configures the rendering fallback transport.
type Browser struct {
	Headless        bool       `yaml:"HEADLESS"`
	WindowWidth     int        `yaml:"WINDOW_WIDTH"`
	WindowHeight    int        `yaml:"WINDOW_HEIGHT"`
	PageLoadTimeout int        `yaml:"PAGE_LOAD_TIMEOUT"` // seconds
	Settle          DelayRange `yaml:"SETTLE"`            // post-load wait
}

type Database struct {
	Type string `yaml:"TYPE"` // sqlite (default)
	DSN  string `yaml:"DSN"`
}

// Checkpoint configures the resumable-state file.
type Checkpoint struct {
	Path       string `yaml:"PATH"`
	EveryPages int    `yaml:"EVERY_PAGES"`
}

// Download configures artifact retrieval.
type Download struct {
	Dir   string     `yaml:"DIR"`
	Delay DelayRange `yaml:"DELAY_RANGE"`
}

// DirektoriURL is the paginated listing endpoint.
func (c *Config) DirektoriURL() string { return c.BaseURL + "/direktori" }

// Load reads YAML from path and applies validation plus defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{Browser: Browser{Headless: true}}
	_ = c.Validate()
	return c
}

// Validate checks ranges and fills defaults, so the rest of the code never
// has to branch on unset options.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = "https://putusan3.mahkamahagung.go.id"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must be >= 0")
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if err := checkRange("DELAY_RANGE", &c.Delay, 1, 3); err != nil {
		return err
	}
	if err := checkRange("RATE_LIMIT_DELAY_RANGE", &c.RateLimitDelay, 2, 5); err != nil {
		return err
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents()
	}
	if c.MinContentLength == 0 {
		c.MinContentLength = 500
	}
	if len(c.BlockMarkers) == 0 {
		c.BlockMarkers = []string{"access denied", "captcha", "404 not found", "terlalu banyak permintaan"}
	}
	if len(c.RequiredFields) == 0 {
		c.RequiredFields = []string{"number", "date", "category"}
	}
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = 1920
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = 1080
	}
	if c.Browser.PageLoadTimeout <= 0 {
		c.Browser.PageLoadTimeout = 30
	}
	if err := checkRange("BROWSER.SETTLE", &c.Browser.Settle, 2, 4); err != nil {
		return err
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "putusan.db")
	}
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = filepath.Join(c.DataDir, "checkpoints", "last_checkpoint.json")
	}
	if c.Checkpoint.EveryPages <= 0 {
		c.Checkpoint.EveryPages = 10
	}
	if c.Download.Dir == "" {
		c.Download.Dir = filepath.Join(c.DataDir, "downloads")
	}
	if c.Download.Delay.Max == 0 && c.Download.Delay.Min == 0 {
		c.Download.Delay = c.Delay
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	return nil
}

// checkRange validates a delay window and applies the given defaults when the
// window is fully unset.
func checkRange(name string, d *DelayRange, defMin, defMax float64) error {
	if d.Min < 0 || d.Max < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	if d.Min == 0 && d.Max == 0 {
		d.Min, d.Max = defMin, defMax
		return nil
	}
	if d.Max < d.Min {
		return fmt.Errorf("%s: MAX must be >= MIN", name)
	}
	return nil
}

// EnsureDirs creates the working directories the job writes into.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Checkpoint.Path),
		c.Download.Dir,
		c.LogDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}
	return nil
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}
