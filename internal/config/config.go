// Package config provides centralized configuration for the quick-game runner
// and the lobby fixture. It loads configuration from CLI flags, an optional
// .env file and environment variables, validates it, and provides defaults
// that reproduce the original hand-run check against a local dev server.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/bringten-smoke/internal/logutil"
	"github.com/kuitang/bringten-smoke/internal/ratelimit"
)

const (
	DefaultHomeURL       = "http://localhost:5173/"
	DefaultTitleText     = "BringTen"
	DefaultNoResultsText = "No results found."
	DefaultHostName      = "Akil"
	DefaultRoomName      = "Game Grumps"

	DriverPlaywright = "playwright"
	DriverRod        = "rod"

	// A BringTen table seats four, so at most three players join the host.
	MaxJoiners = 3
)

// DefaultJoiners are the players that join the host's room, in order.
var DefaultJoiners = []string{"Des", "Jabari", "Momz"}

// Config holds all runner configuration.
type Config struct {
	// Target
	HomeURL       string
	TitleText     string // Substring the home page title must contain
	NoResultsText string // Text that must not appear after creating or joining

	// Players
	HostName string
	RoomName string
	Joiners  []string

	// Browser
	Driver        string // playwright or rod
	Channel       string // Playwright channel, e.g. msedge; empty for bundled Chromium
	BrowserBin    string // Explicit browser binary for rod
	Headless      bool
	Detach        bool          // Leave the browser open after the run until interrupted
	WaitTimeout   time.Duration // Bound for wait-until-clickable
	SettleDelay   time.Duration // Fixed pause before the first interaction on a page
	ActionTimeout time.Duration // Default bound for every other browser call

	// Pacing
	Pacing ratelimit.Config

	// Artifacts
	ArtifactDir string

	// S3 artifacts (uses AWS_ env vars)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL
	AWSPathStyle       bool   // S3_PATH_STYLE, needed by MinIO style servers

	LogLevel string
}

// Flags are the command line overrides. Zero values mean "not set".
type Flags struct {
	EnvFile  string
	URL      string
	Driver   string
	Channel  string
	Headless bool
	Detach   bool
	Host     string
	Room     string
	Joiners  string
	Artifact string
	StepRate float64
	LogLevel string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers the runner flags on set and parses args.
func ParseFlags(set *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	set.StringVar(&f.EnvFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	set.StringVar(&f.URL, "url", "", "Lobby home page (default "+DefaultHomeURL+", overrides BRINGTEN_HOME_URL)")
	set.StringVar(&f.Driver, "driver", "", "Browser backend: playwright or rod")
	set.StringVar(&f.Channel, "channel", "", "Playwright browser channel, e.g. msedge or chrome")
	set.BoolVar(&f.Headless, "headless", false, "Run the browser without a window")
	set.BoolVar(&f.Detach, "detach", false, "Keep the browser open after the run until interrupted")
	set.StringVar(&f.Host, "host", "", "Name of the player creating the room")
	set.StringVar(&f.Room, "room", "", "Name of the room to create")
	set.StringVar(&f.Joiners, "joiners", "", "Comma separated names of the players joining the room")
	set.StringVar(&f.Artifact, "artifacts", "", "Directory for screenshots and reports")
	set.Float64Var(&f.StepRate, "step-rate", 0, "Maximum steps per second per tab (0 = unpaced)")
	set.StringVar(&f.LogLevel, "log-level", "", "debug, info, warn or error")
	if err := set.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig loads the optional dotenv file, then configuration from
// environment variables, then applies flag overrides and validates.
func LoadConfig(f Flags) (*Config, error) {
	if err := loadEnvFile(f.EnvFile); err != nil {
		return nil, err
	}

	cfg := &Config{}
	env := &envReader{}

	cfg.HomeURL = getEnvOrDefault("BRINGTEN_HOME_URL", DefaultHomeURL)
	cfg.TitleText = getEnvOrDefault("BRINGTEN_TITLE_TEXT", DefaultTitleText)
	cfg.NoResultsText = getEnvOrDefault("BRINGTEN_NO_RESULTS_TEXT", DefaultNoResultsText)

	cfg.HostName = getEnvOrDefault("BRINGTEN_HOST_NAME", DefaultHostName)
	cfg.RoomName = getEnvOrDefault("BRINGTEN_ROOM_NAME", DefaultRoomName)
	cfg.Joiners = parseListOrDefault("BRINGTEN_JOINERS", DefaultJoiners)

	cfg.Driver = getEnvOrDefault("BRINGTEN_DRIVER", DriverPlaywright)
	cfg.Channel = getEnvOrDefault("BRINGTEN_CHANNEL", "")
	cfg.BrowserBin = getEnvOrDefault("BRINGTEN_BROWSER_BIN", "")
	cfg.Headless = env.parseBoolOrDefault("BRINGTEN_HEADLESS", false)
	cfg.Detach = env.parseBoolOrDefault("BRINGTEN_DETACH", false)
	cfg.WaitTimeout = env.parseDurationOrDefault("BRINGTEN_WAIT_TIMEOUT", 2*time.Second)
	cfg.SettleDelay = env.parseDurationOrDefault("BRINGTEN_SETTLE_DELAY", time.Second)
	cfg.ActionTimeout = env.parseDurationOrDefault("BRINGTEN_ACTION_TIMEOUT", 5*time.Second)

	cfg.Pacing = ratelimit.Config{
		StepsPerSecond: env.parseFloat64OrDefault("BRINGTEN_STEP_RATE", ratelimit.DefaultConfig.StepsPerSecond),
		Burst:          env.parseIntOrDefault("BRINGTEN_STEP_BURST", ratelimit.DefaultConfig.Burst),
	}

	cfg.ArtifactDir = getEnvOrDefault("BRINGTEN_ARTIFACT_DIR", "")

	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", "auto")
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")
	cfg.AWSBucketName = getEnvOrDefault("BUCKET_NAME", "")
	cfg.AWSPublicURL = getEnvOrDefault("S3_PUBLIC_URL", "")
	cfg.AWSPathStyle = env.parseBoolOrDefault("S3_PATH_STYLE", false)
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "debug")

	cfg.applyFlags(f)

	err := cfg.Validate()
	if len(env.problems) > 0 {
		problems := env.problems
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			problems = append(problems, validationErr.Errors...)
		}
		return nil, &ValidationError{Errors: problems}
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFlags(f Flags) {
	if f.URL != "" {
		c.HomeURL = f.URL
	}
	if f.Driver != "" {
		c.Driver = f.Driver
	}
	if f.Channel != "" {
		c.Channel = f.Channel
	}
	if f.Headless {
		c.Headless = true
	}
	if f.Detach {
		c.Detach = true
	}
	if f.Host != "" {
		c.HostName = f.Host
	}
	if f.Room != "" {
		c.RoomName = f.Room
	}
	if f.Joiners != "" {
		c.Joiners = splitList(f.Joiners)
	}
	if f.Artifact != "" {
		c.ArtifactDir = f.Artifact
	}
	if f.StepRate > 0 {
		c.Pacing.StepsPerSecond = f.StepRate
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	var errs []string

	u, err := url.Parse(c.HomeURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("BRINGTEN_HOME_URL must be an absolute http(s) URL, got %q", c.HomeURL))
	}
	if strings.TrimSpace(c.TitleText) == "" {
		errs = append(errs, "BRINGTEN_TITLE_TEXT must not be empty")
	}
	if strings.TrimSpace(c.NoResultsText) == "" {
		errs = append(errs, "BRINGTEN_NO_RESULTS_TEXT must not be empty")
	}

	if strings.TrimSpace(c.HostName) == "" {
		errs = append(errs, "BRINGTEN_HOST_NAME must not be empty")
	}
	if strings.TrimSpace(c.RoomName) == "" {
		errs = append(errs, "BRINGTEN_ROOM_NAME must not be empty")
	}
	if len(c.Joiners) > MaxJoiners {
		errs = append(errs, fmt.Sprintf("BRINGTEN_JOINERS lists %d players, a room seats at most %d joiners", len(c.Joiners), MaxJoiners))
	}
	for i, name := range c.Joiners {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("BRINGTEN_JOINERS entry %d is empty", i+1))
		}
	}

	switch c.Driver {
	case DriverPlaywright:
	case DriverRod:
		if c.Channel != "" {
			errs = append(errs, "BRINGTEN_CHANNEL is only supported by the playwright driver (use BRINGTEN_BROWSER_BIN with rod)")
		}
	default:
		errs = append(errs, fmt.Sprintf("BRINGTEN_DRIVER must be %q or %q, got %q", DriverPlaywright, DriverRod, c.Driver))
	}
	if c.Detach && c.Headless {
		errs = append(errs, "--detach needs a visible browser, drop --headless")
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, "BRINGTEN_WAIT_TIMEOUT must be positive")
	}
	if c.SettleDelay < 0 {
		errs = append(errs, "BRINGTEN_SETTLE_DELAY must not be negative")
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, "BRINGTEN_ACTION_TIMEOUT must be positive")
	}
	if c.Pacing.StepsPerSecond < 0 {
		errs = append(errs, "BRINGTEN_STEP_RATE must not be negative")
	}

	if c.S3Enabled() {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required when BUCKET_NAME is set")
		}
		if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// S3Enabled reports whether artifacts go to an S3 bucket.
func (c *Config) S3Enabled() bool {
	return c.AWSBucketName != ""
}

// PrintStartupSummary prints a human-readable summary of the configuration.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "bringten quick-game starting...")
	fmt.Fprintf(w, "  Target:   %s (title must contain %q)\n", c.HomeURL, c.TitleText)
	fmt.Fprintf(w, "  Host:     %s creates %q\n", c.HostName, c.RoomName)
	fmt.Fprintf(w, "  Joiners:  %s\n", strings.Join(c.Joiners, ", "))

	browser := c.Driver
	if c.Channel != "" {
		browser += " (" + c.Channel + ")"
	}
	if c.Headless {
		browser += ", headless"
	}
	if c.Detach {
		browser += ", detached"
	}
	fmt.Fprintf(w, "  Browser:  %s\n", browser)
	fmt.Fprintf(w, "  Waits:    clickable %s, settle %s\n", c.WaitTimeout, c.SettleDelay)

	switch {
	case c.S3Enabled():
		fmt.Fprintf(w, "  Evidence: s3://%s at %s (key %s)\n", c.AWSBucketName, c.AWSEndpointS3,
			logutil.RedactValue("AWS_ACCESS_KEY_ID", c.AWSAccessKeyID))
	case c.ArtifactDir != "":
		fmt.Fprintf(w, "  Evidence: %s\n", c.ArtifactDir)
	default:
		fmt.Fprintln(w, "  Evidence: none")
	}
	fmt.Fprintln(w, "")
}

// FixtureConfig configures the standalone lobby fixture server.
type FixtureConfig struct {
	ListenAddr string
	LogLevel   string
}

// LoadFixtureConfig reads LISTEN_ADDR; addr overrides it when non-empty.
func LoadFixtureConfig(envFile, addr string) (*FixtureConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg := &FixtureConfig{
		ListenAddr: getEnvOrDefault("LISTEN_ADDR", ":5173"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "debug"),
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if !strings.Contains(cfg.ListenAddr, ":") {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("LISTEN_ADDR must be host:port, got %q", cfg.ListenAddr)}}
	}
	return cfg, nil
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// envReader parses typed environment variables and remembers every value it
// could not parse, so a typo fails validation instead of falling back.
type envReader struct {
	problems []string
}

func (e *envReader) invalid(key, value, kind string) {
	e.problems = append(e.problems, fmt.Sprintf("%s must be %s, got %q", key, kind, value))
}

func (e *envReader) parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.invalid(key, value, "an integer")
		return defaultValue
	}
	return parsed
}

func (e *envReader) parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.invalid(key, value, "a number")
		return defaultValue
	}
	return parsed
}

func (e *envReader) parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.invalid(key, value, "a boolean")
		return defaultValue
	}
	return parsed
}

func (e *envReader) parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.invalid(key, value, "a duration such as 2s")
		return defaultValue
	}
	return parsed
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	return splitList(value)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}
