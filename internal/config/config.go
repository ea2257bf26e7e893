// Package config loads sitelapse settings from .sitelapse.toml.
//
// A missing file is not an error: every field has a default matching a
// Quarto-style preview server ("quarto preview --no-browser") on macOS.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in the input directory.
const FileName = ".sitelapse.toml"

// Capture backends.
const (
	BackendCommand = "command"
	BackendScreen  = "screen"
	BackendBrowser = "browser"
)

// Region sources.
const (
	RegionMacOS      = "macos"
	RegionConfigured = "config"
)

// Duration is a time.Duration written as a string ("30s", "500ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the decoded .sitelapse.toml.
type Config struct {
	Preview PreviewConfig `toml:"preview"`
	Capture CaptureConfig `toml:"capture"`
	Region  RegionConfig  `toml:"region"`
	Run     RunConfig     `toml:"run"`
	Slides  SlidesConfig  `toml:"slides"`
}

// PreviewConfig describes the preview server and how to read its log.
type PreviewConfig struct {
	// Command is the executable, e.g. "quarto".
	Command string `toml:"command"`
	// Args are the base subcommand arguments, e.g. ["preview"].
	Args []string `toml:"args"`
	// ExtraArgs are appended after the file and profile arguments.
	ExtraArgs []string `toml:"extra_args"`
	// ProfileFlag precedes the profile name.
	ProfileFlag string `toml:"profile_flag"`

	// ListeningPattern must contain one capture group holding the base URL.
	ListeningPattern string `toml:"listening_pattern"`
	// RequestPattern matches the line logged when a client is served.
	RequestPattern string `toml:"request_pattern"`
	// Env is added to the inherited environment; see PreviewEnv.
	Env map[string]string `toml:"env"`
	// Signature is the command-line substring used by the orphan sweep.
	// Defaults to Command followed by the first base arg.
	Signature string `toml:"signature"`

	ReadyTimeout Duration `toml:"ready_timeout"`
	SettleDelay  Duration `toml:"settle_delay"`
	StopTimeout  Duration `toml:"stop_timeout"`
	SweepGrace   Duration `toml:"sweep_grace"`
}

// CaptureConfig selects how screenshots are taken.
type CaptureConfig struct {
	Backend string `toml:"backend"`
	Format  string `toml:"format"`
	// Command is the capture command line for the command backend.
	// Placeholders: {x} {y} {width} {height} {output} {url}.
	Command []string `toml:"command"`
	// BrowserBin overrides the browser used by the browser backend.
	BrowserBin string `toml:"browser_bin"`
}

// RegionConfig says where the capture rectangle comes from.
type RegionConfig struct {
	Source string  `toml:"source"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// RunConfig holds orchestration settings.
type RunConfig struct {
	// PreStartDelay is waited after the workspace is mutated and before the
	// preview starts, giving file watchers time to settle.
	PreStartDelay Duration `toml:"pre_start_delay"`
	// ProjectFile holds profile groups, relative to the input directory.
	ProjectFile string `toml:"project_file"`
	// Screenshot is the file name stem inside each item directory.
	Screenshot string `toml:"screenshot"`
}

// SlidesConfig controls slide emission.
type SlidesConfig struct {
	Enabled  bool   `toml:"enabled"`
	Template string `toml:"template"`
	Output   string `toml:"output"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Preview: PreviewConfig{
			Command:          "quarto",
			Args:             []string{"preview"},
			ExtraArgs:        []string{"--no-browser"},
			ProfileFlag:      "--profile",
			ListeningPattern: `(?i)(?:now listening on|listening on|browse at)\s+(https?://\S+)`,
			RequestPattern:   `(?i)(?:incoming request|GET: /)`,
			ReadyTimeout:     Duration{30 * time.Second},
			SettleDelay:      Duration{500 * time.Millisecond},
			StopTimeout:      Duration{2 * time.Second},
			SweepGrace:       Duration{300 * time.Millisecond},
		},
		Capture: CaptureConfig{
			Backend: BackendCommand,
			Format:  "png",
			Command: []string{"screencapture", "-x", "-t", "{format}", "-R{x},{y},{width},{height}", "{output}"},
		},
		Region: RegionConfig{
			Source: RegionMacOS,
		},
		Run: RunConfig{
			PreStartDelay: Duration{time.Second},
			ProjectFile:   "_quarto.yml",
			Screenshot:    "screenshot",
		},
		Slides: SlidesConfig{
			Output: "slides.md",
		},
	}
}

// Load reads path and overlays it on DefaultConfig.
// A missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("parsing config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads FileName from dir.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Validate normalizes zero values and rejects settings that cannot work.
func (c *Config) Validate() error {
	def := DefaultConfig()
	p := &c.Preview

	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("preview.command must not be empty")
	}
	if p.ProfileFlag == "" {
		p.ProfileFlag = def.Preview.ProfileFlag
	}
	if p.ListeningPattern == "" {
		p.ListeningPattern = def.Preview.ListeningPattern
	}
	if p.RequestPattern == "" {
		p.RequestPattern = def.Preview.RequestPattern
	}
	re, err := regexp.Compile(p.ListeningPattern)
	if err != nil {
		return fmt.Errorf("preview.listening_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("preview.listening_pattern must capture the URL in a group")
	}
	if _, err := regexp.Compile(p.RequestPattern); err != nil {
		return fmt.Errorf("preview.request_pattern: %w", err)
	}
	if p.Signature == "" {
		p.Signature = strings.TrimSpace(strings.Join(append([]string{p.Command}, firstN(p.Args, 1)...), " "))
	}
	if p.ReadyTimeout.Duration <= 0 {
		p.ReadyTimeout = def.Preview.ReadyTimeout
	}
	if p.SettleDelay.Duration < 0 {
		p.SettleDelay = def.Preview.SettleDelay
	}
	if p.SettleDelay.Duration >= p.ReadyTimeout.Duration {
		return fmt.Errorf("preview.settle_delay (%s) must be shorter than preview.ready_timeout (%s)",
			p.SettleDelay.Duration, p.ReadyTimeout.Duration)
	}
	if p.StopTimeout.Duration <= 0 {
		p.StopTimeout = def.Preview.StopTimeout
	}
	if p.SweepGrace.Duration < 0 {
		p.SweepGrace = def.Preview.SweepGrace
	}

	switch c.Capture.Backend {
	case "":
		c.Capture.Backend = def.Capture.Backend
	case BackendCommand, BackendScreen, BackendBrowser:
	default:
		return fmt.Errorf("capture.backend %q: want %s, %s or %s",
			c.Capture.Backend, BackendCommand, BackendScreen, BackendBrowser)
	}
	switch strings.ToLower(strings.TrimSpace(c.Capture.Format)) {
	case "", "png":
		c.Capture.Format = "png"
	case "jpg", "jpeg":
		c.Capture.Format = "jpg"
	default:
		return fmt.Errorf("capture.format %q: want png or jpg", c.Capture.Format)
	}
	if c.Capture.Backend == BackendCommand && len(c.Capture.Command) == 0 {
		c.Capture.Command = def.Capture.Command
	}

	switch c.Region.Source {
	case "":
		c.Region.Source = def.Region.Source
	case RegionMacOS:
	case RegionConfigured:
		if c.Region.Width <= 0 || c.Region.Height <= 0 {
			return fmt.Errorf("region: width and height must be positive for source %q", RegionConfigured)
		}
	default:
		return fmt.Errorf("region.source %q: want %s or %s", c.Region.Source, RegionMacOS, RegionConfigured)
	}

	if c.Run.PreStartDelay.Duration < 0 {
		c.Run.PreStartDelay = def.Run.PreStartDelay
	}
	if c.Run.ProjectFile == "" {
		c.Run.ProjectFile = def.Run.ProjectFile
	}
	if c.Run.Screenshot == "" {
		c.Run.Screenshot = def.Run.Screenshot
	}
	if c.Slides.Output == "" {
		c.Slides.Output = def.Slides.Output
	}
	return nil
}

// ScreenshotName returns the screenshot file name, e.g. "screenshot.png".
func (c *Config) ScreenshotName() string {
	return c.Run.Screenshot + "." + c.Capture.Format
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
