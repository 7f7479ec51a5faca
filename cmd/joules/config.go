//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/ja7ad/joules/pkg/system/nvsmi"
	"github.com/ja7ad/joules/pkg/system/powercap"
)

const envPrefix = "JOULES_"

// Config is the full CLI configuration. Sources are layered in order:
// defaults, YAML file, .env and JOULES_* variables, then explicitly set flags.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Instance  string `yaml:"instance"`
	OutputDir string `yaml:"output_dir"`
	Database  string `yaml:"database"`
	Shell     string `yaml:"shell"`
	ShowRuns  bool   `yaml:"show_runs"`
	Quiet     bool   `yaml:"quiet"`

	Output Outputs `yaml:"output"`

	RAPL  RAPLConfig  `yaml:"rapl"`
	Hwmon HwmonConfig `yaml:"hwmon"`
	GPU   GPUConfig   `yaml:"gpu"`

	Measure measure.Config `yaml:"measure"`
}

type Outputs struct {
	CSV      string `yaml:"csv"`
	JSON     string `yaml:"json"`
	HTML     string `yaml:"html"`
	Textfile string `yaml:"textfile"`
	Plot     bool   `yaml:"plot"`
}

type RAPLConfig struct {
	Domain string  `yaml:"domain"`
	Scale  float64 `yaml:"scale"`
}

type HwmonConfig struct {
	// Path is a power*_input file. Empty selects the first known chip.
	Path string `yaml:"path"`
}

type GPUConfig struct {
	ID     string `yaml:"id"`
	Binary string `yaml:"binary"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		OutputDir: "results",
		Shell:     "/bin/sh",
		RAPL:      RAPLConfig{Domain: powercap.DefaultDomain, Scale: powercap.MicrojoulesPerJoule},
		GPU:       GPUConfig{Binary: nvsmi.DefaultBinary},
		Measure:   cliMeasureDefaults(),
	}
}

// cliMeasureDefaults leaves MaxIterations unset so it follows --max-rounds.
func cliMeasureDefaults() measure.Config {
	m := measure.DefaultConfig()
	m.MaxIterations = 0
	return m
}

// loadFile merges a YAML file over cfg. Keys absent from the file keep
// their current values.
func loadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// loadEnv reads .env when present, then applies JOULES_* variables.
func loadEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %s: %w", dotenv, err)
		}
	}

	e := envReader{}
	cfg.LogLevel = e.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = e.str("LOG_FORMAT", cfg.LogFormat)
	cfg.Instance = e.str("INSTANCE", cfg.Instance)
	cfg.OutputDir = e.str("OUTPUT_DIR", cfg.OutputDir)
	cfg.Database = e.str("DATABASE", cfg.Database)
	cfg.Shell = e.str("SHELL", cfg.Shell)
	cfg.RAPL.Domain = e.str("RAPL_DOMAIN", cfg.RAPL.Domain)
	cfg.RAPL.Scale = e.float("RAPL_SCALE", cfg.RAPL.Scale)
	cfg.Hwmon.Path = e.str("HWMON_PATH", cfg.Hwmon.Path)
	cfg.GPU.ID = e.str("GPU_ID", cfg.GPU.ID)
	cfg.GPU.Binary = e.str("NVIDIA_SMI", cfg.GPU.Binary)

	m := &cfg.Measure
	m.ConfidenceLevel = e.float("CONFIDENCE_LEVEL", m.ConfidenceLevel)
	m.RelativeError = e.float("RELATIVE_ERROR", m.RelativeError)
	m.MaxMeasurements = e.int("MAX_MEASUREMENTS", m.MaxMeasurements)
	m.MaxIterations = e.int("MAX_ITERATIONS", m.MaxIterations)
	m.MinimumWindow = e.duration("MINIMUM_WINDOW", m.MinimumWindow)
	m.InitializationRound = e.bool("INITIALIZATION_ROUND", m.InitializationRound)
	m.Settle = e.duration("SETTLE", m.Settle)
	m.SamplingInterval = e.duration("SAMPLING_INTERVAL", m.SamplingInterval)
	m.IdleWindow = e.duration("IDLE_WINDOW", m.IdleWindow)
	m.ErrorTolerance = e.float("ERROR_TOLERANCE", m.ErrorTolerance)
	m.Xi = e.float("XI", m.Xi)
	return e.err
}

// envReader collects the first parse failure instead of failing fast so
// all lookups stay one-liners.
type envReader struct{ err error }

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	return v, ok && v != ""
}

func (e *envReader) fail(key, raw string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s%s=%q: %w", envPrefix, key, raw, err)
	}
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

// flagBinding copies one field from the flag-bound Config into the
// effective Config.
type flagBinding func(dst, src *Config)

var bindings = map[string]flagBinding{
	"log-level":      func(d, s *Config) { d.LogLevel = s.LogLevel },
	"log-format":     func(d, s *Config) { d.LogFormat = s.LogFormat },
	"instance":       func(d, s *Config) { d.Instance = s.Instance },
	"output-dir":     func(d, s *Config) { d.OutputDir = s.OutputDir },
	"db":             func(d, s *Config) { d.Database = s.Database },
	"shell":          func(d, s *Config) { d.Shell = s.Shell },
	"show-runs":      func(d, s *Config) { d.ShowRuns = s.ShowRuns },
	"quiet":          func(d, s *Config) { d.Quiet = s.Quiet },
	"csv":            func(d, s *Config) { d.Output.CSV = s.Output.CSV },
	"json":           func(d, s *Config) { d.Output.JSON = s.Output.JSON },
	"html":           func(d, s *Config) { d.Output.HTML = s.Output.HTML },
	"textfile":       func(d, s *Config) { d.Output.Textfile = s.Output.Textfile },
	"plot":           func(d, s *Config) { d.Output.Plot = s.Output.Plot },
	"domain":         func(d, s *Config) { d.RAPL.Domain = s.RAPL.Domain },
	"scale":          func(d, s *Config) { d.RAPL.Scale = s.RAPL.Scale },
	"path":           func(d, s *Config) { d.Hwmon.Path = s.Hwmon.Path },
	"gpu-id":         func(d, s *Config) { d.GPU.ID = s.GPU.ID },
	"nvidia-smi":     func(d, s *Config) { d.GPU.Binary = s.GPU.Binary },
	"confidence":     func(d, s *Config) { d.Measure.ConfidenceLevel = s.Measure.ConfidenceLevel },
	"relative-error": func(d, s *Config) { d.Measure.RelativeError = s.Measure.RelativeError },
	"max-rounds":     func(d, s *Config) { d.Measure.MaxMeasurements = s.Measure.MaxMeasurements },
	"max-iterations": func(d, s *Config) { d.Measure.MaxIterations = s.Measure.MaxIterations },
	"min-window":     func(d, s *Config) { d.Measure.MinimumWindow = s.Measure.MinimumWindow },
	"warmup":         func(d, s *Config) { d.Measure.InitializationRound = s.Measure.InitializationRound },
	"settle":         func(d, s *Config) { d.Measure.Settle = s.Measure.Settle },
	"interval":       func(d, s *Config) { d.Measure.SamplingInterval = s.Measure.SamplingInterval },
	"idle-window":    func(d, s *Config) { d.Measure.IdleWindow = s.Measure.IdleWindow },
	"tolerance":      func(d, s *Config) { d.Measure.ErrorTolerance = s.Measure.ErrorTolerance },
	"xi":             func(d, s *Config) { d.Measure.Xi = s.Measure.Xi },
}

// applyFlags copies every flag the user set explicitly.
func applyFlags(dst, src *Config, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if b, ok := bindings[f.Name]; ok {
			b(dst, src)
		}
	})
}

// resolve builds the effective configuration. Measurement parameters are
// validated later, when the Controller fills its remaining defaults.
func resolve(flags *Config, configPath, dotenv string, fs *pflag.FlagSet) (*Config, error) {
	cfg := defaultConfig()
	if err := loadFile(&cfg, configPath); err != nil {
		return nil, err
	}
	if err := loadEnv(&cfg, dotenv); err != nil {
		return nil, err
	}
	applyFlags(&cfg, flags, fs)
	return &cfg, nil
}
