package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	MaxStale       string
	NoStale        bool
	NoCache        bool
	LogLevel       string
	FeeRecipient   string
	FeeBps         int
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	MaxStale       time.Duration
	NoStale        bool
	CacheEnabled   bool
	CachePath      string
	CacheLockPath  string
	LogLevel       string

	// Operator fee policy. Not user-controlled: flags and env exist for
	// operating the CLI, the extension host injects these.
	FeeRecipient string
	FeeBps       int
	OwnerExtras  []string

	// Per-chain overlays on the built-in tables.
	RouterOverlays  map[uint64][]string
	WrappedNatives  map[uint64]string
	RPCURLOverrides map[uint64]string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Timeout  string `yaml:"timeout"`
	LogLevel string `yaml:"log_level"`
	Fee      struct {
		Recipient   string   `yaml:"recipient"`
		Bps         *int     `yaml:"bps"`
		OwnerExtras []string `yaml:"owner_extras"`
	} `yaml:"fee"`
	Chains map[uint64]struct {
		Routers       []string `yaml:"routers"`
		WrappedNative string   `yaml:"wrapped_native"`
		RPCURL        string   `yaml:"rpc_url"`
	} `yaml:"chains"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
}

func Load(flags GlobalFlags) (Settings, error) {
	// A .env in the working directory is a convenience for local runs;
	// real deployments set the environment directly.
	_ = godotenv.Load()

	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		MaxStale:        5 * time.Minute,
		CacheEnabled:    true,
		CachePath:       cachePath,
		CacheLockPath:   lockPath,
		LogLevel:        "warn",
		RouterOverlays:  map[uint64][]string{},
		WrappedNatives:  map[uint64]string{},
		RPCURLOverrides: map[uint64]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "routerfee", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "routerfee")
	return filepath.Join(dir, "quotes.db"), filepath.Join(dir, "quotes.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Fee.Recipient != "" {
		settings.FeeRecipient = cfg.Fee.Recipient
	}
	if cfg.Fee.Bps != nil {
		settings.FeeBps = *cfg.Fee.Bps
	}
	if len(cfg.Fee.OwnerExtras) > 0 {
		settings.OwnerExtras = append([]string(nil), cfg.Fee.OwnerExtras...)
	}
	for chainID, chain := range cfg.Chains {
		if len(chain.Routers) > 0 {
			settings.RouterOverlays[chainID] = append(settings.RouterOverlays[chainID], chain.Routers...)
		}
		if chain.WrappedNative != "" {
			settings.WrappedNatives[chainID] = chain.WrappedNative
		}
		if chain.RPCURL != "" {
			settings.RPCURLOverrides[chainID] = chain.RPCURL
		}
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("ROUTERFEE_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERFEE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("ROUTERFEE_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("ROUTERFEE_FEE_RECIPIENT"); v != "" {
		settings.FeeRecipient = v
	}
	if v := os.Getenv("ROUTERFEE_FEE_BPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.FeeBps = n
		}
	}
	if v := os.Getenv("ROUTERFEE_OWNER_EXTRAS"); v != "" {
		settings.OwnerExtras = splitList(v)
	}
	if v := os.Getenv("ROUTERFEE_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("ROUTERFEE_NO_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.NoStale = b
		}
	}
	if v := os.Getenv("ROUTERFEE_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("ROUTERFEE_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("ROUTERFEE_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if flags.FeeRecipient != "" {
		settings.FeeRecipient = flags.FeeRecipient
	}
	if flags.FeeBps > 0 {
		settings.FeeBps = flags.FeeBps
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
