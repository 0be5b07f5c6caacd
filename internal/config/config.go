package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultModel            = "claude-3-5-haiku-20241022"
	DefaultMaxTokens        = 2048
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 3001
	DefaultCacheTTL         = "5m"
	DefaultCollectSchedule  = "0 */30 * * * *"
	DefaultAnalyzeSchedule  = "0 0 18 * * *"
	DefaultPruneSchedule    = "0 30 3 * * *"
	DefaultActivityWatchURL = "http://localhost:5600/api/0"
	DefaultHTTPTimeout      = "10s"
	DefaultEventLimit       = 1000
	DefaultPublishAttempts  = 3
	DefaultRetryDelay       = "2s"
	DefaultRetentionDays    = 30
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

type Config struct {
	Logs          LogsConfig          `json:"logs"`
	Publish       PublishConfig       `json:"publish"`
	Cache         CacheConfig         `json:"cache"`
	Gateway       GatewayConfig       `json:"gateway"`
	ActivityWatch ActivityWatchConfig `json:"activityWatch"`
	Collector     CollectorConfig     `json:"collector"`
	Projects      []ProjectConfig     `json:"projects"`
	Analysis      AnalysisConfig      `json:"analysis"`
	Provider      ProviderConfig      `json:"provider"`
	Channels      ChannelsConfig      `json:"channels"`
	Journal       JournalConfig       `json:"journal"`
	Log           LogConfig           `json:"log"`
}

// LogsConfig locates the daily logs. Dir must sit inside RepoDir when
// publishing is enabled; an empty RepoDir means the parent of Dir.
type LogsConfig struct {
	Dir     string `json:"dir"`
	RepoDir string `json:"repoDir"`
}

type PublishConfig struct {
	Enabled    bool   `json:"enabled"`
	Push       bool   `json:"push"`
	Remote     string `json:"remote,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Attempts   int    `json:"attempts"`
	RetryDelay string `json:"retryDelay,omitempty"`
}

type CacheConfig struct {
	TTL string `json:"ttl,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ActivityWatchConfig struct {
	Enabled    bool   `json:"enabled"`
	URL        string `json:"url"`
	Timeout    string `json:"timeout,omitempty"`
	EventLimit int    `json:"eventLimit,omitempty"`
}

type CollectorConfig struct {
	Schedule string `json:"schedule"`
	// Author limits commit discovery to one author; empty means everyone.
	Author string `json:"author,omitempty"`
}

type ProjectConfig struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type AnalysisConfig struct {
	Enabled   bool            `json:"enabled"`
	Schedule  string          `json:"schedule"`
	Model     string          `json:"model,omitempty"`
	MaxTokens int             `json:"maxTokens,omitempty"`
	Provider  *ProviderConfig `json:"provider,omitempty"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig sends sync notices to one chat.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
	Proxy   string `json:"proxy,omitempty"`
}

type JournalConfig struct {
	DBPath        string `json:"dbPath,omitempty"`
	RetentionDays int    `json:"retentionDays"`
	Schedule      string `json:"schedule,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Logs: LogsConfig{
			Dir: filepath.Join(home, "Tasks", "logs"),
		},
		Publish: PublishConfig{
			Enabled:    true,
			Push:       true,
			Attempts:   DefaultPublishAttempts,
			RetryDelay: DefaultRetryDelay,
		},
		Cache: CacheConfig{TTL: DefaultCacheTTL},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		ActivityWatch: ActivityWatchConfig{
			Enabled:    true,
			URL:        DefaultActivityWatchURL,
			Timeout:    DefaultHTTPTimeout,
			EventLimit: DefaultEventLimit,
		},
		Collector: CollectorConfig{Schedule: DefaultCollectSchedule},
		Analysis: AnalysisConfig{
			Enabled:   false,
			Schedule:  DefaultAnalyzeSchedule,
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Journal: JournalConfig{
			RetentionDays: DefaultRetentionDays,
			Schedule:      DefaultPruneSchedule,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".worklog")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func (c *Config) RepoDir() string {
	if c.Logs.RepoDir != "" {
		return c.Logs.RepoDir
	}
	return filepath.Dir(c.Logs.Dir)
}

// JournalPath is where manual tasks are kept unless overridden.
func (c *Config) JournalPath() string {
	if c.Journal.DBPath != "" {
		return c.Journal.DBPath
	}
	return filepath.Join(ConfigDir(), "journal.db")
}

// CronStorePath is the persisted job list.
func (c *Config) CronStorePath() string {
	return filepath.Join(ConfigDir(), "data", "cron", "jobs.json")
}

// AnalysisProvider returns the provider for analysis, falling back to the
// top-level provider for unset fields.
func (c *Config) AnalysisProvider() ProviderConfig {
	p := c.Provider
	if o := c.Analysis.Provider; o != nil {
		if o.Type != "" {
			p.Type = o.Type
		}
		if o.APIKey != "" {
			p.APIKey = o.APIKey
		}
		if o.BaseURL != "" {
			p.BaseURL = o.BaseURL
		}
	}
	return p
}

func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, DefaultCacheTTL)
}

func (c *Config) RetryDelay() time.Duration {
	return parseDuration(c.Publish.RetryDelay, DefaultRetryDelay)
}

func (c *Config) ActivityWatchTimeout() time.Duration {
	return parseDuration(c.ActivityWatch.Timeout, DefaultHTTPTimeout)
}

func parseDuration(v, fallback string) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if dir := os.Getenv("WORKLOG_LOGS_DIR"); dir != "" {
		cfg.Logs.Dir = dir
	}
	if dir := os.Getenv("WORKLOG_REPO_DIR"); dir != "" {
		cfg.Logs.RepoDir = dir
	}
	if enabled := os.Getenv("WORKLOG_PUBLISH"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Publish.Enabled = parsed
		}
	}
	if push := os.Getenv("WORKLOG_PUSH"); push != "" {
		if parsed, err := strconv.ParseBool(push); err == nil {
			cfg.Publish.Push = parsed
		}
	}
	if port := os.Getenv("WORKLOG_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if url := os.Getenv("WORKLOG_ACTIVITYWATCH_URL"); url != "" {
		cfg.ActivityWatch.URL = url
	}
	if key := os.Getenv("WORKLOG_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("WORKLOG_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if enabled := os.Getenv("WORKLOG_ANALYSIS_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Analysis.Enabled = parsed
		}
	}
	if model := os.Getenv("WORKLOG_ANALYSIS_MODEL"); model != "" {
		cfg.Analysis.Model = model
	}
	if token := os.Getenv("WORKLOG_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if chat := os.Getenv("WORKLOG_TELEGRAM_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Channels.Telegram.ChatID = parsed
		}
	}
	if level := os.Getenv("WORKLOG_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("WORKLOG_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	defaults := DefaultConfig()
	if cfg.Logs.Dir == "" {
		cfg.Logs.Dir = defaults.Logs.Dir
	}
	if cfg.Publish.Attempts <= 0 {
		cfg.Publish.Attempts = DefaultPublishAttempts
	}
	if cfg.Collector.Schedule == "" {
		cfg.Collector.Schedule = DefaultCollectSchedule
	}
	if cfg.Analysis.Schedule == "" {
		cfg.Analysis.Schedule = DefaultAnalyzeSchedule
	}
	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = DefaultModel
	}
	if cfg.Analysis.MaxTokens <= 0 {
		cfg.Analysis.MaxTokens = DefaultMaxTokens
	}
	if cfg.ActivityWatch.URL == "" {
		cfg.ActivityWatch.URL = DefaultActivityWatchURL
	}
	if cfg.ActivityWatch.EventLimit <= 0 {
		cfg.ActivityWatch.EventLimit = DefaultEventLimit
	}
	if cfg.Journal.RetentionDays <= 0 {
		cfg.Journal.RetentionDays = DefaultRetentionDays
	}
	if cfg.Journal.Schedule == "" {
		cfg.Journal.Schedule = DefaultPruneSchedule
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
