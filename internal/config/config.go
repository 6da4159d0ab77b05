package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"NewsDigest/internal/domain"
)

const (
	defaultTimezone   = "America/New_York"
	configPathEnv     = "NEWSDIGEST_CONFIG"
	databaseURLEnv    = "DATABASE_URL"
	groqAPIKeyEnv     = "GROQ_API_KEY"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmEndpointEnv    = "LLM_ENDPOINT"
	smtpServerEnv     = "SMTP_SERVER"
	smtpPortEnv       = "SMTP_PORT"
	smtpUsernameEnv   = "SMTP_USERNAME"
	smtpPasswordEnv   = "SMTP_PASSWORD"
	recipientEnv      = "EMAIL_RECIPIENT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	portEnv           = "PORT"
	runOnStartupEnv   = "RUN_ON_STARTUP"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Server        ServerConfig       `yaml:"server"`
	LLM           LLMConfig          `yaml:"llm"`
	Scrape        ScrapeConfig       `yaml:"scrape"`
	Digest        DigestConfig       `yaml:"digest"`
	Profile       domain.UserProfile `yaml:"profile"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
}

// SchedulerConfig defines when the daily digest fires.
type SchedulerConfig struct {
	Timezone      string         `yaml:"timezone"`
	Hour          int            `yaml:"hour"`
	Minute        int            `yaml:"minute"`
	CheckInterval time.Duration  `yaml:"checkInterval"`
	RunOnStartup  bool           `yaml:"runOnStartup"`
	location      *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServerConfig controls the health/metrics listener. Empty port disables it.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LLMConfig defines how to contact the OpenAI-compatible chat completions API.
type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ScrapeConfig tunes the source adapters.
type ScrapeConfig struct {
	HoursBack      int           `yaml:"hoursBack"`
	SkipContent    bool          `yaml:"skipContent"`
	UserAgent      string        `yaml:"userAgent"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	HostInterval   time.Duration `yaml:"hostInterval"`
	FeedWorkers    int           `yaml:"feedWorkers"`
}

// DigestConfig tunes synthesis, curation and composition.
type DigestConfig struct {
	HoursBack     int `yaml:"hoursBack"`
	FallbackHours int `yaml:"fallbackHours"`
	MaxItems      int `yaml:"maxItems"`
	ContentBudget int `yaml:"contentBudget"`
	ExcerptChars  int `yaml:"excerptChars"`
	TeaserTitles  int `yaml:"teaserTitles"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Mail     MailConfig     `yaml:"mail"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// MailConfig carries SMTP credentials.
type MailConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SiteConfig describes a single source with its scanner strategy.
type SiteConfig struct {
	Name        string            `yaml:"name"`
	Scanner     string            `yaml:"scanner"`
	Disabled    bool              `yaml:"disabled"`
	Identifiers []string          `yaml:"identifiers"`
	Categories  []CategoryConfig  `yaml:"categories"`
	Options     map[string]string `yaml:"options"`
}

// CategoryConfig holds one concrete endpoint of a site (feed URL, listing URL).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads .env and the YAML file named by NEWSDIGEST_CONFIG (if any) and applies
// environment overrides. A broken file is logged and the defaults are used.
func Load() Config {
	cfg, err := LoadFrom(os.Getenv(configPathEnv))
	if err != nil {
		log.Printf("config: %v (falling back to defaults)", err)
		cfg, _ = LoadFrom("")
	}
	return cfg
}

// LoadFrom reads .env, decodes the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func LoadFrom(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg, nil
}

// LoadFile parses a YAML file without applying defaults.
func LoadFile(path string) (Config, error) {
	var fileCfg Config
	if err := decodeFile(path, &fileCfg); err != nil {
		return Config{}, err
	}
	return fileCfg, nil
}

// decodeFile overlays the keys present in the file onto cfg; absent keys keep their value.
func decodeFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return nil
}

// EnabledSites returns the sites that are not switched off.
func (c Config) EnabledSites() []SiteConfig {
	sites := make([]SiteConfig, 0, len(c.Sites))
	for _, site := range c.Sites {
		if !site.Disabled {
			sites = append(sites, site)
		}
	}
	return sites
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv(groqAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}

	if v := os.Getenv(smtpServerEnv); v != "" {
		c.Notifications.Mail.Server = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Notifications.Mail.Port = port
		} else {
			log.Printf("config: invalid %s=%q ignored", smtpPortEnv, v)
		}
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Notifications.Mail.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Notifications.Mail.Password = v
	}
	if v := os.Getenv(recipientEnv); v != "" {
		c.Profile.Email = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(runOnStartupEnv); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			c.Scheduler.RunOnStartup = true
		default:
			c.Scheduler.RunOnStartup = false
		}
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			Timezone:      defaultTimezone,
			Hour:          13,
			Minute:        30,
			CheckInterval: time.Minute,
		},
		LLM: LLMConfig{
			Endpoint: "https://api.groq.com/openai/v1/chat/completions",
			Model:    "llama-3.3-70b-versatile",
			Timeout:  60 * time.Second,
		},
		Scrape: ScrapeConfig{
			HoursBack:      500,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			RequestTimeout: 20 * time.Second,
			HostInterval:   500 * time.Millisecond,
			FeedWorkers:    4,
		},
		Digest: DigestConfig{
			HoursBack:     48,
			FallbackHours: 168,
			MaxItems:      25,
			ContentBudget: 12000,
			ExcerptChars:  300,
			TeaserTitles:  20,
		},
		Profile: domain.UserProfile{
			Name:  "AI Researcher",
			Email: "recipient@example.com",
			Interests: []string{
				"large language models",
				"AI safety and alignment",
				"model capabilities",
				"research papers",
				"machine learning",
			},
			FocusAreas:    []string{"model scaling", "safety evaluation", "interpretability"},
			ExcludeTopics: []string{"marketing", "product announcements"},
		},
		Notifications: NotificationConfig{
			Mail: MailConfig{Port: 587},
		},
		Sites: []SiteConfig{
			{
				Name:        "YouTube",
				Scanner:     "youtube",
				Identifiers: []string{"UCawZsQWqfGSbCI5yjkdVkTA", "UCT3EznhW_CNFcfOlyDNTLLw"},
			},
			{
				Name:       "OpenAI Blog",
				Scanner:    "blog",
				Categories: []CategoryConfig{{Name: "news", URL: "https://openai.com/news/rss.xml"}},
			},
			{
				Name:    "Anthropic",
				Scanner: "multifeed",
				Categories: []CategoryConfig{
					{Name: "news", URL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/main/feeds/feed_anthropic_news.xml"},
					{Name: "engineering", URL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/main/feeds/feed_anthropic_engineering.xml"},
					{Name: "research", URL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/main/feeds/feed_anthropic_research.xml"},
				},
			},
			{
				Name:     "arxiv-ai",
				Scanner:  "arxiv",
				Disabled: true,
				Categories: []CategoryConfig{
					{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
				},
			},
		},
	}
}
