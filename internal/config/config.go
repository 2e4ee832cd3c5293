package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"meetbot/internal/notify"
	"meetbot/internal/session"
)

const (
	DefaultPath = "config.json"
	EnvPath     = "MEETBOT_CONFIG"
)

// Environment variables that override secrets in config.json.
const (
	EnvEmail          = "EMAIL"
	EnvPassword       = "PASSWORD"
	EnvDiscordWebhook = "DISCORD_WEBHOOK"
	EnvSMTPPassword   = "MEETBOT_SMTP_PASSWORD"
	EnvRedisURL       = "MEETBOT_REDIS_URL"
)

type Config struct {
	Timetable TimetableConfig
	Session   SessionConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type TimetableConfig struct {
	DBPath string `json:"db_path"`
}

type SessionConfig struct {
	URL         string            `json:"url"`
	LoginHost   string            `json:"login_host"`
	Headless    *bool             `json:"headless"`
	UserDataDir string            `json:"user_data_dir"`
	ChromePath  string            `json:"chrome_path"`
	Timeouts    TimeoutsConfig    `json:"timeouts"`
	Selectors   session.Selectors `json:"selectors"`

	// Credentials only come from the environment.
	Identifier string `json:"-"`
	Secret     string `json:"-"`
}

type TimeoutsConfig struct {
	PageLoad   string `json:"page_load"`
	Landmark   string `json:"landmark"`
	LoginStep  string `json:"login_step"`
	TeamList   string `json:"team_list"`
	Probe      string `json:"probe"`
	TeamSettle string `json:"team_settle"`
	PreJoin    string `json:"pre_join"`
}

type SchedulerConfig struct {
	PollInterval string `json:"poll_interval"`
	LateGrace    string `json:"late_grace"`
	Timezone     string `json:"timezone"`
	RunLog       string `json:"run_log"`
	RedisURL     string `json:"redis_url"`
	RedisPrefix  string `json:"redis_prefix"`
}

type NotifyConfig struct {
	Discord DiscordConfig `json:"discord"`
	Email   EmailConfig   `json:"email"`
}

type DiscordConfig struct {
	Enabled    *bool  `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
	Timeout    string `json:"timeout"`
}

type EmailConfig struct {
	Enabled  *bool             `json:"enabled"`
	From     string            `json:"from"`
	Password string            `json:"password"`
	To       []string          `json:"to"`
	SMTP     notify.SMTPConfig `json:"smtp"`
}

type MetricsConfig struct {
	Listen string `json:"listen"`
}

type LogConfig struct {
	File  string `json:"file"`
	Color *bool  `json:"color"`
	Debug bool   `json:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Timetable: TimetableConfig{DBPath: "timetable.db"},
		Session: SessionConfig{
			URL:       session.DefaultURL,
			LoginHost: session.DefaultLoginHost,
			Timeouts: TimeoutsConfig{
				PageLoad:   "120s",
				Landmark:   "120s",
				LoginStep:  "60s",
				TeamList:   "20s",
				Probe:      "10s",
				TeamSettle: "2s",
				PreJoin:    "5s",
			},
			Selectors: session.DefaultSelectors(),
		},
		Scheduler: SchedulerConfig{
			PollInterval: "10s",
			LateGrace:    "2m",
			Timezone:     "Local",
			RunLog:       "runs/runs.jsonl",
		},
		Notify: NotifyConfig{
			Discord: DiscordConfig{Timeout: "15s"},
			Email:   EmailConfig{SMTP: notify.SMTPConfig{Port: 465, UseSSL: true}},
		},
	}
}

func (c Config) WithDefaults() Config {
	out := c
	def := DefaultConfig()
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}

	fill(&out.Timetable.DBPath, def.Timetable.DBPath)

	fill(&out.Session.URL, def.Session.URL)
	fill(&out.Session.LoginHost, def.Session.LoginHost)
	if out.Session.Headless == nil {
		v := false
		out.Session.Headless = &v
	}
	fill(&out.Session.Timeouts.PageLoad, def.Session.Timeouts.PageLoad)
	fill(&out.Session.Timeouts.Landmark, def.Session.Timeouts.Landmark)
	fill(&out.Session.Timeouts.LoginStep, def.Session.Timeouts.LoginStep)
	fill(&out.Session.Timeouts.TeamList, def.Session.Timeouts.TeamList)
	fill(&out.Session.Timeouts.Probe, def.Session.Timeouts.Probe)
	fill(&out.Session.Timeouts.TeamSettle, def.Session.Timeouts.TeamSettle)
	fill(&out.Session.Timeouts.PreJoin, def.Session.Timeouts.PreJoin)
	out.Session.Selectors = out.Session.Selectors.WithDefaults()

	fill(&out.Scheduler.PollInterval, def.Scheduler.PollInterval)
	fill(&out.Scheduler.LateGrace, def.Scheduler.LateGrace)
	fill(&out.Scheduler.Timezone, def.Scheduler.Timezone)

	fill(&out.Notify.Discord.Timeout, def.Notify.Discord.Timeout)
	if out.Notify.Discord.Enabled == nil {
		v := true
		out.Notify.Discord.Enabled = &v
	}
	if out.Notify.Email.Enabled == nil {
		v := false
		out.Notify.Email.Enabled = &v
	}
	if out.Notify.Email.SMTP.Port <= 0 {
		out.Notify.Email.SMTP.Port = def.Notify.Email.SMTP.Port
	}

	if out.Log.Color == nil {
		v := true
		out.Log.Color = &v
	}
	return out
}

// ResolvePath picks the config file: the explicit path, then MEETBOT_CONFIG,
// then config.json.
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads config.json. A missing file yields the defaults.
func Load(configPath string) (Config, error) {
	path := ResolvePath(configPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig().WithDefaults(), nil
		}
		return Config{}, err
	}
	return Parse(data, path)
}

// Parse decodes each known top-level section separately so unrelated
// sections in a shared config.json are ignored.
func Parse(data []byte, name string) (Config, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", name, err)
	}

	cfg := Config{}
	sections := []struct {
		key string
		dst any
	}{
		{"timetable", &cfg.Timetable},
		{"session", &cfg.Session},
		{"scheduler", &cfg.Scheduler},
		{"notify", &cfg.Notify},
		{"metrics", &cfg.Metrics},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		raw, ok := root[s.key]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, s.dst); err != nil {
			return Config{}, fmt.Errorf("parse %s.%s: %w", name, s.key, err)
		}
	}
	return cfg.WithDefaults(), nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	p := strings.TrimSpace(path)
	if p == "" {
		p = ".env"
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(p)
}

// ApplyEnv overlays secrets from the environment.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	out := c
	if v := strings.TrimSpace(getenv(EnvEmail)); v != "" {
		out.Session.Identifier = v
	}
	if v := getenv(EnvPassword); v != "" {
		out.Session.Secret = v
	}
	if v := strings.TrimSpace(getenv(EnvDiscordWebhook)); v != "" {
		out.Notify.Discord.WebhookURL = v
	}
	if v := getenv(EnvSMTPPassword); v != "" {
		out.Notify.Email.Password = v
	}
	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		out.Scheduler.RedisURL = v
	}
	return out
}

func (c SessionConfig) Credentials() session.Credentials {
	return session.Credentials{Identifier: c.Identifier, Secret: c.Secret}
}

func (c TimeoutsConfig) Resolve() session.Timeouts {
	def := session.DefaultTimeouts()
	return session.Timeouts{
		PageLoad:   parseDurationOrDefault(c.PageLoad, def.PageLoad),
		Landmark:   parseDurationOrDefault(c.Landmark, def.Landmark),
		LoginStep:  parseDurationOrDefault(c.LoginStep, def.LoginStep),
		TeamList:   parseDurationOrDefault(c.TeamList, def.TeamList),
		Probe:      parseDurationOrDefault(c.Probe, def.Probe),
		TeamSettle: parseDurationOrDefault(c.TeamSettle, def.TeamSettle),
		PreJoin:    parseDurationOrDefault(c.PreJoin, def.PreJoin),
	}
}

func (c SchedulerConfig) Poll() time.Duration {
	return parseDurationOrDefault(c.PollInterval, 10*time.Second)
}

func (c SchedulerConfig) Grace() time.Duration {
	return parseDurationOrDefault(c.LateGrace, 2*time.Minute)
}

// Location resolves Timezone; blank and "Local" mean the host zone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

func (c DiscordConfig) Active() bool {
	return (c.Enabled == nil || *c.Enabled) && strings.TrimSpace(c.WebhookURL) != ""
}

func (c DiscordConfig) RequestTimeout() time.Duration {
	return parseDurationOrDefault(c.Timeout, 15*time.Second)
}

func (c EmailConfig) Active() bool {
	return c.Enabled != nil && *c.Enabled
}

func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	text := strings.TrimSpace(raw)
	if text == "" {
		return def
	}
	d, err := time.ParseDuration(text)
	if err != nil || d < 0 {
		return def
	}
	return d
}
