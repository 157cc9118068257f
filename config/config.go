// Package config loads the scoreboard's YAML configuration. A path may name a
// single file or a directory whose *.yaml files are merged in lexical order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"scoreboard/strutil"
)

// Config represents the complete scoreboard configuration.
type Config struct {
	N3FJP    N3FJPConfig    `yaml:"n3fjp"`
	Web      WebConfig      `yaml:"web"`
	Event    EventConfig    `yaml:"event"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	CTY      CTYConfig      `yaml:"cty"`
	Recorder RecorderConfig `yaml:"recorder"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
	Assets   AssetsConfig   `yaml:"assets"`

	// LoadedFrom records the file or directory the configuration came from.
	LoadedFrom string `yaml:"-"`
}

// N3FJPConfig describes the logger API endpoint and the poll cadence.
type N3FJPConfig struct {
	Host               string  `yaml:"host"`
	Port               int     `yaml:"port"`
	Transport          string  `yaml:"transport"` // "native" or "telnet"
	SeedCount          int     `yaml:"seed_count"`
	TailCount          int     `yaml:"tail_count"`
	RefreshSeconds     float64 `yaml:"refresh_seconds"`
	SeedTimeoutSeconds float64 `yaml:"seed_timeout_seconds"`
	SeedIdleSeconds    float64 `yaml:"seed_idle_seconds"`
	PollTimeoutSeconds float64 `yaml:"poll_timeout_seconds"`
	PollIdleSeconds    float64 `yaml:"poll_idle_seconds"`
	DialTimeoutSeconds float64 `yaml:"dial_timeout_seconds"`
	StopGraceSeconds   float64 `yaml:"stop_grace_seconds"`
}

// WebConfig contains the HTTP listener and static asset settings.
type WebConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	WWWDir string `yaml:"www_dir"`
}

// EventConfig is handed to the browser dashboard as-is via /api/config.
// Year seeds hour buckets for logger dates that carry no year (M/D form);
// zero means the current UTC year at startup.
type EventConfig struct {
	ClubName       string         `yaml:"club_name"`
	Callsign       string         `yaml:"callsign"`
	EventName      string         `yaml:"event_name"`
	HomeLat        float64        `yaml:"home_lat"`
	HomeLon        float64        `yaml:"home_lon"`
	HomeLocation   string         `yaml:"home_location"`
	WeatherEnabled bool           `yaml:"weather_enabled"`
	BandGoals      map[string]int `yaml:"band_goals"`
	Year           int            `yaml:"year"`
}

// ScoringConfig holds the Field Day class, power source, and claimed bonuses.
type ScoringConfig struct {
	FieldDayClass          string `yaml:"field_day_class"`
	EmergencyPower         bool   `yaml:"emergency_power"`
	MediaPublicity         bool   `yaml:"media_publicity"`
	PublicLocation         bool   `yaml:"public_location"`
	PublicInformationTable bool   `yaml:"public_information_table"`
	NTSMessageOriginated   int    `yaml:"nts_message_originated"`
	NTSMessageHandled      int    `yaml:"nts_message_handled"`
	SatelliteQSO           bool   `yaml:"satellite_qso"`
	W1AWBulletin           bool   `yaml:"w1aw_bulletin"`
	EducationalActivity    bool   `yaml:"educational_activity"`
	SocialMedia            bool   `yaml:"social_media"`
	YouthParticipation     bool   `yaml:"youth_participation"`
	SiteVisitOfficial      bool   `yaml:"site_visit_official"`
}

// CTYConfig enables continent/country fill-in from a cty.plist prefix file.
type CTYConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// RecorderConfig controls the write-only SQLite contact journal.
type RecorderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	File      string `yaml:"file"`
	QueueSize int    `yaml:"queue_size"`
}

// MQTTConfig publishes snapshots to a broker for remote displays.
type MQTTConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Broker          string  `yaml:"broker"`
	Port            int     `yaml:"port"`
	Topic           string  `yaml:"topic"`
	ClientID        string  `yaml:"client_id"`
	Username        string  `yaml:"username"`
	Password        string  `yaml:"password"`
	QoS             byte    `yaml:"qos"`
	Retain          bool    `yaml:"retain"`
	IntervalSeconds float64 `yaml:"interval_seconds"`
}

// UIConfig selects the console renderer: "headless" or "tview".
type UIConfig struct {
	Mode                 string `yaml:"mode"`
	StatsIntervalSeconds int    `yaml:"stats_interval_seconds"`
}

// LoggingConfig contains optional daily log files.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// AssetsConfig drives cmd/fetchassets.
type AssetsConfig struct {
	LeafletVersion string  `yaml:"leaflet_version"`
	BaseURL        string  `yaml:"base_url"`
	Dir            string  `yaml:"dir"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Default returns a configuration populated with the stock values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file, or every *.yaml/*.yml file in a directory, on top
// of the defaults. Missing files surface as errors wrapping os.ErrNotExist.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = yamlFilesIn(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no YAML files in config directory %s: %w", path, os.ErrNotExist)
		}
	}

	cfg := &Config{}
	cfg.applyDefaults()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}
	// Re-apply so keys explicitly set to zero fall back to sane values.
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = path
	return cfg, nil
}

func yamlFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Config) applyDefaults() {
	n := &c.N3FJP
	if strings.TrimSpace(n.Host) == "" {
		n.Host = "127.0.0.1"
	}
	if n.Port <= 0 {
		n.Port = 1100
	}
	if strings.TrimSpace(n.Transport) == "" {
		n.Transport = "native"
	}
	n.Transport = strutil.NormalizeLower(n.Transport)
	if n.SeedCount <= 0 {
		n.SeedCount = 5000
	}
	if n.TailCount <= 0 {
		n.TailCount = 80
	}
	if n.RefreshSeconds <= 0 {
		n.RefreshSeconds = 3
	}
	if n.SeedTimeoutSeconds <= 0 {
		n.SeedTimeoutSeconds = 60
	}
	if n.SeedIdleSeconds <= 0 {
		n.SeedIdleSeconds = 1.75
	}
	if n.PollTimeoutSeconds <= 0 {
		n.PollTimeoutSeconds = 8
	}
	if n.PollIdleSeconds <= 0 {
		n.PollIdleSeconds = 0.75
	}
	if n.StopGraceSeconds <= 0 {
		n.StopGraceSeconds = 2
	}

	if strings.TrimSpace(c.Web.Host) == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 8080
	}
	if strings.TrimSpace(c.Web.WWWDir) == "" {
		c.Web.WWWDir = "www"
	}

	if strings.TrimSpace(c.Event.ClubName) == "" {
		c.Event.ClubName = "Amateur Radio Club"
	}
	if strings.TrimSpace(c.Event.Callsign) == "" {
		c.Event.Callsign = "N0CALL"
	}
	if strings.TrimSpace(c.Event.EventName) == "" {
		c.Event.EventName = "Field Day"
	}
	if c.Event.BandGoals == nil {
		c.Event.BandGoals = map[string]int{}
	}

	if strings.TrimSpace(c.Scoring.FieldDayClass) == "" {
		c.Scoring.FieldDayClass = "1A"
	}

	if strings.TrimSpace(c.CTY.File) == "" {
		c.CTY.File = "data/cty/cty.plist"
	}

	if strings.TrimSpace(c.Recorder.File) == "" {
		c.Recorder.File = "data/records/contacts.db"
	}
	if c.Recorder.QueueSize <= 0 {
		c.Recorder.QueueSize = 1024
	}

	if c.MQTT.Port <= 0 {
		c.MQTT.Port = 1883
	}
	if strings.TrimSpace(c.MQTT.Topic) == "" {
		c.MQTT.Topic = "scoreboard/snapshot"
	}
	if c.MQTT.IntervalSeconds <= 0 {
		c.MQTT.IntervalSeconds = 10
	}

	if strings.TrimSpace(c.UI.Mode) == "" {
		c.UI.Mode = "headless"
	}
	c.UI.Mode = strutil.NormalizeLower(c.UI.Mode)
	if c.UI.StatsIntervalSeconds <= 0 {
		c.UI.StatsIntervalSeconds = 30
	}

	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = "data/logs"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 7
	}

	if strings.TrimSpace(c.Assets.LeafletVersion) == "" {
		c.Assets.LeafletVersion = "1.9.4"
	}
	if strings.TrimSpace(c.Assets.BaseURL) == "" {
		c.Assets.BaseURL = "https://unpkg.com"
	}
	if strings.TrimSpace(c.Assets.Dir) == "" {
		c.Assets.Dir = filepath.Join(c.Web.WWWDir, "lib")
	}
	if c.Assets.TimeoutSeconds <= 0 {
		c.Assets.TimeoutSeconds = 30
	}
}

// Validate rejects settings the poller or listeners cannot run with.
func (c *Config) Validate() error {
	switch c.N3FJP.Transport {
	case "native", "telnet":
	default:
		return fmt.Errorf("n3fjp.transport must be native or telnet, got %q", c.N3FJP.Transport)
	}
	if c.N3FJP.Port > 65535 || c.Web.Port > 65535 {
		return fmt.Errorf("port out of range (n3fjp=%d web=%d)", c.N3FJP.Port, c.Web.Port)
	}
	if c.N3FJP.PollIdleSeconds > c.N3FJP.PollTimeoutSeconds {
		return fmt.Errorf("n3fjp.poll_idle_seconds (%.2f) exceeds poll_timeout_seconds (%.2f)",
			c.N3FJP.PollIdleSeconds, c.N3FJP.PollTimeoutSeconds)
	}
	if c.N3FJP.SeedIdleSeconds > c.N3FJP.SeedTimeoutSeconds {
		return fmt.Errorf("n3fjp.seed_idle_seconds (%.2f) exceeds seed_timeout_seconds (%.2f)",
			c.N3FJP.SeedIdleSeconds, c.N3FJP.SeedTimeoutSeconds)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
	}
	switch c.UI.Mode {
	case "headless", "tview":
	default:
		return fmt.Errorf("ui.mode must be headless or tview, got %q", c.UI.Mode)
	}
	if c.Event.Year < 0 {
		return fmt.Errorf("event.year must not be negative, got %d", c.Event.Year)
	}
	return nil
}

// Seconds converts a fractional seconds setting into a time.Duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("N3FJP: %s:%d (transport=%s)\n", c.N3FJP.Host, c.N3FJP.Port, c.N3FJP.Transport)
	fmt.Printf("Polling: seed=%d tail=%d every %.1fs\n", c.N3FJP.SeedCount, c.N3FJP.TailCount, c.N3FJP.RefreshSeconds)
	fmt.Printf("Web: %s:%d (static %s)\n", c.Web.Host, c.Web.Port, c.Web.WWWDir)
	fmt.Printf("Event: %s %s (%s)\n", c.Event.Callsign, c.Event.EventName, c.Event.ClubName)
	fmt.Printf("Scoring: class %s, emergency power=%v\n", c.Scoring.FieldDayClass, c.Scoring.EmergencyPower)
	if c.CTY.Enabled {
		fmt.Printf("CTY: %s\n", c.CTY.File)
	}
	if c.Recorder.Enabled {
		fmt.Printf("Recorder: %s\n", c.Recorder.File)
	}
	if c.MQTT.Enabled {
		fmt.Printf("MQTT: %s:%d (topic: %s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.Topic)
	}
}
