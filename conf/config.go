package conf

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var (
	Path string
	Port int

	global *Config
)

func G() *Config {
	if global == nil {
		panic("configuration not loaded")
	}

	return global
}

func ReplaceGlobals(cfg *Config) {
	global = cfg
}

func LoadEnv(cli *cli.Context) error {
	path := cli.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = homeDir + "/.flarex/insights"
	}

	Path = path
	Port = cli.Int("port")

	// .env in the working directory first, then in the config path
	if err := LoadDotEnv(".env"); err != nil {
		return err
	}

	return LoadDotEnv(filepath.Join(Path, ".env"))
}

// LoadConfig reads config.yaml from Path, falling back to
// config.example.yaml and finally to the built-in defaults.
func LoadConfig() (*Config, error) {
	f, err := os.Open(Path + "/config.yaml")
	if err != nil {
		f, err = os.Open(Path + "/config.example.yaml")
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Default(), nil
			}

			return nil, err
		}
	}
	defer f.Close()

	r := NewEnvExpandedReader(f)

	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Name: "insights",
		SoundCloud: SoundCloud{
			Token:      os.Getenv("SOUNDCLOUD_OAUTH_TOKEN"),
			APIBaseURL: "https://api-v2.soundcloud.com",
			GraphQLURL: "https://graph.soundcloud.com/graphql",
			Window:     "DAYS_30",
			Limit:      50,
			TrackLimit: 200,
			GeoTracks:  20,
			Interval:   300 * time.Millisecond,
			Timeout:    30 * time.Second,
		},
		Output: Output{
			Dir: ".",
		},
		Persistence: Persistence{
			Driver: File,
			Name:   "soundcloud_insights",
		},
	}
}

type Config struct {
	Name        string               `yaml:"name"`
	SoundCloud  SoundCloud           `yaml:"soundcloud"`
	Output      Output               `yaml:"output"`
	Persistence Persistence          `yaml:"persistence"`
	EventBus    EventBus             `yaml:"eventBus"`
	Cities      map[string][]float64 `yaml:"cities"`
}

type SoundCloud struct {
	Token      string
	APIBaseURL string
	GraphQLURL string
	Window     string
	Limit      int
	TrackLimit int
	GeoTracks  int
	Interval   time.Duration
	Timeout    time.Duration
}

func (cfg *SoundCloud) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Token      string `yaml:"token"`
		APIBaseURL string `yaml:"apiBaseUrl"`
		GraphQLURL string `yaml:"graphqlUrl"`
		Window     string `yaml:"window"`
		Limit      int    `yaml:"limit"`
		TrackLimit int    `yaml:"trackLimit"`
		GeoTracks  int    `yaml:"geoTracks"`
		Interval   string `yaml:"interval"`
		Timeout    string `yaml:"timeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Token != "" {
		cfg.Token = raw.Token
	}

	if raw.APIBaseURL != "" {
		cfg.APIBaseURL = raw.APIBaseURL
	}

	if raw.GraphQLURL != "" {
		cfg.GraphQLURL = raw.GraphQLURL
	}

	if raw.Window != "" {
		cfg.Window = raw.Window
	}

	if raw.Limit > 0 {
		cfg.Limit = raw.Limit
	}

	if raw.TrackLimit > 0 {
		cfg.TrackLimit = raw.TrackLimit
	}

	if raw.GeoTracks > 0 {
		cfg.GeoTracks = raw.GeoTracks
	}

	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return err
		}

		cfg.Interval = interval
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return err
		}

		cfg.Timeout = timeout
	}

	return nil
}

type Output struct {
	Dir string `yaml:"dir"`
}

type PersistenceDriver int

const (
	File PersistenceDriver = iota
	SQLite
	BadgerDB
)

func ParsePersistenceDriver(driver string) (PersistenceDriver, error) {
	switch driver {
	case "file", "":
		return File, nil
	case "sqlite":
		return SQLite, nil
	case "badger":
		return BadgerDB, nil
	default:
		return -1, errors.New("driver not supported")
	}
}

func (driver PersistenceDriver) String() string {
	switch driver {
	case File:
		return "file"
	case SQLite:
		return "sqlite"
	case BadgerDB:
		return "badger"
	default:
		return "unknwon"
	}
}

type Persistence struct {
	Driver PersistenceDriver
	Name   string
	Host   string
	InMem  bool
}

func (p *Persistence) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Driver string `yaml:"driver"`
		Name   string `yaml:"name"`
		Host   string `yaml:"host"`
		InMem  bool   `yaml:"inmem"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	driver, err := ParsePersistenceDriver(raw.Driver)
	if err != nil {
		return err
	}

	p.Driver = driver

	if raw.Name != "" {
		p.Name = raw.Name
	}

	p.Host = raw.Host

	p.InMem = raw.InMem

	return nil
}

// ReportStore resolves an empty persistence host: the file driver shares
// the export directory so the dashboard serves what scrape wrote, the
// database drivers live under Path.
func (cfg *Config) ReportStore() Persistence {
	p := cfg.Persistence
	if p.Host != "" {
		return p
	}

	switch p.Driver {
	case File:
		p.Host = cfg.Output.Dir
	default:
		p.Host = Path
	}

	return p
}

type EventBus struct {
	URL   string `yaml:"url"`
	Creds string `yaml:"creds"`
}

// CredsFile is the NATS credentials file, user.creds under Path by default.
func (bus EventBus) CredsFile() string {
	if bus.Creds != "" {
		return bus.Creds
	}

	return filepath.Join(Path, "user.creds")
}
