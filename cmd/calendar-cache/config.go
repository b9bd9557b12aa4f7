package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
)

// defaultRealizationOrigin serves /rest/realization/<id>.
const defaultRealizationOrigin = "https://sisu.example.edu/kori/api"

// defaultPrecacheURLs are the course calendars requested by every client.
var defaultPrecacheURLs = []string{
	"https://calendar.example.edu/ical/course-1.ics",
	"https://calendar.example.edu/ical/course-2.ics",
	"https://calendar.example.edu/ical/course-3.ics",
	"https://calendar.example.edu/ical/course-4.ics",
	"https://calendar.example.edu/ical/course-5.ics",
	"https://calendar.example.edu/ical/course-6.ics",
}

type Config struct {
	Port              int           `yaml:"port"`
	RealizationOrigin string        `yaml:"realizationOrigin"`
	Store             string        `yaml:"store"`
	DB                string        `yaml:"db"`
	Coalesce          bool          `yaml:"coalesce"`
	UpstreamTimeout   time.Duration `yaml:"upstreamTimeout"`
	// Calendar URLs fetched in the background at startup.
	Precache []string `yaml:"precache"`
}

func defaultConfig() Config {
	return Config{
		Port:              3001,
		RealizationOrigin: defaultRealizationOrigin,
		Store:             storeMemory,
		DB:                "memory",
		Precache:          append([]string(nil), defaultPrecacheURLs...),
	}
}

func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.RealizationOrigin == "" {
		return errors.New("realization origin is required")
	}
	if c.Store != storeMemory && c.Store != storeSQLite {
		return errors.Errorf("unknown store %q (want %s or %s)", c.Store, storeMemory, storeSQLite)
	}
	if c.UpstreamTimeout < 0 {
		return errors.New("upstream timeout must not be negative")
	}
	return nil
}
