// Package config loads the daemon configuration file.
//
// The file is YAML; a JSON configuration is valid YAML and loads unchanged.
// Keys absent from the file keep their default value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/sandglass/internal/calendar"
	"github.com/sweeney/sandglass/internal/gpio"
	"github.com/sweeney/sandglass/internal/mqtt"
	"github.com/sweeney/sandglass/internal/wire"
)

// Config is the complete daemon configuration.
type Config struct {
	App          App        `yaml:"app"`
	Cycle        Cycle      `yaml:"cycle"`
	Journee      []Interval `yaml:"journee"`
	AllDaysValid bool       `yaml:"allDaysValides"`
	Calendar     Calendar   `yaml:"calendar"`
	MQTT         MQTT       `yaml:"mqtt"`
	GPIO         GPIO       `yaml:"gpio"`
	Log          Log        `yaml:"log"`
}

// App configures the HTTP server.
type App struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Cycle is the cycle length.
type Cycle struct {
	Heures   int `yaml:"heures"`
	Minutes  int `yaml:"minutes"`
	Secondes int `yaml:"secondes"`
}

// Interval is one working interval of the day.
type Interval struct {
	Debut HeureMinute `yaml:"debut"`
	Fin   HeureMinute `yaml:"fin"`
}

// HeureMinute is a wall-clock time of day.
type HeureMinute struct {
	Heure  int `yaml:"heure"`
	Minute int `yaml:"minute"`
}

// Calendar configures how dates are evaluated and rendered.
type Calendar struct {
	Timezone string `yaml:"timezone"`
	Holidays string `yaml:"holidays"`
	Locale   string `yaml:"locale"`
	// WorkWhitMonday keeps Whit Monday a working day in the fr set.
	WorkWhitMonday bool `yaml:"work_whit_monday"`
}

// MQTT configures the broker connection. An empty broker disables MQTT.
type MQTT struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
}

// GPIO configures the push-button panel.
type GPIO struct {
	Enabled  bool          `yaml:"enabled"`
	Chip     string        `yaml:"chip"`
	Pins     Pins          `yaml:"pins"`
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
}

// Pins are BCM line numbers.
type Pins struct {
	Start int `yaml:"start"`
	Pause int `yaml:"pause"`
	Stop  int `yaml:"stop"`
}

// Log configures logging. An empty file logs to stderr only.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Holiday set names.
const (
	HolidaysFrench = "fr"
	HolidaysNone   = "none"
)

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		App:   App{Port: 3000},
		Cycle: Cycle{Heures: 1},
		Journee: []Interval{
			{Debut: HeureMinute{Heure: 8}, Fin: HeureMinute{Heure: 12}},
			{Debut: HeureMinute{Heure: 13, Minute: 30}, Fin: HeureMinute{Heure: 17, Minute: 30}},
		},
		Calendar: Calendar{Timezone: "Local", Holidays: HolidaysFrench, Locale: string(wire.LocaleFrench)},
		MQTT:     MQTT{ClientID: "sandglass", TopicPrefix: mqtt.DefaultTopicPrefix, Heartbeat: 15 * time.Minute},
		GPIO: GPIO{
			Chip:     gpio.DefaultChip,
			Pins:     Pins{Start: gpio.DefaultPins.Start, Pause: gpio.DefaultPins.Pause, Stop: gpio.DefaultPins.Stop},
			Poll:     100 * time.Millisecond,
			Debounce: 50 * time.Millisecond,
		},
		Log: Log{Level: "info", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// Load reads and validates the configuration file at path.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and builds the calendar once to surface
// interval errors.
func (c Config) Validate() error {
	if c.App.Port < 1 || c.App.Port > 65535 {
		return fmt.Errorf("config: app.port %d out of range", c.App.Port)
	}
	if c.Cycle.Heures < 0 || c.Cycle.Minutes < 0 || c.Cycle.Secondes < 0 {
		return fmt.Errorf("config: cycle values must not be negative")
	}
	if c.CycleDuration() <= 0 {
		return fmt.Errorf("config: cycle duration must be positive")
	}
	if _, err := c.HolidayProvider(); err != nil {
		return err
	}
	if _, err := c.Locale(); err != nil {
		return fmt.Errorf("config: calendar.locale: %w", err)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("config: mqtt.heartbeat must not be negative")
	}
	if c.GPIO.Enabled {
		if c.GPIO.Poll <= 0 {
			return fmt.Errorf("config: gpio.poll must be positive")
		}
		if c.GPIO.Debounce < 0 {
			return fmt.Errorf("config: gpio.debounce must not be negative")
		}
		p := c.GPIO.Pins
		if p.Start == p.Pause || p.Start == p.Stop || p.Pause == p.Stop {
			return fmt.Errorf("config: gpio.pins must be distinct")
		}
	}
	if _, err := c.BuildCalendar(); err != nil {
		return err
	}
	return nil
}

// CycleDuration returns the configured cycle length.
func (c Config) CycleDuration() time.Duration {
	return time.Duration((c.Cycle.Heures*60+c.Cycle.Minutes)*60+c.Cycle.Secondes) * time.Second
}

// Intervals converts the journee section.
func (c Config) Intervals() []calendar.WorkInterval {
	out := make([]calendar.WorkInterval, len(c.Journee))
	for i, iv := range c.Journee {
		out[i] = calendar.WorkInterval{
			Start: calendar.Clock{Hour: iv.Debut.Heure, Minute: iv.Debut.Minute},
			End:   calendar.Clock{Hour: iv.Fin.Heure, Minute: iv.Fin.Minute},
		}
	}
	return out
}

// Location resolves calendar.timezone. Empty and "Local" mean time.Local.
func (c Config) Location() (*time.Location, error) {
	switch c.Calendar.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: calendar.timezone: %w", err)
	}
	return loc, nil
}

// HolidayProvider resolves calendar.holidays.
func (c Config) HolidayProvider() (calendar.HolidayProvider, error) {
	switch c.Calendar.Holidays {
	case "", HolidaysFrench:
		return calendar.French{WorkWhitMonday: c.Calendar.WorkWhitMonday}, nil
	case HolidaysNone:
		return calendar.None{}, nil
	}
	return nil, fmt.Errorf("config: calendar.holidays: unknown set %q", c.Calendar.Holidays)
}

// Locale resolves calendar.locale.
func (c Config) Locale() (wire.Locale, error) {
	return wire.ParseLocale(c.Calendar.Locale)
}

// BuildCalendar builds the validated working calendar.
func (c Config) BuildCalendar() (*calendar.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	holidays, err := c.HolidayProvider()
	if err != nil {
		return nil, err
	}
	cal, err := calendar.New(c.Intervals(), calendar.Options{
		AllDaysValid: c.AllDaysValid,
		Holidays:     holidays,
		Location:     loc,
	})
	if err != nil {
		return nil, fmt.Errorf("config: journee: %w", err)
	}
	return cal, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.App.Port)
}

// GPIOPins converts the pins section.
func (c Config) GPIOPins() gpio.Pins {
	return gpio.Pins{Start: c.GPIO.Pins.Start, Pause: c.GPIO.Pins.Pause, Stop: c.GPIO.Pins.Stop}
}
