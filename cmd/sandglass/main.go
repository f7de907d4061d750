// Command sandglass runs the production cycle timer and serves it to display
// boards, MQTT subscribers and a push-button panel.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sweeney/sandglass/internal/calendar"
	"github.com/sweeney/sandglass/internal/config"
	"github.com/sweeney/sandglass/internal/gpio"
	"github.com/sweeney/sandglass/internal/logger"
)

var version = "dev"

// Globals are the flags shared by every command.
type Globals struct {
	Config string `help:"Configuration file (YAML or JSON). Defaults are used when empty." short:"c" type:"path" env:"SANDGLASS_CONFIG"`
}

var CLI struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Serve   ServeCmd   `cmd:"" help:"Run the timer daemon." default:"withargs"`
	Project ProjectCmd `cmd:"" help:"Print when a given amount of working time started at a given instant completes."`
	Check   CheckCmd   `cmd:"" help:"Validate the configuration and print the working calendar."`
	Buttons ButtonsCmd `cmd:"" help:"Print the current state of the panel buttons and exit."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sandglass"),
		kong.Description("Business-calendar countdown to the next production line movement."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ServeCmd runs the daemon.
type ServeCmd struct {
	Port   int    `help:"Override app.port."`
	Broker string `help:"Override mqtt.broker (\"off\" disables MQTT)."`
}

// Run loads the configuration and serves until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.App.Port = c.Port
	}
	switch c.Broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = c.Broker
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	return run(cfg, log)
}

// ProjectCmd prints a projected movement instant.
type ProjectCmd struct {
	From    string  `help:"Start instant, RFC 3339 or \"now\"." default:"now"`
	Seconds float64 `help:"Working seconds to project." required:""`
}

// Run projects the working time and prints the result.
func (c *ProjectCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	return project(os.Stdout, cfg, c.From, c.Seconds, time.Now())
}

func project(w io.Writer, cfg config.Config, from string, seconds float64, now time.Time) error {
	cal, err := cfg.BuildCalendar()
	if err != nil {
		return err
	}
	locale, err := cfg.Locale()
	if err != nil {
		return err
	}
	if seconds < 0 {
		return fmt.Errorf("seconds must not be negative")
	}

	start := now
	if from != "" && from != "now" {
		start, err = time.Parse(time.RFC3339, from)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
	}
	start = start.In(cal.Location())

	work := time.Duration(seconds * float64(time.Second))
	move, err := cal.Project(start, work)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "from:     %s (%s)\n", locale.Format(start), start.Format(time.RFC3339))
	fmt.Fprintf(w, "work:     %s\n", work)
	fmt.Fprintf(w, "movement: %s (%s)\n", locale.Format(move), move.Format(time.RFC3339))
	return nil
}

// CheckCmd validates the configuration.
type CheckCmd struct{}

// Run prints the effective calendar.
func (c *CheckCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	return check(os.Stdout, cfg, time.Now())
}

func check(w io.Writer, cfg config.Config, now time.Time) error {
	cal, err := cfg.BuildCalendar()
	if err != nil {
		return err
	}
	locale, err := cfg.Locale()
	if err != nil {
		return err
	}

	intervals := make([]string, 0, len(cal.Intervals()))
	var daily time.Duration
	for _, iv := range cal.Intervals() {
		intervals = append(intervals, iv.String())
		daily += iv.Length()
	}

	fmt.Fprintln(w, "configuration OK")
	fmt.Fprintf(w, "cycle:          %s\n", cfg.CycleDuration())
	fmt.Fprintf(w, "intervals:      %s (%s per day)\n", strings.Join(intervals, ", "), daily)
	fmt.Fprintf(w, "all days valid: %t\n", cal.AllDaysValid())
	fmt.Fprintf(w, "timezone:       %s\n", cal.Location())
	fmt.Fprintf(w, "locale:         %s\n", locale)
	fmt.Fprintf(w, "http:           %s\n", cfg.Addr())
	if cfg.MQTT.Broker != "" {
		fmt.Fprintf(w, "mqtt:           %s\n", cfg.MQTT.Broker)
	} else {
		fmt.Fprintln(w, "mqtt:           disabled")
	}

	if cfg.Calendar.Holidays == config.HolidaysNone || cal.AllDaysValid() {
		fmt.Fprintln(w, "holidays:       none")
		return nil
	}
	year := now.In(cal.Location()).Year()
	fmt.Fprintf(w, "holidays %d:\n", year)
	for _, h := range (calendar.French{WorkWhitMonday: cfg.Calendar.WorkWhitMonday}).Holidays(year) {
		fmt.Fprintf(w, "  %-10s %s\n", h.Date.Format("2006-01-02"), h.Name)
	}
	return nil
}

// ButtonsCmd reads the panel once.
type ButtonsCmd struct{}

// Run prints the button levels.
func (c *ButtonsCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIOPins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()
	return printButtons(os.Stdout, reader)
}

func printButtons(w io.Writer, reader gpio.Reader) error {
	b, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(w, "start: %s, pause: %s, stop: %s\n", pressedString(b.Start), pressedString(b.Pause), pressedString(b.Stop))
	return nil
}

func pressedString(down bool) string {
	if down {
		return "DOWN"
	}
	return "UP"
}
