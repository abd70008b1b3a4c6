package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/rs/zerolog"

	"qmgr/config"
	"qmgr/console"
	"qmgr/logger"
	"qmgr/statsdb"
	"qmgr/system"
)

var (
	configPath = flag.String("config", "", "TOML configuration file, built-in workload when empty")
	gui        = flag.Bool("gui", false, "run the terminal monitor")
	steps      = flag.Int("steps", 0, "workload steps")
	dbPath     = flag.String("db", "", "SQLite database receiving stats snapshots")
	jsonPath   = flag.String("json", "", "write the final stats as JSON to this file, - for stdout")
	logPath    = flag.String("log", "", "log file, stdout when empty")
	level      = flag.String("level", "", "log level")
	livelock   = flag.Bool("livelock", false, "livelock prevention")
	silicon    = flag.String("silicon", "", "queue manager silicon: ixp42x-a0, ixp42x-b0 or ixp46x")
	seed       = flag.Int64("seed", 0, "workload random seed")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			With().Timestamp().Logger()
		log.Error().Err(err).Msg("qmgr failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var db *statsdb.DB
	if cfg.DB != "" {
		if db, err = statsdb.Open(cfg.DB); err != nil {
			return err
		}
		defer db.Close()
	}

	if *gui {
		return runGui(cfg, db)
	}
	return runSimple(cfg, db)
}

// loadConfig reads the configuration and applies the flags given on the
// command line on top of it
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "steps":
			cfg.Steps = *steps
		case "db":
			cfg.DB = *dbPath
		case "log":
			cfg.LogFile = *logPath
		case "level":
			cfg.LogLevel = *level
		case "livelock":
			cfg.LivelockPrevention = *livelock
		case "silicon":
			cfg.Silicon = *silicon
		case "seed":
			cfg.Seed = *seed
		}
	})
	return cfg, cfg.Validate()
}

func runSimple(cfg *config.Config, db *statsdb.DB) error {
	log, err := logger.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	c := console.NewSimple(os.Stdout)

	sys, err := system.InitializeSystem(cfg, c, db, log)
	if err != nil {
		c.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = sys.Run(ctx)
	c.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println()
	writeQueues(os.Stdout, sys)
	fmt.Println()
	writeStats(os.Stdout, sys)
	fmt.Println()
	writeLivelock(os.Stdout, sys.Dispatcher.LivelockReport(false))

	return exportJSON(sys)
}

func runGui(cfg *config.Config, db *statsdb.DB) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return fmt.Errorf("couldn't create gui: %w", err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}

	c := console.NewGui(g, "log")
	defer c.Close()

	// the terminal belongs to gocui, log lines go to the log view
	var log zerolog.Logger
	if cfg.LogFile != "" {
		log, err = logger.New(cfg.LogFile, cfg.LogLevel)
	} else {
		log, err = logger.NewWriter(zerolog.ConsoleWriter{
			Out:        consoleWriter{write: c.WriteConsole},
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		}, cfg.LogLevel)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sys *system.System
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		if sys, err = system.InitializeSystem(cfg, c, db, log); err != nil {
			log.Error().Err(err).Msg("initialization failed")
			return
		}
		go updateViews(ctx, g, sys)
		if err := sys.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("run failed")
			return
		}
		log.Info().Msg("simulation done, ctrl-c to quit")
	}()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	cancel()
	<-done
	if sys == nil {
		return nil
	}
	return exportJSON(sys)
}

// exportJSON writes the final counters where -json points
func exportJSON(sys *system.System) error {
	if *jsonPath == "" {
		return nil
	}
	var w io.Writer = os.Stdout
	if *jsonPath != "-" {
		f, err := os.Create(*jsonPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := statsdb.ExportJSON(w, sys.Dispatcher.Stats()); err != nil {
		return fmt.Errorf("export %s: %w", strconv.Quote(*jsonPath), err)
	}
	return nil
}
