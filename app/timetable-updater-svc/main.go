package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/nats-io/nats.go"

	"github.com/otptransit/timetablecore/app/timetable-updater-svc/updatesvc"
	"github.com/otptransit/timetablecore/business/data/gtfsrt"
	"github.com/otptransit/timetablecore/business/data/scheduleload"
	"github.com/otptransit/timetablecore/business/data/timetable"
	"github.com/otptransit/timetablecore/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "TIMETABLE-UPDATER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %+v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		NATS struct {
			URL string `conf:"default:localhost"`
		}
		FeedID          string `conf:"default:default"`
		TimeZone        string `conf:"default:America/Los_Angeles"`
		HTTPPort        int    `conf:"default:5000"`
		RTSubject       string `conf:"default:trip-update-realtime"`
		PruneSchedule   string `conf:"default:0 3 * * *"`
		PruneRetainDays int    `conf:"default:2"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Applies GTFS-RT trip updates to a static schedule graph and serves " +
		"diagnostics about the resulting timetable snapshot"
	const prefix = "TIMETABLE-UPDATER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("loading time zone %s: %w", cfg.TimeZone, err)
	}

	log.Println("main: Initializing database support")
	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		if err := db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	log.Printf("main: loading schedule graph for feed %s\n", cfg.FeedID)
	loader := scheduleload.NewLoader(db)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	graph, err := loader.Load(ctx, cfg.FeedID)
	cancel()
	if err != nil {
		return fmt.Errorf("loading schedule graph: %w", err)
	}
	log.Printf("main: loaded %d patterns for feed %s\n", len(graph.Patterns), cfg.FeedID)

	container := timetable.NewSnapshotContainer()
	applier := timetable.NewUpdateApplier(container, graph,
		scheduleload.NewSynthesizedPatternFactory(loader.Dedup), log)
	decoder := gtfsrt.NewDecoder(cfg.FeedID, loc)

	log.Printf("main: Connecting to NATS\n")
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("unable to establish connection to nats server: %w", err)
	}
	defer func() {
		log.Printf("main: closing connection to NATS")
		natsConnection.Close()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	log.Printf("starting timetable updater\n")
	updatesvc.StartServices(log, updatesvc.Config{
		HTTPPort:      cfg.HTTPPort,
		RTSubject:     cfg.RTSubject,
		PruneSchedule: cfg.PruneSchedule,
		PruneRetain:   cfg.PruneRetainDays,
	}, natsConnection, decoder, applier, container, shutdown)

	return nil
}
