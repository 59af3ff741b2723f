package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthplan/hearthplan/config"
	"github.com/hearthplan/hearthplan/internal/clients/caldav"
	"github.com/hearthplan/hearthplan/internal/domain"
	"github.com/hearthplan/hearthplan/internal/notify"
	"github.com/hearthplan/hearthplan/internal/scheduler"
	"github.com/hearthplan/hearthplan/internal/service"
	"github.com/hearthplan/hearthplan/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	bus := notify.NewBus()
	seriesSvc := service.NewSeriesService(store, bus)
	instanceSvc := service.NewInstanceService(store)
	if cfg.MaxInstances > 0 {
		instanceSvc.SetMaxInstances(cfg.MaxInstances)
	}
	migrationSvc := service.NewMigrationService(store, seriesSvc)

	// Convert any leftover repeating tasks from the pre-series schema.
	if migrated, err := migrationSvc.MigrateLegacyTasks(cfg.FamilyID); err != nil {
		log.Printf("Legacy task migration: %v", err)
	} else if migrated > 0 {
		log.Printf("Migrated %d legacy repeating tasks to series", migrated)
	}

	if cfg.CalDAVURL != "" {
		cal := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		if cfg.CalDAVCalendar != "" {
			cal.SetCalendarPath(cfg.CalDAVCalendar)
		}
		bus.Subscribe(func(t domain.SeriesType) {
			republish(cal, store, cfg.FamilyID, t)
		})
	}

	sched := scheduler.New(cfg, instanceSvc)
	if cfg.TelegramToken != "" && cfg.FamilyChatID != 0 {
		sender, err := notify.NewTelegramSender(cfg.TelegramToken, cfg.FamilyChatID)
		if err != nil {
			log.Fatalf("Failed to init telegram sender: %v", err)
		}
		sched.SetSender(sender)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	log.Println("Hearthplan started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
}

// republish pushes every active series of the changed type to the CalDAV
// calendar. A publish failure is logged and skipped; the next change will
// retry it.
func republish(cal *caldav.Client, store *storage.Storage, familyID int64, t domain.SeriesType) {
	if !cal.IsConfigured() {
		return
	}
	series, err := store.ListSeriesByFamily(familyID, t, true)
	if err != nil {
		log.Printf("CalDAV republish: list series: %v", err)
		return
	}
	for _, sr := range series {
		if err := cal.PublishSeries(sr); err != nil {
			log.Printf("CalDAV republish: series %d: %v", sr.ID, err)
		}
	}
}
