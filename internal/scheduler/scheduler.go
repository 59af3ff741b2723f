package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hearthplan/hearthplan/config"
	"github.com/hearthplan/hearthplan/internal/service"
)

type MessageSender interface {
	SendMessage(text string) error
}

// Scheduler runs the two daily jobs: materializing today's task occurrences
// into completable rows, and sending the family agenda.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	instances *service.InstanceService
	sender    MessageSender
}

func New(cfg *config.Config, instances *service.InstanceService) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Timezone)),
		cfg:       cfg,
		instances: instances,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	at, err := time.Parse("15:04", s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("invalid morning time %q: %w", s.cfg.MorningTime, err)
	}
	morningSpec := fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour())
	if _, err := s.cron.AddFunc(morningSpec, s.morningRun); err != nil {
		return fmt.Errorf("add morning job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, morning: %s)", s.cfg.Timezone, s.cfg.MorningTime)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) morningRun() {
	today := time.Now().In(s.cfg.Timezone)

	created, err := s.instances.MaterializeDay(s.cfg.FamilyID, today)
	if err != nil {
		log.Printf("Error materializing today's tasks: %v", err)
	} else if created > 0 {
		log.Printf("Materialized %d task occurrences for %s", created, today.Format("2006-01-02"))
	}

	s.sendAgenda(today)
}

func (s *Scheduler) sendAgenda(day time.Time) {
	if s.sender == nil {
		return
	}

	occurrences, err := s.instances.ListFamilyOccurrences(s.cfg.FamilyID, day, day)
	if err != nil {
		log.Printf("Error building agenda: %v", err)
		return
	}

	if err := s.sender.SendMessage(service.FormatAgenda(day, occurrences)); err != nil {
		log.Printf("Error sending agenda: %v", err)
	}
}
