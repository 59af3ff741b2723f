package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabasePath string
	Timezone     *time.Location
	FamilyID     int64

	// MorningTime is the local "HH:MM" at which the daily agenda is sent
	// and today's task occurrences are materialized.
	MorningTime string

	// Telegram delivery is optional; without a token the agenda job is a
	// no-op and mutations only emit change events.
	TelegramToken string
	FamilyChatID  int64

	// CalDAV publishing is optional.
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	MaxInstances int
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/hearthplan.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Europe/Moscow"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	familyID := int64(1)
	if v := os.Getenv("FAMILY_ID"); v != "" {
		familyID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("FAMILY_ID must be a number")
		}
	}

	morningTime := os.Getenv("MORNING_TIME")
	if morningTime == "" {
		morningTime = "08:00"
	}

	var chatID int64
	if v := os.Getenv("FAMILY_CHAT_ID"); v != "" {
		chatID, _ = strconv.ParseInt(v, 10, 64)
	}

	maxInstances := 0
	if v := os.Getenv("MAX_INSTANCES"); v != "" {
		maxInstances, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MAX_INSTANCES must be a number")
		}
	}

	return &Config{
		DatabasePath:   dbPath,
		Timezone:       tz,
		FamilyID:       familyID,
		MorningTime:    morningTime,
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		FamilyChatID:   chatID,
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar: os.Getenv("CALDAV_CALENDAR_PATH"),
		MaxInstances:   maxInstances,
	}, nil
}
