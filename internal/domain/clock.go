package domain

import (
	"log/slog"
	"time"
)

// TimeLayout is the wire timestamp format, local and UTC alike.
const TimeLayout = "2006-01-02T15:04:05"

// Clock converts register-local timestamps to UTC wire timestamps.
//
// POS clocks drift and occasionally reset to their epoch; a timestamp dated
// before MinYear is treated as garbage and replaced with the current instant
// so the transaction still surfaces in the ingestion frontend. That means two
// logically old-dated transactions can receive different UTC stamps depending
// on when they are processed; accepted behavior, not a defect.
type Clock struct {
	Loc     *time.Location
	MinYear int
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewClock resolves the named zone. An unresolvable zone falls back to UTC.
func NewClock(timezone string, minYear int, logger *slog.Logger) Clock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", slog.String("timezone", timezone), slog.String("error", err.Error()))
		loc = time.UTC
	}
	return Clock{Loc: loc, MinYear: minYear, Now: time.Now, Logger: logger}
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToUTC converts a register-local timestamp string to a UTC wire timestamp.
// Unparsable or implausibly old inputs yield the current UTC instant.
func (c Clock) ToUTC(local string) string {
	var t time.Time
	var err error
	for _, layout := range localLayouts {
		t, err = time.ParseInLocation(layout, local, c.Loc)
		if err == nil {
			break
		}
	}
	if err != nil {
		c.Logger.Warn("unparsable local timestamp, using current UTC time", slog.String("timestamp", local))
		return c.Now().UTC().Format(TimeLayout)
	}
	if t.Year() < c.MinYear {
		now := c.Now().In(c.Loc)
		c.Logger.Info("replacing stale timestamp with current time",
			slog.String("timestamp", local), slog.String("now", now.Format(TimeLayout)))
		t = now
	}
	return t.UTC().Format(TimeLayout)
}
