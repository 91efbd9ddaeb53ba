package planner

import "time"

// =============================================================================
// CONFIG - Explicit timezone + rollover configuration
// =============================================================================

// Config carries the timezone and rollover hour that define how wall-clock
// time maps to logical days. It is constructed once, validated, and passed
// in wherever day arithmetic happens. There is no process-wide default.
type Config struct {
	loc          *time.Location
	rolloverHour int
}

// NewConfig validates and builds a Config. The rollover hour is the local
// hour before which a timestamp still counts toward the previous logical
// day; it must be in 0..23.
func NewConfig(loc *time.Location, rolloverHour int) (Config, error) {
	if loc == nil {
		return Config{}, ErrNilLocation
	}
	if rolloverHour < 0 || rolloverHour > 23 {
		return Config{}, ErrInvalidRolloverHour
	}
	return Config{loc: loc, rolloverHour: rolloverHour}, nil
}

// MustConfig is NewConfig for static configuration known to be valid.
// Panics on invalid input.
func MustConfig(loc *time.Location, rolloverHour int) Config {
	cfg, err := NewConfig(loc, rolloverHour)
	if err != nil {
		panic(err)
	}
	return cfg
}

// UTCMidnight is a convenience config: UTC timezone, days roll at 00:00.
func UTCMidnight() Config {
	return Config{loc: time.UTC, rolloverHour: 0}
}

func (c Config) Location() *time.Location { return c.loc }
func (c Config) RolloverHour() int        { return c.rolloverHour }

// Zone returns the timezone's IANA name, used in cache keys.
func (c Config) Zone() string { return c.loc.String() }

// IsZero reports whether the config was never constructed. A zero Config
// is rejected by the components that receive one.
func (c Config) IsZero() bool { return c.loc == nil }
