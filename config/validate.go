package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrExamDateEndpointMissing = errors.New("exam_date: base_url or host+port must be configured")
	ErrExamDateTimeout         = errors.New("exam_date: timeout_ms must be positive")
	ErrExamDateRetryCount      = errors.New("exam_date: retry_count must be at least 1")
	ErrExamDateRetryDelay      = errors.New("exam_date: retry_delay_ms must be positive")
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate reports the first configuration problem that would make the
// services unusable. A missing exam-date endpoint is always fatal.
func (c *Config) Validate() error {
	if err := c.ExamDate.Validate(); err != nil {
		return err
	}

	if c.Server.Timezone != "" {
		if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
			return fmt.Errorf("server.timezone %q: %w", c.Server.Timezone, err)
		}
	}

	for i, d := range c.Dedup.Dependents {
		if !identifierPattern.MatchString(d.Table) {
			return fmt.Errorf("dedup.dependents[%d]: invalid table name %q", i, d.Table)
		}
		if !identifierPattern.MatchString(d.Column) {
			return fmt.Errorf("dedup.dependents[%d]: invalid column name %q", i, d.Column)
		}
	}

	if c.Dedup.Schedule.Enabled && c.Dedup.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("dedup.schedule.interval_minutes must be positive when the schedule is enabled")
	}

	return nil
}

func (c ExamDateConfig) Validate() error {
	if c.BaseURL == "" && (c.Host == "" || c.Port <= 0) {
		return ErrExamDateEndpointMissing
	}
	if c.TimeoutMs <= 0 {
		return ErrExamDateTimeout
	}
	if c.RetryCount < 1 {
		return ErrExamDateRetryCount
	}
	if c.RetryDelayMs <= 0 {
		return ErrExamDateRetryDelay
	}
	return nil
}

// Location returns the clinic time zone, falling back to the host's local zone.
func (s ServerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
