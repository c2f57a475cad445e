package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// repoPattern validates repository references in the format "owner/repo".
var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
func Validate(c *Config) error {
	var errors []string

	if strings.TrimSpace(c.AppName) == "" {
		errors = append(errors, ValidationError{Field: "app_name", Message: "app_name cannot be empty"}.Error())
	}

	if err := validateLogging(c); err != nil {
		errors = append(errors, err.Error())
	}

	if c.RefreshInterval != "" {
		d, err := time.ParseDuration(c.RefreshInterval)
		if err != nil || d <= 0 {
			errors = append(errors, ValidationError{
				Field:   "refresh_interval",
				Message: fmt.Sprintf("invalid duration '%s'", c.RefreshInterval),
			}.Error())
		}
	}

	for i, repo := range c.Repos {
		if !repoPattern.MatchString(repo) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("repos[%d]", i),
				Message: fmt.Sprintf("invalid repository '%s' (must be owner/repo format)", repo),
			}.Error())
		}
	}

	if err := validateFeed(c.Feed); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateLogging(c *Config) error {
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return ValidationError{
				Field:   "log_level",
				Message: err.Error(),
			}
		}
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("invalid log format '%s' (must be text or json)", c.LogFormat),
		}
	}

	return nil
}

func validateFeed(f Feed) error {
	if f.Owner == "" && f.Repo == "" {
		return nil
	}

	if f.Owner == "" || f.Repo == "" {
		return ValidationError{
			Field:   "feed",
			Message: "owner and repo must be set together",
		}
	}

	if !repoPattern.MatchString(f.Owner + "/" + f.Repo) {
		return ValidationError{
			Field:   "feed",
			Message: fmt.Sprintf("invalid repository '%s/%s'", f.Owner, f.Repo),
		}
	}

	return nil
}
