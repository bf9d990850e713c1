package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// ParseDuration accepts Go durations ("90m", "24h") and bare numbers,
// which are read as hours.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var hours float64
	if _, err := fmt.Sscanf(s, "%g", &hours); err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// OrDash renders nil or empty values as "-" for table output.
func OrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
