// Package logging configures the structured logger and holds the field
// names shared across the application, so log output stays uniform and
// filterable regardless of which component emitted it.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Standardized field names for structured logging.
const (
	FieldComponent  = "component"
	FieldCommitment = "commitment_id"
	FieldTerm       = "term_id"
	FieldPayment    = "payment_id"
	FieldPeriod     = "period"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldCount      = "count"
	FieldPort       = "port"
	FieldDatabase   = "database"
)

// New builds the application logger. Level comes from LOG_LEVEL (default
// info); FORMAT=json switches to JSON output for log shippers.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
