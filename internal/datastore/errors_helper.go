package datastore

import (
	"fmt"
	"strings"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

// dbError creates a categorized database error with context pairs
func dbError(err error, operation, priority string, context ...any) error {
	if priority == "" {
		priority = priorityFor(err)
	}

	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(priority).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// cancelledError wraps a context error
func cancelledError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryCancellation).
		Context("operation", operation).
		Build()
}

// priorityFor escalates errors that indicate a damaged or locked database
func priorityFor(err error) string {
	if err == nil {
		return errors.PriorityMedium
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "corrupt"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "disk full"):
		return errors.PriorityCritical
	case strings.Contains(msg, "lock wait timeout"),
		strings.Contains(msg, "database is locked"):
		return errors.PriorityHigh
	default:
		return errors.PriorityMedium
	}
}
