package migration

import (
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

// stepError tags an error with the step that failed.
func stepError(err error, step, outcome string) error {
	b := errors.New(err).
		Component("migration").
		Category(categoryOf(err)).
		Context("step", step)
	if outcome != "" {
		b = b.Context("transaction", outcome)
	}
	return b.Build()
}

// doctypeError tags an error with the doctype pair being processed.
func doctypeError(err error, pair doctypes.Pair) error {
	return errors.New(err).
		Component("migration").
		Category(categoryOf(err)).
		DoctypeContext(pair.Old, pair.New).
		Build()
}

func cancelled(err error, step string) error {
	return errors.New(err).
		Component("migration").
		Category(errors.CategoryCancellation).
		Context("step", step).
		Build()
}

// categoryOf keeps the category of an already categorized error.
func categoryOf(err error) errors.ErrorCategory {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return errors.CategoryDatabase
}
