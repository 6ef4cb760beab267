package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/helpdesk-tools/deskmigrate/internal/datastore"
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/errors"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// Verifier checks the committed data changes of a run.
type Verifier struct {
	store *datastore.Store
	log   logger.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(store *datastore.Store, log logger.Logger) *Verifier {
	return &Verifier{store: store, log: log}
}

// Verify checks that every copied row key is present in its new table and,
// when those steps ran, that the settings and attachments were moved.
func (v *Verifier) Verify(ctx context.Context, stats *Stats, opts Options) error {
	var problems []string

	for i := range stats.Doctypes {
		t := &stats.Doctypes[i]
		if t.Status != StatusCopied {
			continue
		}
		missing, err := v.store.MissingKeys(ctx, doctypes.TableName(t.Old), doctypes.TableName(t.New))
		if err != nil {
			return err
		}
		if missing > 0 {
			problems = append(problems, fmt.Sprintf("%d rows of %q are missing from %q", missing, t.Old, t.New))
		}
	}

	if opts.Settings {
		found, err := v.checkSettings(ctx, stats.Settings)
		if err != nil {
			return err
		}
		problems = append(problems, found...)
	}

	if opts.Attachments {
		files := doctypes.TableName(doctypes.FileDoctype)
		for _, pair := range doctypes.Mapping {
			n, err := v.store.CountWhere(ctx, files, fileAttachedColumn, pair.Old)
			if err != nil {
				return err
			}
			if n > 0 {
				problems = append(problems, fmt.Sprintf("%d files still attached to %q", n, pair.Old))
			}
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			v.log.Error("verification failed", logger.String("problem", p))
		}
		return errors.Newf("verification failed: %s", strings.Join(problems, "; ")).
			Component("migration").
			Category(errors.CategoryValidation).
			Priority(errors.PriorityCritical).
			Context("problems", len(problems)).
			Build()
	}

	v.log.Info("verification passed")
	return nil
}

func (v *Verifier) checkSettings(ctx context.Context, moved *SettingsStats) ([]string, error) {
	var problems []string
	singles := doctypes.TableName(doctypes.SinglesDoctype)

	current, err := v.store.CountWhere(ctx, singles, singlesDoctypeColumn, doctypes.NewSettings)
	if err != nil {
		return nil, err
	}
	if moved != nil && moved.MovedRows > 0 && current == 0 {
		problems = append(problems, fmt.Sprintf("%d rows were moved but %q has none", moved.MovedRows, doctypes.NewSettings))
	}

	left, err := v.store.CountWhere(ctx, singles, singlesDoctypeColumn, doctypes.OldSettings)
	if err != nil {
		return nil, err
	}
	if left > 0 {
		problems = append(problems, fmt.Sprintf("%d %q rows remain", left, doctypes.OldSettings))
	}

	dups, err := v.store.DuplicateValues(ctx, singles, "field", singlesDoctypeColumn, doctypes.NewSettings)
	if err != nil {
		return nil, err
	}
	if dups > 0 {
		problems = append(problems, fmt.Sprintf("%d %q fields are duplicated", dups, doctypes.NewSettings))
	}
	return problems, nil
}
