package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderContext(t *testing.T) {
	SetTelemetryReporter(nil)

	base := fmt.Errorf("duplicate entry")
	ee := New(base).
		Component("migration").
		Category(CategoryDatabase).
		Priority("urgent").
		DoctypeContext("Ticket", "HD Ticket").
		Build()

	assert.Equal(t, "migration", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.Priority, "unknown priorities fall back to medium")
	assert.Equal(t, "Ticket", ee.GetContext()["old_doctype"])
	assert.Equal(t, "HD Ticket", ee.GetContext()["new_doctype"])
	assert.ErrorIs(t, ee, base)
	assert.True(t, IsCategory(fmt.Errorf("wrapped: %w", ee), CategoryDatabase))
	assert.False(t, IsNotFound(ee))
}

func TestReporterReceivesErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("boom")).Category(CategoryState).Component("cli").Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"cancel", fmt.Errorf("copy: context canceled"), "migration", CategoryCancellation},
		{"network", fmt.Errorf("dial tcp: connection refused"), "datastore", CategoryNetwork},
		{"file", fmt.Errorf("open x: no such file or directory"), "configuration", CategoryFileIO},
		{"component fallback", fmt.Errorf("Error 1146"), "datastore", CategoryDatabase},
		{"generic", fmt.Errorf("odd"), "elsewhere", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestScrubMessageForPrivacy(t *testing.T) {
	tests := []struct {
		in      string
		secret  string
		keepStr string
	}{
		{"dial helpdesk:s3cret@tcp(127.0.0.1:3306)/db failed", "s3cret", "helpdesk:****@tcp("},
		{"POST https://hooks.example.com/x?token=abc failed", "abc", "https://hooks.example.com/x?[REDACTED]"},
		{"bad config password=hunter2", "hunter2", "bad config"},
	}

	for _, tt := range tests {
		got := scrubMessageForPrivacy(tt.in)
		assert.NotContains(t, got, tt.secret)
		assert.Contains(t, got, tt.keepStr)
	}
}
