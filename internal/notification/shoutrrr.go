// Package notification delivers run notices through shoutrrr service URLs
// (Slack, Matrix, Telegram, generic webhooks, ...).
package notification

import (
	"context"
	"io"
	stdlog "log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// DefaultTimeout bounds a single delivery to all services.
const DefaultTimeout = 10 * time.Second

// Notifier sends one message to every configured service URL.
type Notifier struct {
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
	log     logger.Logger
}

// New validates the service URLs and builds a sender for them.
func New(urls []string, timeout time.Duration, log logger.Logger) (*Notifier, error) {
	urls = slices.DeleteFunc(slices.Clone(urls), func(u string) bool {
		return strings.TrimSpace(u) == ""
	})
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, notifyError(err, "create_sender", len(urls))
	}
	sender.Timeout = timeout
	sender.SetLogger(stdlog.New(io.Discard, "", 0))

	return &Notifier{urls: urls, sender: sender, timeout: timeout, log: log}, nil
}

// Services returns the number of configured service URLs.
func (n *Notifier) Services() int {
	return len(n.urls)
}

// Send delivers title and message to every service. Failures of individual
// services are joined; the other services still receive the message.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryCancellation).
			Build()
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	start := time.Now()
	var failed []error
	for i, err := range n.sender.Send(message, &params) {
		if err == nil {
			continue
		}
		n.log.Warn("notification delivery failed",
			logger.Int("service", i),
			logger.Error(err))
		failed = append(failed, err)
	}

	if len(failed) > 0 {
		return notifyError(errors.Join(failed...), "send", len(failed))
	}

	n.log.Debug("notification sent",
		logger.Int("services", len(n.urls)),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// notifyError builds an integration error whose message has credentials from
// service URLs stripped.
func notifyError(err error, operation string, services int) error {
	return errors.Newf("%s", logger.RedactSensitiveData(err.Error())).
		Component("notification").
		Category(errors.CategoryIntegration).
		Context("operation", operation).
		Context("services", services).
		Build()
}
