// Package notification pushes discovery alerts to configured services.
package notification

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
)

const sendTimeout = 10 * time.Second

var notificationLogger *slog.Logger

func init() {
	var err error
	notificationLogger, _, err = logging.NewFileLogger("logs/notification.log", "notification", slog.LevelInfo)
	if err != nil {
		notificationLogger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "notification")
	}
}

// Notifier sends push notifications when a species is added to the catalog.
// It implements the reconciler's discovery callback; sends run in the
// background and failures are logged, never propagated.
type Notifier struct {
	urls   []string
	sender *router.ServiceRouter
	wg     sync.WaitGroup
}

// NewNotifier builds a notifier from shoutrrr service URLs. The URLs are
// validated by constructing the sender up front.
func NewNotifier(settings *conf.NotificationSettings) (*Notifier, error) {
	if len(settings.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(settings.URLs...)
	if err != nil {
		// Service URLs embed tokens; keep them out of the error.
		return nil, errors.Newf("invalid notification service URL").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(settings.URLs)).
			Build()
	}
	sender.Timeout = sendTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Notifier{
		urls:   slices.Clone(settings.URLs),
		sender: sender,
	}, nil
}

// SpeciesDiscovered announces a species newly added to the catalog.
func (n *Notifier) SpeciesDiscovered(name, scientificName string, confidence float64) {
	title := "New species discovered"
	body := fmt.Sprintf("%s identified with %.0f%% confidence", name, confidence*100)
	if scientificName != "" {
		body = fmt.Sprintf("%s (%s) identified with %.0f%% confidence", name, scientificName, confidence*100)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(title, body)
	}()
}

// Wait blocks until all in-flight notifications have been sent.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(title, body string) {
	params := stypes.Params{}
	params.SetTitle(title)

	errs := n.sender.Send(body, &params)
	for _, err := range errs {
		if err != nil {
			notificationLogger.Error("Failed to send notification",
				"title", title,
				"error", err)
			return
		}
	}
	notificationLogger.Info("Notification sent", "title", title, "services", len(n.urls))
}
