package services

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/gatehouse-app/gatehouse/backend/internal/logger"
)

// NotifyService broadcasts gate state changes to the configured shoutrrr
// URLs (Discord, Slack, email, ...). Delivery is best effort and never
// blocks the caller's request.
type NotifyService struct {
	urls []string
}

// NewNotifyService returns a notifier for the given shoutrrr URLs. An empty
// list yields a no-op notifier.
func NewNotifyService(urls []string) *NotifyService {
	return &NotifyService{urls: urls}
}

// GateToggled announces that the gate was switched on or off.
func (s *NotifyService) GateToggled(enabled bool, mode string) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.send(fmt.Sprintf("Gatehouse: gate %s (mode: %s)", state, mode))
}

func (s *NotifyService) send(message string) {
	if len(s.urls) == 0 {
		return
	}
	go func() {
		for _, url := range s.urls {
			if err := shoutrrr.Send(url, message); err != nil {
				logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("send notification")
			}
		}
	}()
}
