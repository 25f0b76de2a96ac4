package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"captionsync/internal/config"
	"captionsync/internal/logging"
	"captionsync/internal/scheduler"
)

const userAgent = "captionsync/0.1"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Service posts notices to ntfy.
type Service struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewService builds a service for cfg.Notifications. The result is disabled
// when no topic is configured.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{logger: logging.NewComponentLogger(logger, "notifications")}
	if cfg == nil {
		return svc
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return svc
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	svc.endpoint = topic
	svc.timeout = timeout
	svc.client = &http.Client{Timeout: timeout}
	return svc
}

// Enabled reports whether a topic is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// Notify delivers n in the background.
func (s *Service) Notify(n scheduler.Notice) {
	if !s.Enabled() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Send(ctx, n); err != nil {
			logging.WarnWithContext(s.logger, "ntfy delivery failed", "notification_failed",
				logging.String("notice", n.Kind.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "the notice was only shown locally"),
			)
		}
	}()
}

// Wait blocks until background deliveries finish.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// Send delivers n synchronously.
func (s *Service) Send(ctx context.Context, n scheduler.Notice) error {
	data, ok := noticePayload(n)
	if !ok {
		return nil
	}
	return s.send(ctx, data)
}

// Test sends a low priority message to confirm the topic works.
func (s *Service) Test(ctx context.Context) error {
	return s.send(ctx, payload{
		title:    "captionsync - Test",
		message:  "Notification test",
		tags:     []string{"captionsync", "test"},
		priority: "low",
	})
}

func noticePayload(n scheduler.Notice) (payload, bool) {
	switch n.Kind {
	case scheduler.NoticeFailure:
		return payload{
			title:   "captionsync - Translation Failed",
			message: withCause(n.Message(), n.Err),
			tags:    []string{"captionsync", "translation", "failure"},
		}, true
	case scheduler.NoticePaused:
		message := n.Message()
		if !n.Until.IsZero() {
			message = fmt.Sprintf("Translation paused until %s", n.Until.Format("15:04:05"))
		}
		return payload{
			title:    "captionsync - Translation Paused",
			message:  withCause(message, n.Err),
			tags:     []string{"captionsync", "translation", "paused"},
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func withCause(message string, err error) string {
	if err == nil {
		return message
	}
	return message + "\nCause: " + strings.TrimSpace(err.Error())
}

func (s *Service) send(ctx context.Context, data payload) error {
	if !s.Enabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Tee fans a notice out to every non-nil notifier in order.
func Tee(notifiers ...scheduler.Notifier) scheduler.Notifier {
	active := make([]scheduler.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return scheduler.NotifierFunc(func(notice scheduler.Notice) {
		for _, n := range active {
			n.Notify(notice)
		}
	})
}
