package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

const notifyTimeout = 5 * time.Second

// NotificationService sends desktop notifications about finished fetches
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(ctx context.Context, name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		err = n.run(ctx, "osascript", "-e", script)
	case "notify-send":
		err = n.run(ctx, "notify-send", "--app-name=yt-fetch", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyFetchCompleted sends notification when a fetch produced its artifact
func (n *NotificationService) NotifyFetchCompleted(title string, size int64) {
	message := fmt.Sprintf("%s (%s)", truncateString(title, 40), humanize.Bytes(uint64(size)))
	n.Send("Fetch Completed", message)
}

// NotifyFetchFailed sends notification when a fetch fails
func (n *NotificationService) NotifyFetchFailed(url string, err error) {
	message := fmt.Sprintf("Failed: %s", truncateString(url, 40))
	if kind := domain.KindOf(err); kind != "" {
		message += fmt.Sprintf(" (%s)", kind)
	}
	n.Send("Fetch Failed", message)
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// truncateString truncates a string to the specified number of runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
