package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// NotificationService handles sending notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n.config == nil || !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.run("osascript", "-e", fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(message), escapeAppleScript(title)))
	case "notify-send":
		return n.run("notify-send", title, message)
	case "log", "":
		n.logger.Info(title, zap.String("message", message))
		return nil
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

func (n *NotificationService) run(name string, args ...string) error {
	cmd := exec.Command(name, args...)

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", name),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent", zap.String("method", name))
	return nil
}

// NotifyPaperQueued sends notification when a paper is queued
func (n *NotificationService) NotifyPaperQueued(paper *domain.Paper) {
	n.Send("Paper Queued", fmt.Sprintf("Added to queue: %s", paperLabel(paper)))
}

// NotifyPaperCompleted sends notification when a paper has been fetched
func (n *NotificationService) NotifyPaperCompleted(paper *domain.Paper) {
	n.Send("Paper Fetched", fmt.Sprintf("%s (%s)", paperLabel(paper), humanize.Bytes(uint64(paper.ByteSize))))
}

// NotifyPaperFailed sends notification when a paper could not be fetched
func (n *NotificationService) NotifyPaperFailed(paper *domain.Paper) {
	n.Send("Paper Failed", fmt.Sprintf("%s: %s", paperLabel(paper), paper.FailureReason))
}

// NotifySyncFinished sends notification when a catalog sync ends
func (n *NotificationService) NotifySyncFinished(fetched, total int) {
	n.Send("Catalog Sync Finished", fmt.Sprintf("Fetched %d of %d papers", fetched, total))
}

// NotifyQueueEmpty sends notification when queue is empty
func (n *NotificationService) NotifyQueueEmpty() {
	n.Send("Queue Empty", "All papers processed")
}

func paperLabel(paper *domain.Paper) string {
	if paper.Name != "" {
		return paper.Name
	}
	return truncateString(paper.URL, 40)
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
