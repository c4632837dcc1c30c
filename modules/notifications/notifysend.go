package notifications

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// SystemNotifier raises desktop notifications through notify-send and
// clears them through the freedesktop notification bus. It remembers the
// host-assigned numeric id per stable id so Clear and replacement address
// the right notification.
type SystemNotifier struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewSystemNotifier creates a notifier with no live notifications.
func NewSystemNotifier() *SystemNotifier {
	return &SystemNotifier{ids: make(map[string]string)}
}

// Notify raises or replaces the notification stored under id.
func (s *SystemNotifier) Notify(ctx context.Context, id string, n Notification) error {
	args := []string{"--print-id"}
	s.mu.Lock()
	if hostID, ok := s.ids[id]; ok {
		args = append(args, "--replace-id", hostID)
	}
	s.mu.Unlock()
	if n.Icon != "" {
		args = append(args, "--icon", n.Icon)
	}
	args = append(args, n.Title, n.Body)

	out, err := exec.CommandContext(ctx, "notify-send", args...).Output()
	if err != nil {
		return fmt.Errorf("notifications: notify-send: %w", err)
	}
	if hostID := strings.TrimSpace(string(out)); hostID != "" {
		s.mu.Lock()
		s.ids[id] = hostID
		s.mu.Unlock()
	}
	return nil
}

// Clear closes the notification stored under id. Unknown ids are a no-op;
// the notification may have been dismissed already.
func (s *SystemNotifier) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	hostID, ok := s.ids[id]
	if ok {
		delete(s.ids, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	err := exec.CommandContext(ctx, "gdbus", "call", "--session",
		"--dest", "org.freedesktop.Notifications",
		"--object-path", "/org/freedesktop/Notifications",
		"--method", "org.freedesktop.Notifications.CloseNotification",
		hostID).Run()
	if err != nil {
		return fmt.Errorf("notifications: close %s: %w", hostID, err)
	}
	return nil
}
