package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// notificationsCall invokes a method on org.freedesktop.Notifications via
// busctl and returns the trimmed reply.
func notificationsCall(ctx context.Context, member string, signature string, args ...string) (string, error) {
	call := append([]string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		member,
		signature,
	}, args...)

	out, err := exec.CommandContext(ctx, "busctl", call...).CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		if reply == "" {
			return "", fmt.Errorf("busctl %s failed: %w", member, err)
		}
		return "", fmt.Errorf("busctl %s failed: %w (%s)", member, err, reply)
	}
	return reply, nil
}

// desktopNotify sends a freedesktop notification and returns the
// notification ID assigned by the server. A non-zero replaceID updates the
// existing notification in place.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	reply, err := notificationsCall(ctx, "Notify", "susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		summary,
		"",
		"0", // actions array length
		"0", // hints map length
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, err
	}

	fields := strings.Fields(reply)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", reply)
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

// desktopDismiss requests explicit close by notification ID.
func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := notificationsCall(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}
