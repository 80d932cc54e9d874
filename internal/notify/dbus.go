//go:build linux

package notify

import (
	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"

	appName      = "Baton"
	desktopEntry = "baton"
)

// dbusNotifier talks to the freedesktop notification server on the session
// bus.
type dbusNotifier struct {
	obj dbus.BusObject
}

// New connects to the session bus. Without one (headless session, stripped
// container) notifications degrade to a no-op instead of failing startup.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Warn().Err(err).Msg("session bus unavailable, notifications disabled")
		return noopNotifier{}, nil
	}
	return &dbusNotifier{obj: conn.Object(notifyDest, notifyPath)}, nil
}

func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant(desktopEntry),
	}

	call := n.obj.Call(notifyIface+".Notify", 0,
		appName, notif.ReplacesID, notif.Icon, notif.Title, notif.Body,
		[]string{}, hints, notif.Timeout)
	if call.Err != nil {
		return 0, errors.Wrap(call.Err, "notify: send")
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, errors.Wrap(err, "notify: decode reply")
	}
	return id, nil
}

func (n *dbusNotifier) Close(id uint32) error {
	return errors.Wrap(n.obj.Call(notifyIface+".CloseNotification", 0, id).Err, "notify: close")
}
