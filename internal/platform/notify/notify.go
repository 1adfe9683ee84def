// Package notify shows desktop notifications through the freedesktop
// notification service on the session bus. A helper command such as
// notify-send can replace the bus when configured.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"focuspilot/internal/event"
)

// ErrUnsupported is returned when no notification service is reachable.
var ErrUnsupported = errors.New("notify: no notification service available")

const (
	appName = "Focus Co-Pilot"

	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall = busName + ".Notify"

	urgencyCritical byte = 2
	callTimeout          = 5 * time.Second
)

type Notifier interface {
	Notify(ctx context.Context, n event.Notification) error
}

// caller is the part of dbus.BusObject used to post notifications.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// connector opens the bus object that receives Notify calls, and a func that
// releases it.
type connector func() (caller, func() error, error)

func sessionBus() (caller, func() error, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, err
	}
	return conn.Object(busName, objectPath), conn.Close, nil
}

// New returns a session bus notifier, or a command notifier when command
// ("notify-send -u critical") is set. A command missing from PATH yields a
// notifier that always fails with ErrUnsupported.
func New(command string) Notifier {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return newBus(sessionBus)
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return unsupportedNotifier{command: fields[0]}
	}
	return &commandNotifier{path: path, args: fields[1:]}
}

// BusNotifier talks to the notification service. The connection is opened on
// first use and retried on the next notification after a failure. Repeated
// notifications replace the previous one instead of stacking up.
type BusNotifier struct {
	connect connector

	mu      sync.Mutex
	obj     caller
	release func() error
	lastID  uint32
}

func newBus(connect connector) *BusNotifier {
	return &BusNotifier{connect: connect}
}

func (b *BusNotifier) Notify(ctx context.Context, note event.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.obj == nil {
		obj, release, err := b.connect()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		b.obj, b.release = obj, release
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgencyCritical)}
	call := b.obj.CallWithContext(ctx, notifyCall, 0,
		appName, b.lastID, "", note.Title, note.Message, []string{}, hints, int32(-1))
	if call.Err != nil {
		b.dropLocked()
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("invalid reply from %s: %w", busName, err)
	}
	b.lastID = id
	return nil
}

func (b *BusNotifier) dropLocked() {
	if b.release != nil {
		b.release()
	}
	b.obj, b.release = nil, nil
}

// Close releases the bus connection.
func (b *BusNotifier) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.release != nil {
		err = b.release()
	}
	b.obj, b.release = nil, nil
	return err
}

type commandNotifier struct {
	path string
	args []string
}

func (n *commandNotifier) Notify(ctx context.Context, note event.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	args := append(append([]string{}, n.args...), "--app-name="+appName, note.Title, note.Message)
	output, err := exec.CommandContext(ctx, n.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", n.path, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type unsupportedNotifier struct {
	command string
}

func (u unsupportedNotifier) Notify(context.Context, event.Notification) error {
	return fmt.Errorf("%w: %s not found", ErrUnsupported, u.command)
}
