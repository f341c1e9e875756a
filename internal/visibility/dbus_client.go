package visibility

import (
	"github.com/godbus/dbus/v5"
)

const (
	screenSaverName  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = "/org/freedesktop/ScreenSaver"
	screenSaverIface = "org.freedesktop.ScreenSaver"
	gnomeSaverIface  = "org.gnome.ScreenSaver"
)

// DBusClient defines the D-Bus operations the screensaver watcher needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/tandem/internal/visibility DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)

	// RemoveSignal unregisters a channel added with Signal
	RemoveSignal(ch chan<- *dbus.Signal)

	// ScreenSaverActive asks the screensaver service whether it is active
	ScreenSaverActive() (bool, error)
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a private session bus connection.
// A private connection lets Close run without tearing down the shared bus other
// components (the MPRIS surface) use.
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// AddMatchSignal adds a signal match rule
func (c *StdDBusClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// Signal registers a channel to receive D-Bus signals
func (c *StdDBusClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

// RemoveSignal unregisters a channel added with Signal
func (c *StdDBusClient) RemoveSignal(ch chan<- *dbus.Signal) {
	c.conn.RemoveSignal(ch)
}

// ScreenSaverActive calls org.freedesktop.ScreenSaver.GetActive
func (c *StdDBusClient) ScreenSaverActive() (bool, error) {
	var active bool
	obj := c.conn.Object(screenSaverName, dbus.ObjectPath(screenSaverPath))
	err := obj.Call(screenSaverIface+".GetActive", 0).Store(&active)
	return active, err
}
