package surface

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	mprisPath       = "/org/mpris/MediaPlayer2"
	mprisNamePrefix = "org.mpris.MediaPlayer2."
	rootIface       = "org.mpris.MediaPlayer2"
	playerIface     = "org.mpris.MediaPlayer2.Player"
	introspectIface = "org.freedesktop.DBus.Introspectable"
)

// BusConn defines the session bus operations the MPRIS surface needs.
//
//go:generate mockgen -destination=mocks/bus_conn_mock.go -package=mocks github.com/genricoloni/tandem/internal/surface BusConn,PropertySetter
type BusConn interface {
	// RequestName claims a well-known name; false when another process owns it
	RequestName(name string) (bool, error)

	// ReleaseName gives a well-known name back
	ReleaseName(name string) error

	// Export publishes the methods of v under path and iface
	Export(v any, path dbus.ObjectPath, iface string) error

	// ExportProperties publishes props under path through org.freedesktop.DBus.Properties
	ExportProperties(path dbus.ObjectPath, props prop.Map) (PropertySetter, error)

	// Emit sends a signal
	Emit(path dbus.ObjectPath, name string, values ...any) error

	// Close closes the connection
	Close() error
}

// PropertySetter updates exported properties, emitting PropertiesChanged as configured
type PropertySetter interface {
	SetMust(iface, property string, v any)
}

// StdBusConn is the real implementation using godbus
type StdBusConn struct {
	conn *dbus.Conn
}

// NewStdBusConn connects to the session bus
func NewStdBusConn() (*StdBusConn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdBusConn{conn: conn}, nil
}

// RequestName claims name without queueing behind an existing owner
func (c *StdBusConn) RequestName(name string) (bool, error) {
	reply, err := c.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return false, err
	}
	return reply == dbus.RequestNameReplyPrimaryOwner, nil
}

// ReleaseName gives name back to the bus
func (c *StdBusConn) ReleaseName(name string) error {
	_, err := c.conn.ReleaseName(name)
	return err
}

// Export publishes the methods of v
func (c *StdBusConn) Export(v any, path dbus.ObjectPath, iface string) error {
	return c.conn.Export(v, path, iface)
}

// ExportProperties publishes props and an introspection document covering them
func (c *StdBusConn) ExportProperties(path dbus.ObjectPath, props prop.Map) (PropertySetter, error) {
	p, err := prop.Export(c.conn, path, props)
	if err != nil {
		return nil, err
	}

	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootIface, Methods: introspect.Methods(mediaPlayer2{}), Properties: p.Introspection(rootIface)},
			{Name: playerIface, Methods: introspect.Methods(player{}), Properties: p.Introspection(playerIface)},
		},
	}
	if err := c.conn.Export(introspect.NewIntrospectable(node), path, introspectIface); err != nil {
		return nil, err
	}
	return p, nil
}

// Emit sends a signal on the bus
func (c *StdBusConn) Emit(path dbus.ObjectPath, name string, values ...any) error {
	return c.conn.Emit(path, name, values...)
}

// Close closes the connection
func (c *StdBusConn) Close() error {
	return c.conn.Close()
}
