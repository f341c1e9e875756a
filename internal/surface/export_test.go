package surface

// SetDial replaces the session bus dialer
func (m *MPRIS) SetDial(dial func() (BusConn, error)) {
	m.dial = dial
}
