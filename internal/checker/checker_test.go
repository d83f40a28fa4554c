// -----------------------------------------------------------------------------
// Application Server Unit Checker - Tests
// -----------------------------------------------------------------------------
//
// This test suite validates the state mapping and the D-Bus query path with a
// fake connection. Integration tests with actual D-Bus/systemd would require
// a running systemd instance, so the connection is replaced by a fake that
// records what was asked.
//
// Test Coverage:
//   - State-to-value mapping correctness
//   - Unit name suffixing
//   - Property query and variant decoding
//   - Single dial and context cancellation
//
// -----------------------------------------------------------------------------

package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// fakeConn is a canned systemd connection.
type fakeConn struct {
	value    any
	err      error
	unit     string
	property string
	closed   bool
}

func (f *fakeConn) GetUnitPropertyContext(_ context.Context, unit, propertyName string) (*dbus.Property, error) {
	f.unit = unit
	f.property = propertyName
	if f.err != nil {
		return nil, f.err
	}
	return &dbus.Property{Name: propertyName, Value: godbus.MakeVariant(f.value)}, nil
}

func (f *fakeConn) Close() { f.closed = true }

func dialer(conn *fakeConn) Dialer {
	return func(context.Context) (UnitPropertyGetter, error) { return conn, nil }
}

// -----------------------------------------------------------------------------
// State Mapping Tests
// -----------------------------------------------------------------------------

// TestStateValue verifies that only "active" reports 1.
func TestStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  int
	}{
		{StateActive, 1}, // Only this should be 1
		{StateInactive, 0},
		{StateFailed, 0},
		{StateActivating, 0},   // Starting up is unhealthy
		{StateDeactivating, 0}, // Shutting down is unhealthy
		{StateReloading, 0},
		{"maintenance", 0}, // Unknown state
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := StateValue(tt.state); got != tt.want {
				t.Errorf("State %q: expected %d, got %d", tt.state, tt.want, got)
			}
		})
	}
}

func TestUnitName(t *testing.T) {
	tests := map[string]string{
		"srv1cv8":           "srv1cv8.service",
		" srv1cv83 ":        "srv1cv83.service",
		"srv1cv8.service":   "srv1cv8.service",
		"ras-1c.service":    "ras-1c.service",
		"srv1cv8@8.3.timer": "srv1cv8@8.3.timer",
	}
	for in, want := range tests {
		if got := UnitName(in); got != want {
			t.Errorf("UnitName(%q) = %q, want %q", in, got, want)
		}
	}
}

// -----------------------------------------------------------------------------
// Query Tests
// -----------------------------------------------------------------------------

func TestValueActive(t *testing.T) {
	conn := &fakeConn{value: "active"}
	c := New(dialer(conn))

	got, err := c.Value(context.Background(), "srv1cv8")
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if got != 1 {
		t.Errorf("Value = %d, want 1", got)
	}
	if conn.unit != "srv1cv8.service" || conn.property != "ActiveState" {
		t.Errorf("queried %s/%s", conn.unit, conn.property)
	}
	if !conn.closed {
		t.Error("connection was not closed")
	}
}

func TestValueFailedUnit(t *testing.T) {
	c := New(dialer(&fakeConn{value: "failed"}))

	got, err := c.Value(context.Background(), "srv1cv8")
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if got != 0 {
		t.Errorf("Value = %d, want 0", got)
	}
}

func TestValueQueryError(t *testing.T) {
	boom := errors.New("no such unit")
	conn := &fakeConn{err: boom}
	c := New(dialer(conn))

	got, err := c.Value(context.Background(), "srv1cv8")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if got != 0 {
		t.Errorf("Value = %d, want 0 on error", got)
	}
	if !conn.closed {
		t.Error("connection was not closed after error")
	}
}

func TestStateUnexpectedType(t *testing.T) {
	c := New(dialer(&fakeConn{value: uint32(3)}))

	if _, err := c.State(context.Background(), "srv1cv8"); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("err = %v, want ErrUnexpectedType", err)
	}
}

// -----------------------------------------------------------------------------
// Connection Tests
// -----------------------------------------------------------------------------

// TestConnectSingleAttempt verifies a failed dial is not retried.
func TestConnectSingleAttempt(t *testing.T) {
	calls := 0
	boom := errors.New("bus unavailable")
	c := New(func(context.Context) (UnitPropertyGetter, error) {
		calls++
		return nil, boom
	})

	got, err := c.Value(context.Background(), "srv1cv8")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if got != 0 {
		t.Errorf("Value = %d, want 0", got)
	}
	if calls != 1 {
		t.Errorf("dialed %d times, want 1", calls)
	}
}

// TestConnectHonorsContext verifies a done context skips the dial.
func TestConnectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialed := false
	c := New(func(context.Context) (UnitPropertyGetter, error) {
		dialed = true
		return &fakeConn{value: "active"}, nil
	})

	if _, err := c.Value(ctx, "srv1cv8"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if dialed {
		t.Error("dialed with a cancelled context")
	}
}
