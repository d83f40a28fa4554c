// -----------------------------------------------------------------------------
// Application Server Unit Checker
// -----------------------------------------------------------------------------
//
// This package reports whether the 1C application server systemd unit is
// running, by querying its ActiveState property over the D-Bus system bus.
//
// Systemd Integration:
//   The checker queries the "ActiveState" property of systemd units, which
//   can return values like "active", "inactive", "failed", etc. Only
//   "active" counts as healthy; every other state, and every failure to ask,
//   maps to 0 for Zabbix.
//
// Connection:
//   Each query opens one connection to the system bus and closes it. There
//   is no reconnection loop: a failed dial is reported as 0 and the next
//   Zabbix poll tries again.
//
// -----------------------------------------------------------------------------

package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// -----------------------------------------------------------------------------
// Systemd State Constants
// -----------------------------------------------------------------------------

// Systemd ActiveState values as defined by systemd specification.
const (
	StateActive       = "active"       // Service is running
	StateInactive     = "inactive"     // Service is stopped
	StateFailed       = "failed"       // Service has failed
	StateActivating   = "activating"   // Service is starting up
	StateDeactivating = "deactivating" // Service is shutting down
	StateReloading    = "reloading"    // Service is reloading config
)

// ErrUnexpectedType is returned when ActiveState is not a string.
var ErrUnexpectedType = errors.New("unexpected type for ActiveState")

// -----------------------------------------------------------------------------
// State Mapping
// -----------------------------------------------------------------------------

// stateToValue maps systemd ActiveState values to the reported metric.
// Only "active" is healthy.
var stateToValue = map[string]int{
	StateActive:       1,
	StateInactive:     0,
	StateFailed:       0,
	StateActivating:   0,
	StateDeactivating: 0,
	StateReloading:    0,
}

// StateValue maps an ActiveState to 1 (active) or 0 (anything else).
func StateValue(state string) int {
	return stateToValue[state]
}

// UnitName appends ".service" when unit has no type suffix.
func UnitName(unit string) string {
	unit = strings.TrimSpace(unit)
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}

// -----------------------------------------------------------------------------
// Checker
// -----------------------------------------------------------------------------

// UnitPropertyGetter is the part of *dbus.Conn the checker needs.
type UnitPropertyGetter interface {
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	Close()
}

// Dialer opens a connection to systemd.
type Dialer func(ctx context.Context) (UnitPropertyGetter, error)

// SystemBus dials the D-Bus system bus.
func SystemBus(ctx context.Context) (UnitPropertyGetter, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Checker queries systemd unit state.
type Checker struct {
	dial Dialer
}

// New returns a Checker using dial, or the system bus when dial is nil.
func New(dial Dialer) *Checker {
	if dial == nil {
		dial = SystemBus
	}
	return &Checker{dial: dial}
}

// State returns the ActiveState of unit.
func (c *Checker) State(ctx context.Context, unit string) (string, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	name := UnitName(unit)
	prop, err := conn.GetUnitPropertyContext(ctx, name, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}

	// Extract the ActiveState value from D-Bus variant type
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("query %s: %w", name, ErrUnexpectedType)
	}

	if _, known := stateToValue[state]; !known {
		slog.Debug("unknown systemd state", "unit", name, "state", state)
	}
	return state, nil
}

// Value returns 1 when unit is active and 0 otherwise, including on error.
func (c *Checker) Value(ctx context.Context, unit string) (int, error) {
	state, err := c.State(ctx, unit)
	if err != nil {
		return 0, err
	}
	return StateValue(state), nil
}

// connect makes a single dial bounded by ctx.
func (c *Checker) connect(ctx context.Context) (UnitPropertyGetter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to D-Bus: %w", err)
	}
	return conn, nil
}
