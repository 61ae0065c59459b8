package action

import (
	"context"
	"sync"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

// fakeDialer hands out fakeConns and records every command they run.
type fakeDialer struct {
	mu       sync.Mutex
	dials    []connector.HostProfile
	commands []string
	closed   int

	connectErr error
	execErr    error
	result     connector.Result
	execHook   func(ctx context.Context) // runs before Execute returns
}

func (d *fakeDialer) New(profile connector.HostProfile) connector.Connector {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, profile)
	return &fakeConn{d: d, profile: profile}
}

func (d *fakeDialer) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeConn struct {
	d       *fakeDialer
	profile connector.HostProfile
}

func (c *fakeConn) Connect(ctx context.Context) error {
	return c.d.connectErr
}

func (c *fakeConn) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	c.d.mu.Lock()
	c.d.commands = append(c.d.commands, cmd)
	hook := c.d.execHook
	c.d.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if c.d.execErr != nil {
		return nil, c.d.execErr
	}
	r := c.d.result
	return &r, nil
}

func (c *fakeConn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.closed++
	return nil
}

func (c *fakeConn) String() string {
	return "fake://" + c.profile.Addr()
}
