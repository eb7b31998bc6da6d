package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"dive-service/internal/discovery"
	"dive-service/internal/model"
	"dive-service/internal/protocol"
	"dive-service/pkg/driver"
)

// tracker counts acquisitions and releases across all fake collaborators
type tracker struct {
	mu     sync.Mutex
	opens  map[string]int
	closes map[string]int
	order  []string
}

func newTracker() *tracker {
	return &tracker{opens: map[string]int{}, closes: map[string]int{}}
}

func (t *tracker) open(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens[name]++
}

func (t *tracker) close(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes[name]++
	t.order = append(t.order, name)
}

func (t *tracker) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for name, opened := range t.opens {
		n += opened - t.closes[name]
	}
	return n
}

type fakeEnumerator struct {
	endpoints []discovery.KnownEndpoint
	err       error
}

func (f *fakeEnumerator) ListKnownEndpoints(context.Context) ([]discovery.KnownEndpoint, error) {
	return f.endpoints, f.err
}

type fakeDescriptor struct {
	t        *tracker
	profile  model.InstrumentProfile
	closeErr error
}

func (d *fakeDescriptor) Profile() model.InstrumentProfile { return d.profile }

func (d *fakeDescriptor) Close() error {
	d.t.close("descriptor")
	return d.closeErr
}

type fakeResolver struct {
	t        *tracker
	closeErr error
	requests []*model.FamilyTag
}

func (r *fakeResolver) Resolve(family *model.FamilyTag) (driver.Descriptor, error) {
	r.requests = append(r.requests, family)
	r.t.open("descriptor")
	profile := model.InstrumentProfile{Family: model.FamilyGeneric, Generic: true}
	if family != nil {
		profile = model.InstrumentProfile{Family: *family}
	}
	return &fakeDescriptor{t: r.t, profile: profile, closeErr: r.closeErr}, nil
}

type fakeChannel struct {
	t        *tracker
	address  string
	timeouts []time.Duration
	closeErr error
}

func (c *fakeChannel) Read(context.Context, int) ([]byte, error) { return nil, nil }
func (c *fakeChannel) Write(context.Context, []byte) error     { return nil }
func (c *fakeChannel) SetTimeout(d time.Duration) error {
	c.timeouts = append(c.timeouts, d)
	return nil
}
func (c *fakeChannel) Close() error {
	c.t.close("channel")
	return c.closeErr
}
func (c *fakeChannel) IsOpen() bool                 { return true }
func (c *fakeChannel) Address() string              { return c.address }
func (c *fakeChannel) Kind() model.TransportKind    { return model.TransportBluetooth }
func (c *fakeChannel) Stats() protocol.ChannelStats { return protocol.ChannelStats{} }

type fakeChannelOpener struct {
	t        *tracker
	err      error
	closeErr error
	opened   []*fakeChannel
}

func (o *fakeChannelOpener) Open(_ context.Context, address string, _ model.InstrumentProfile) (protocol.Channel, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.t.open("channel")
	ch := &fakeChannel{t: o.t, address: address, closeErr: o.closeErr}
	o.opened = append(o.opened, ch)
	return ch, nil
}

// step is one thing the fake device does during Foreach
type step struct {
	event       model.SessionEvent
	data        []byte
	fingerprint []byte
	err         error
}

type fakeDevice struct {
	t            *tracker
	script       []step
	closeErr     error
	fingerprints [][]byte
	clears       int
	foreachCalls int
	started      chan struct{}
	release      chan struct{}
}

func (d *fakeDevice) SetFingerprint(fp []byte) error {
	d.fingerprints = append(d.fingerprints, fp)
	return nil
}

func (d *fakeDevice) ClearFingerprint() error {
	d.clears++
	return nil
}

func (d *fakeDevice) Foreach(ctx context.Context, onEvent driver.EventFunc, onDive driver.DiveFunc) error {
	d.foreachCalls++
	if d.started != nil {
		close(d.started)
		<-d.release
	}
	for _, s := range d.script {
		switch {
		case s.err != nil:
			return s.err
		case s.event != nil:
			onEvent(s.event)
		default:
			if onDive(s.data, s.fingerprint) != driver.Continue {
				return nil
			}
		}
	}
	return ctx.Err()
}

func (d *fakeDevice) Close() error {
	d.t.close("device")
	return d.closeErr
}

type fakeDeviceOpener struct {
	t      *tracker
	err    error
	device *fakeDevice
}

func (o *fakeDeviceOpener) Open(context.Context, model.InstrumentProfile, protocol.Channel) (driver.Device, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.t.open("device")
	if o.device == nil {
		o.device = &fakeDevice{t: o.t}
	}
	return o.device, nil
}

type harness struct {
	t        *tracker
	enum     *fakeEnumerator
	resolver *fakeResolver
	channels *fakeChannelOpener
	devices  *fakeDeviceOpener
	manager  *Manager
}

func newHarness() *harness {
	t := newTracker()
	h := &harness{
		t:        t,
		enum:     &fakeEnumerator{},
		resolver: &fakeResolver{t: t},
		channels: &fakeChannelOpener{t: t},
		devices:  &fakeDeviceOpener{t: t, device: &fakeDevice{t: t}},
	}
	h.manager = NewManager(h.enum, h.resolver, h.channels, h.devices, nil)
	return h
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }
func intPtr(i int) *int        { return &i }
