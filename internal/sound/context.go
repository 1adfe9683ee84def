package sound

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrNotReady is returned by a Context that has already closed itself.
	ErrNotReady = errors.New("sound: context is closed")
	// ErrDuplicate is returned by Host.Create while a context is alive.
	ErrDuplicate = errors.New("sound: a context already exists")
)

// ContextOptions tune a playback context. Zero values take the defaults.
type ContextOptions struct {
	Cooldown    time.Duration // requests inside this window after a playback are dropped
	CloseBuffer time.Duration // idle time after the last sound before closing
}

func (o ContextOptions) withDefaults() ContextOptions {
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultDuration
	}
	if o.CloseBuffer <= 0 {
		o.CloseBuffer = 500 * time.Millisecond
	}
	return o
}

// Context plays one sound at a time and closes itself once it has been idle
// for the tone length plus CloseBuffer. onClose runs once, on its own goroutine.
type Context struct {
	out  Output
	opts ContextOptions

	mu         sync.Mutex
	playing    bool
	closed     bool
	closeTimer *time.Timer
	closeAt    time.Time
	onClose    func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newContext(out Output, opts ContextOptions, onClose func()) *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		out:     out,
		opts:    opts.withDefaults(),
		onClose: onClose,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Play starts the sound of kind and returns how long it lasts. A request
// arriving while another sound is in flight is dropped and reports
// DefaultDuration.
func (c *Context) Play(kind Kind) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrNotReady
	}

	if c.playing {
		log.Println("Already playing sound, ignoring request")
		c.armCloseLocked(DefaultDuration)
		return DefaultDuration, nil
	}

	c.playing = true
	time.AfterFunc(c.opts.Cooldown, func() {
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
	})

	tone := ToneFor(kind)
	duration := tone.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.out.Play(c.ctx, tone); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Error playing %s completion sound: %v", kind, err)
		}
	}()
	log.Printf("Playing %s completion sound (%s)", kind, duration)
	c.armCloseLocked(duration)
	return duration, nil
}

// armCloseLocked moves the self-close deadline to d+CloseBuffer from now,
// never earlier than an already armed one.
func (c *Context) armCloseLocked(d time.Duration) {
	at := time.Now().Add(d + c.opts.CloseBuffer)
	if c.closeTimer != nil && !at.After(c.closeAt) {
		return
	}
	c.closeAt = at
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.closeTimer = time.AfterFunc(time.Until(at), c.Close)
}

// Close releases the context. Playback still in progress is cut off.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	onClose := c.onClose
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	log.Println("Sound context closed")
	if onClose != nil {
		go onClose()
	}
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Host provisions at most one live Context at a time.
type Host struct {
	newOutput func() (Output, error)
	opts      ContextOptions
	onClosed  func()

	mu      sync.Mutex
	current *Context
}

// NewHost builds contexts on top of newOutput. onClosed is called after a
// context closes itself, so the owner can forget it.
func NewHost(newOutput func() (Output, error), opts ContextOptions, onClosed func()) *Host {
	return &Host{newOutput: newOutput, opts: opts, onClosed: onClosed}
}

// Create starts a context. It fails with ErrDuplicate while one is alive and
// with an ErrUnavailable-wrapping error when there is no audio output.
func (h *Host) Create() (*Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil && !h.current.Closed() {
		return h.current, ErrDuplicate
	}
	out, err := h.newOutput()
	if err != nil {
		return nil, err
	}
	var created *Context
	created = newContext(out, h.opts, func() {
		h.mu.Lock()
		if h.current == created {
			h.current = nil
		}
		h.mu.Unlock()
		if h.onClosed != nil {
			h.onClosed()
		}
	})
	h.current = created
	return created, nil
}

// Close shuts the live context down, if any.
func (h *Host) Close() {
	h.mu.Lock()
	current := h.current
	h.current = nil
	h.mu.Unlock()
	if current != nil {
		current.Close()
	}
}
