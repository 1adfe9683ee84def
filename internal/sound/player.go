package sound

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Player delivers play requests to a lazily provisioned Context.
type Player struct {
	host       *Host
	retryDelay time.Duration

	mu  sync.Mutex
	ctx *Context
	wg  sync.WaitGroup
}

func NewPlayer(host *Host) *Player {
	return &Player{host: host, retryDelay: 100 * time.Millisecond}
}

// Play requests kind in the background. Failures are logged; the caller is
// never blocked or told.
func (p *Player) Play(kind Kind) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.PlayNow(kind); err != nil {
			log.Printf("Warning: failed to play %s sound: %v", kind, err)
		}
	}()
}

// PlayNow provisions a context if needed and delivers the request. A context
// that closed between provisioning and delivery is replaced once, after a
// short delay.
func (p *Player) PlayNow(kind Kind) (time.Duration, error) {
	ctx, err := p.ensure()
	if err != nil {
		return 0, err
	}
	d, err := ctx.Play(kind)
	if !errors.Is(err, ErrNotReady) {
		return d, err
	}

	log.Println("Sound context not ready, retrying")
	p.reset(ctx)
	time.Sleep(p.retryDelay)
	if ctx, err = p.ensure(); err != nil {
		return 0, err
	}
	return ctx.Play(kind)
}

// HandleClosed forgets the current context after it closed itself.
func (p *Player) HandleClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil && p.ctx.Closed() {
		p.ctx = nil
	}
}

// Wait blocks until background requests have been delivered.
func (p *Player) Wait() {
	p.wg.Wait()
}

func (p *Player) ensure() (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil && !p.ctx.Closed() {
		return p.ctx, nil
	}
	ctx, err := p.host.Create()
	if errors.Is(err, ErrDuplicate) {
		// Someone else provisioned it first; use theirs.
		err = nil
	}
	if err != nil {
		return nil, err
	}
	p.ctx = ctx
	return ctx, nil
}

func (p *Player) reset(stale *Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == stale {
		p.ctx = nil
	}
}
