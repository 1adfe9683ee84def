// Package alarm keeps named one-shot and periodic alarms. Firings are
// delivered by name on a channel so a single loop can handle them in order.
package alarm

import (
	"context"
	"log"
	"time"
)

// Names used by the daemon
const (
	TimerUpdate     = "timerUpdate"
	InactivityAlert = "inactivityAlert"
)

type Manager struct {
	cmdChan  chan interface{}
	expired  chan expiry
	fired    chan string
	alarms   map[string]*entry // owned by runLoop
	seq      uint64
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

type entry struct {
	timer       *time.Timer
	period      time.Duration
	scheduledAt time.Time
	gen         uint64
}

type expiry struct {
	name string
	gen  uint64
}

// --- Command Types ---
type createCmd struct {
	name   string
	delay  time.Duration
	period time.Duration
}
type clearCmd struct {
	name  string
	reply chan bool
}
type getCmd struct {
	name  string
	reply chan getReply
}
type getReply struct {
	at time.Time
	ok bool
}

// NewManager starts the alarm loop. Close stops it.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cmdChan:  make(chan interface{}),
		expired:  make(chan expiry, 16),
		fired:    make(chan string, 16),
		alarms:   make(map[string]*entry),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	go m.runLoop()
	return m
}

// Fired delivers the names of alarms as they go off.
func (m *Manager) Fired() <-chan string {
	return m.fired
}

// CreatePeriodic (re)creates name to fire every period, first after one period.
func (m *Manager) CreatePeriodic(name string, period time.Duration) {
	m.send(createCmd{name: name, delay: period, period: period})
}

// CreateOnce (re)creates name to fire once after delay.
func (m *Manager) CreateOnce(name string, delay time.Duration) {
	m.send(createCmd{name: name, delay: delay})
}

// Clear cancels name and reports whether it existed.
func (m *Manager) Clear(name string) bool {
	reply := make(chan bool, 1)
	if !m.send(clearCmd{name: name, reply: reply}) {
		return false
	}
	return <-reply
}

// Get returns when name will next fire.
func (m *Manager) Get(name string) (time.Time, bool) {
	reply := make(chan getReply, 1)
	if !m.send(getCmd{name: name, reply: reply}) {
		return time.Time{}, false
	}
	r := <-reply
	return r.at, r.ok
}

// Close stops every alarm. Pending firings already on the channel stay there.
func (m *Manager) Close() {
	m.cancel()
	<-m.loopDone
}

func (m *Manager) send(cmd interface{}) bool {
	select {
	case m.cmdChan <- cmd:
	case <-m.ctx.Done():
		return false
	}
	return true
}

func (m *Manager) runLoop() {
	defer close(m.loopDone)
	defer log.Println("Alarm loop stopped.")

	for {
		select {
		case <-m.ctx.Done():
			for _, e := range m.alarms {
				e.timer.Stop()
			}
			return

		case cmd := <-m.cmdChan:
			m.handleCommand(cmd)

		case x := <-m.expired:
			m.handleExpiry(x)
		}
	}
}

func (m *Manager) handleCommand(cmd interface{}) {
	switch c := cmd.(type) {
	case createCmd:
		if old, ok := m.alarms[c.name]; ok {
			old.timer.Stop()
		}
		e := &entry{period: c.period}
		m.arm(c.name, e, c.delay)
		m.alarms[c.name] = e

	case clearCmd:
		e, ok := m.alarms[c.name]
		if ok {
			e.timer.Stop()
			delete(m.alarms, c.name)
		}
		c.reply <- ok

	case getCmd:
		e, ok := m.alarms[c.name]
		if !ok {
			c.reply <- getReply{}
			return
		}
		c.reply <- getReply{at: e.scheduledAt, ok: true}

	default:
		log.Printf("Warning: Unknown command received in alarm loop: %T", c)
	}
}

func (m *Manager) arm(name string, e *entry, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	m.seq++
	e.gen = m.seq
	e.scheduledAt = m.now().Add(delay)
	gen := e.gen
	e.timer = time.AfterFunc(delay, func() {
		select {
		case m.expired <- expiry{name: name, gen: gen}:
		case <-m.ctx.Done():
		}
	})
}

func (m *Manager) handleExpiry(x expiry) {
	e, ok := m.alarms[x.name]
	if !ok || e.gen != x.gen {
		return // cleared or replaced after the timer fired
	}
	if e.period > 0 {
		m.arm(x.name, e, e.period)
	} else {
		delete(m.alarms, x.name)
	}

	select {
	case m.fired <- x.name:
	default:
		log.Printf("Warning: alarm %s fired while the previous firing is still pending, dropping", x.name)
	}
}
