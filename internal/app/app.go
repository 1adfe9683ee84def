package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"focuspilot/internal/alarm"
	"focuspilot/internal/badge"
	"focuspilot/internal/config"
	"focuspilot/internal/event"
	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
	"focuspilot/internal/platform/notify"
	"focuspilot/internal/platform/x11"
	"focuspilot/internal/reminder"
	"focuspilot/internal/schedule"
	"focuspilot/internal/sound"
	"focuspilot/internal/state"
	"focuspilot/internal/storage"
	"focuspilot/internal/storage/memory"
	"focuspilot/internal/timer"

	sqlitestore "focuspilot/internal/storage/sqlite"
)

// WindowRaiser brings the popup window to the front.
type WindowRaiser interface {
	Raise(title string) error
	Close()
}

// Options replace the daemon's collaborators. Zero values select the real ones.
type Options struct {
	Loader   *config.Loader
	Store    storage.Storage
	Output   func() (sound.Output, error)
	Raiser   WindowRaiser
	Notifier notify.Notifier
	Now      func() time.Time
}

type request struct {
	fn    func() ipc.Response
	reply chan ipc.Response
}

type App struct {
	cfg     *config.Config
	loader  *config.Loader
	storage storage.Storage
	repo    *state.Repository

	timer     *timer.Controller
	presenter *badge.Presenter
	alarms    *alarm.Manager
	reminders *reminder.Scheduler
	host      *sound.Host
	player    *sound.Player
	hub       *Hub
	raiser    WindowRaiser
	notifier  notify.Notifier
	now       func() time.Time

	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener

	// Everything that touches the timer runs on mainLoop.
	requests   chan request
	internal   chan ipc.Message
	configChan chan *config.Config

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
}

func NewApp(cfg *config.Config, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		loader:     opts.Loader,
		socketPath: cfg.SocketPath,
		hub:        NewHub(),
		now:        opts.Now,
		requests:   make(chan request),
		internal:   make(chan ipc.Message, 8),
		configChan: make(chan *config.Config, 1),
		ctx:        ctx,
		cancel:     cancel,
		ready:      make(chan struct{}),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.socketPath == "" {
		a.socketPath = ipc.DefaultSocketPath()
	}

	// Initialize Storage
	a.storage = opts.Store
	if a.storage == nil {
		if cfg.DatabasePath == config.MemoryDatabase {
			log.Println("Warning: using in-memory storage, state is lost on exit")
			a.storage = memory.New()
		} else {
			a.storage = sqlitestore.NewSQLiteStore(cfg.DatabasePath)
		}
	}
	if err := a.storage.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.repo = state.NewRepository(a.storage, cfg.SettingsDefaults(), cfg.AlertDefaults())
	a.repo.SetClock(a.now)

	// Badge: a status-bar file when configured; sink errors are logged
	a.presenter = badge.NewPresenter(log.Printf)
	if cfg.Badge.File != "" {
		a.presenter.AddSink(badge.FileSink{Path: cfg.Badge.File, Label: cfg.Badge.Label})
	}

	// Sound
	newOutput := opts.Output
	if newOutput == nil {
		command := cfg.Sound.Command
		newOutput = func() (sound.Output, error) {
			out, err := sound.NewCommandOutput(command)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	a.host = sound.NewHost(newOutput, sound.ContextOptions{
		Cooldown:    cfg.Sound.Cooldown(),
		CloseBuffer: cfg.Sound.CloseBuffer(),
	}, func() { a.post(ipc.OffscreenClosed{Target: "background"}) })
	a.player = sound.NewPlayer(a.host)

	a.timer = timer.NewController(a.repo, timer.Options{
		Policy:    timer.PolicyFor(cfg.Pomodoro.AutoContinue),
		Presenter: &statePresenter{badge: a.presenter, hub: a.hub},
		Chime:     func(ended model.Phase) { a.player.Play(sound.Kind(ended)) },
		Now:       a.now,
	})

	// Window raising is optional; without X the alert still reaches subscribers.
	a.raiser = opts.Raiser
	if a.raiser == nil {
		r, err := x11.NewWindowRaiser()
		if err != nil {
			log.Printf("Warning: Failed to initialize X11 window raiser: %v. Popup raising disabled.", err)
		} else {
			a.raiser = r
		}
	}
	a.notifier = opts.Notifier
	if a.notifier == nil {
		a.notifier = notify.New(cfg.Notify.Command)
	}

	a.alarms = alarm.NewManager()
	a.reminders = reminder.NewScheduler(a.repo, a.alarms,
		&alertRaiser{hub: a.hub, window: a.raiser, title: cfg.UI.WindowTitle}, a.notifier)
	a.reminders.SetClock(a.now)

	return a, nil
}

// Ready is closed once the daemon accepts connections.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Shutdown asks Run to stop.
func (a *App) Shutdown() {
	a.cancel()
}

// SocketPath is where the daemon listens.
func (a *App) SocketPath() string {
	return a.socketPath
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		log.Printf("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}
	if err := os.Chmod(a.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set permissions on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	log.Printf("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer log.Println("Socket command listener stopped.")

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Failed to accept connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// handleConnection decodes one message and answers it, or streams notices
// for SUBSCRIBE.
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var env ipc.Envelope
	if err := decoder.Decode(&env); err != nil {
		if err != io.EOF {
			log.Printf("Failed to decode message: %v", err)
		}
		_ = encoder.Encode(ipc.Fail("Failed to decode message: %v", err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	msg, err := ipc.Decode(env)
	if err != nil {
		log.Printf("Rejected message: %v", err)
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = encoder.Encode(ipc.Fail("%v", err))
		return
	}

	if _, ok := msg.(ipc.Subscribe); ok {
		a.streamNotices(conn, encoder)
		return
	}

	log.Printf("Received message: %s", msg.Kind())
	response := a.dispatch(msg)
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := encoder.Encode(response); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// streamNotices keeps the connection open and writes every notice until the
// client hangs up or the daemon stops.
func (a *App) streamNotices(conn *net.UnixConn, encoder *json.Encoder) {
	notices, cancel := a.hub.Subscribe()
	defer cancel()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := encoder.Encode(ipc.OK("subscribed", nil)); err != nil {
		log.Printf("Failed to acknowledge subscription: %v", err)
		return
	}
	log.Printf("Subscriber connected (%d active)", a.hub.Count())

	gone := make(chan struct{})
	a.wg.Go(func() {
		defer close(gone)
		_, _ = io.Copy(io.Discard, conn)
	})

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-gone:
			log.Println("Subscriber disconnected")
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := encoder.Encode(n); err != nil {
				log.Printf("Failed to send notice, dropping subscriber: %v", err)
				return
			}
		}
	}
}

// dispatch hands msg to the event loop and waits for its answer.
func (a *App) dispatch(msg ipc.Message) ipc.Response {
	return a.do(func() ipc.Response { return a.processMessage(msg) })
}

// do runs fn on the event loop.
func (a *App) do(fn func() ipc.Response) ipc.Response {
	req := request{fn: fn, reply: make(chan ipc.Response, 1)}
	select {
	case a.requests <- req:
	case <-a.ctx.Done():
		return ipc.Fail("Daemon is shutting down")
	case <-time.After(2 * time.Second):
		return ipc.Fail("Timeout waiting for the event loop")
	}
	select {
	case resp := <-req.reply:
		return resp
	case <-a.ctx.Done():
		return ipc.Fail("Daemon is shutting down")
	}
}

// post queues a message from inside the daemon.
func (a *App) post(msg ipc.Message) {
	select {
	case a.internal <- msg:
	case <-a.ctx.Done():
	default:
		log.Printf("Warning: event loop busy, dropping internal %s", msg.Kind())
	}
}

// mainLoop is the only goroutine that reads or writes the timer.
func (a *App) mainLoop() {
	defer log.Println("Main event loop stopped.")

	for {
		select {
		case <-a.ctx.Done():
			return

		case req := <-a.requests:
			req.reply <- req.fn()

		case name := <-a.alarms.Fired():
			a.handleAlarm(name)

		case msg := <-a.internal:
			a.processMessage(msg)

		case cfg := <-a.configChan:
			a.applyConfig(cfg)
		}
	}
}

func (a *App) handleAlarm(name string) {
	switch name {
	case alarm.TimerUpdate:
		a.timer.Tick(a.ctx)
	case alarm.InactivityAlert:
		a.reminders.Check(a.ctx)
	default:
		log.Printf("Unknown alarm fired: %s", name)
	}
}

// processMessage routes the message to the correct handler
func (a *App) processMessage(msg ipc.Message) ipc.Response {
	ctx := a.ctx
	switch m := msg.(type) {
	case ipc.Ping:
		return ipc.OK("pong", nil)

	case ipc.GetStatus:
		return ipc.OK("", a.status(ctx))

	case ipc.Start:
		st := a.timer.Start(ctx)
		return ipc.OK(fmt.Sprintf("Timer running: %s, %s left", st.Phase(), badge.FormatTime(st.TimeLeft)), st)

	case ipc.Stop:
		st := a.timer.Stop(ctx)
		return ipc.OK(fmt.Sprintf("Timer paused: %s, %s left", st.Phase(), badge.FormatTime(st.TimeLeft)), st)

	case ipc.RestartWork:
		st := a.timer.Restart(ctx, model.PhaseWork)
		return ipc.OK("Work session reset", ipc.RestartResult{TimeLeft: st.TimeLeft, IsWorkTime: st.IsWorkTime})

	case ipc.RestartBreak:
		st := a.timer.Restart(ctx, model.PhaseBreak)
		return ipc.OK("Break reset", ipc.RestartResult{TimeLeft: st.TimeLeft, IsWorkTime: st.IsWorkTime})

	case ipc.TimerUpdate:
		a.timer.Observe(model.TimerState{
			TimeLeft:    m.TimeLeft,
			IsRunning:   m.IsRunning,
			IsWorkTime:  m.IsWorkTime,
			LastUpdated: a.now().UnixMilli(),
		})
		return ipc.OK("", nil)

	case ipc.DisableBadge:
		a.timer.DisableBadge()
		return ipc.OK("Badge disabled", nil)

	case ipc.PlaySound:
		kind, err := sound.ParseKind(m.TimerType)
		if err != nil {
			return ipc.Fail("Invalid PLAY_SOUND: %v", err)
		}
		a.player.Play(kind)
		return ipc.OK(fmt.Sprintf("Playing %s sound", kind), nil)

	case ipc.OffscreenClosed:
		log.Printf("Sound context closed (target: %s)", m.Target)
		a.player.HandleClosed()
		return ipc.OK("", nil)

	case ipc.DismissAlert:
		a.repo.SetShowInactivityAlert(ctx, false)
		return ipc.OK("Alert dismissed", nil)

	case ipc.SaveSettings:
		if m.Settings.WorkTime <= 0 || m.Settings.BreakTime <= 0 {
			return ipc.Fail("Work and break times must be positive minutes")
		}
		if err := schedule.Validate(m.Settings.Schedule); err != nil {
			return ipc.Fail("Invalid schedule: %v", err)
		}
		if err := a.repo.SaveSettings(ctx, m.Settings); err != nil {
			return ipc.Fail("Failed to save settings: %v", err)
		}
		log.Printf("Settings saved: work %dm, break %dm, sound %t", m.Settings.WorkTime, m.Settings.BreakTime, m.Settings.SoundEnabled)
		return ipc.OK("Settings saved", a.repo.Settings(ctx))

	case ipc.SaveAlertSettings:
		if err := a.repo.SaveAlertSettings(ctx, m.AlertSettings); err != nil {
			return ipc.Fail("Failed to save alert settings: %v", err)
		}
		a.reminders.Rearm(ctx)
		alerts, _ := a.repo.AlertSettings(ctx)
		return ipc.OK("Alert settings saved", alerts)

	case ipc.Subscribe:
		return ipc.Fail("SUBSCRIBE needs its own connection")

	default:
		return ipc.Fail("Unknown message: %s", msg.Kind())
	}
}

func (a *App) status(ctx context.Context) ipc.StatusData {
	st := a.timer.Wake(ctx)
	settings := a.repo.Settings(ctx)
	alerts, _ := a.repo.AlertSettings(ctx)
	data := ipc.StatusData{
		Timer:               st,
		Badge:               badge.RenderState(st),
		Settings:            settings,
		AlertSettings:       alerts,
		ShowInactivityAlert: a.repo.ShowInactivityAlert(ctx),
		WithinSchedule:      schedule.IsWithin(settings.Schedule, a.now()),
		AutoContinue:        a.cfg.Pomodoro.AutoContinue,
	}
	if at, ok := a.alarms.Get(alarm.InactivityAlert); ok {
		data.NextReminder = &at
	}
	return data
}

// applyConfig takes over a reloaded configuration.
func (a *App) applyConfig(cfg *config.Config) {
	log.Printf("Applying reloaded configuration")
	if cfg.SocketPath != a.cfg.SocketPath || cfg.DatabasePath != a.cfg.DatabasePath {
		log.Println("Warning: socket_path and database_path changes need a restart")
	}
	if cfg.TickInterval() != a.cfg.TickInterval() {
		a.alarms.CreatePeriodic(alarm.TimerUpdate, cfg.TickInterval())
	}
	a.timer.SetPolicy(timer.PolicyFor(cfg.Pomodoro.AutoContinue))
	a.repo.SetDefaults(cfg.SettingsDefaults(), cfg.AlertDefaults())
	a.cfg = cfg
	a.reminders.Rearm(a.ctx)
	a.timer.Wake(a.ctx)
}

// Reload queues cfg for the event loop; a newer one replaces a pending one.
func (a *App) Reload(cfg *config.Config) {
	for {
		select {
		case a.configChan <- cfg:
			return
		case <-a.ctx.Done():
			return
		default:
		}
		select {
		case <-a.configChan:
		default:
		}
	}
}

func (a *App) Run() error {
	log.Println("Starting Focus Co-Pilot daemon...")
	log.Printf("Config: %+v", *a.cfg)
	if a.raiser == nil {
		log.Println("Popup raising: DISABLED")
	} else {
		log.Println("Popup raising: ENABLED")
	}

	if err := a.setupSocket(); err != nil {
		a.cancel()
		return multierr.Append(err, a.cleanup())
	}

	a.handleSignals()

	a.wg.Go(a.mainLoop)

	// Bring the stored timer up to date before anything ticks it
	if err := a.startup(); err != nil {
		a.cancel()
		a.listener.Close()
		return multierr.Append(err, a.cleanup())
	}

	a.wg.Go(a.listenForCommands)

	a.repo.Record(a.ctx, event.Event{Timestamp: a.now(), Type: event.EventTypeAppStart})

	if a.loader != nil {
		a.loader.Watch(a.Reload)
	}

	close(a.ready)
	log.Println("Focus Co-Pilot daemon running. Send commands via focuspilot-cli or socket.")
	<-a.ctx.Done()

	log.Println("Shutdown signal received, waiting for components...")
	if err := a.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("Error closing socket listener: %v", err)
	}
	a.hub.Close()

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()
	select {
	case <-waitChan:
		log.Println("All daemon goroutines finished.")
	case <-time.After(5 * time.Second):
		log.Println("Warning: Timeout waiting for daemon goroutines to stop.")
	}

	err := a.cleanup()
	log.Println("Focus Co-Pilot daemon finished.")
	return err
}

// startup runs the wake-up work on the event loop.
func (a *App) startup() error {
	resp := a.do(func() ipc.Response {
		st := a.timer.Wake(a.ctx)
		log.Printf("Timer restored: %s, %ds left, running: %t", st.Phase(), st.TimeLeft, st.IsRunning)
		a.reminders.Setup(a.ctx)
		return ipc.OK("", nil)
	})
	if !resp.Success {
		return fmt.Errorf("startup failed: %s", resp.Message)
	}
	a.alarms.CreatePeriodic(alarm.TimerUpdate, a.cfg.TickInterval())
	return nil
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v. Initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
	}()
}

// cleanup records the stop, releases every component and removes the socket.
func (a *App) cleanup() error {
	log.Println("Running cleanup...")
	var errs error

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer saveCancel()
	if _, err := a.storage.SaveEvent(saveCtx, event.Event{Timestamp: a.now(), Type: event.EventTypeAppStop}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to save app_stop event: %w", err))
	}

	a.alarms.Close()
	a.host.Close()
	a.player.Wait()
	if a.raiser != nil {
		a.raiser.Close()
	}
	if c, ok := a.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error closing notifier: %w", err))
		}
	}

	if err := a.storage.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("error closing storage: %w", err))
	}

	if a.listener != nil {
		if _, err := os.Stat(a.socketPath); err == nil {
			log.Printf("Removing socket file: %s", a.socketPath)
			if err := os.Remove(a.socketPath); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to remove socket file %s: %w", a.socketPath, err))
			}
		}
	}

	for _, err := range multierr.Errors(errs) {
		log.Printf("Warning: %v", err)
	}
	log.Println("Cleanup finished.")
	return errs
}
