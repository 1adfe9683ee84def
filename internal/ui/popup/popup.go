// Package popup is the interactive timer window, drawn in the terminal.
package popup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"

	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
	"focuspilot/internal/reminder"
)

// ErrNoTTY is returned when the popup is not attached to a terminal.
var ErrNoTTY = errors.New("popup: stdin and stdout must be a terminal")

const defaultAlertMessage = reminder.NotificationMessage

const (
	pageMain  = "main"
	pageAlert = "alert"
)

// setTitle names the terminal window so the daemon can find and raise it.
func setTitle(w io.Writer, title string) {
	fmt.Fprintf(w, "\033]0;%s\007", title)
}

type popup struct {
	ctx    context.Context
	client *ipc.Client
	view   *view

	app     *tview.Application
	pages   *tview.Pages
	body    *tview.Flex
	header  *tview.TextView
	clock   *tview.TextView
	status  *tview.TextView
	modal   *tview.Modal
	buttons []*tview.Button
}

// Run shows the popup until the user quits or ctx ends.
func Run(ctx context.Context, client *ipc.Client, title string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNoTTY
	}

	resp, err := client.Send(ctx, ipc.GetStatus{})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("daemon refused status: %s", resp.Message)
	}
	var status ipc.StatusData
	if err := resp.DecodeData(&status); err != nil {
		return fmt.Errorf("invalid status from daemon: %w", err)
	}

	setTitle(os.Stdout, title)
	defer setTitle(os.Stdout, "")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := &popup{ctx: ctx, client: client, view: newView(status), app: tview.NewApplication()}
	p.build()

	go p.tick()
	go p.follow()

	err = p.app.Run()
	cancel()
	return err
}

func (p *popup) build() {
	p.header = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)
	p.clock = tview.NewTextView().SetTextAlign(tview.AlignCenter)
	p.status = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)

	actions := []struct {
		label string
		msg   ipc.Message
	}{
		{"Start", ipc.Start{}},
		{"Stop", ipc.Stop{}},
		{"Restart Work", ipc.RestartWork{}},
		{"Restart Break", ipc.RestartBreak{}},
	}
	row := tview.NewFlex()
	for _, a := range actions {
		msg := a.msg
		b := tview.NewButton(a.label).SetSelectedFunc(func() { p.send(msg) })
		p.buttons = append(p.buttons, b)
		row.AddItem(b, 0, 1, len(p.buttons) == 1)
		row.AddItem(nil, 1, 0, false)
	}

	p.body = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.header, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(p.clock, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(row, 1, 0, true).
		AddItem(p.status, 1, 0, false)
	p.body.SetBorder(true).SetTitle(" Focus Co-Pilot ")

	p.modal = tview.NewModal().
		AddButtons([]string{"Start Focusing"}).
		SetDoneFunc(func(int, string) { p.startFocusing() })

	p.pages = tview.NewPages().
		AddPage(pageMain, p.body, true, true).
		AddPage(pageAlert, p.modal, true, false)

	p.app.SetRoot(p.pages, true).SetInputCapture(p.keys)
	p.app.SetFocus(p.buttons[0])
	p.refresh()
	if msg, ok := p.view.pendingAlert(); ok {
		p.showAlert(msg)
	}
}

// keys handles shortcuts and moves focus between the buttons.
func (p *popup) keys(ev *tcell.EventKey) *tcell.EventKey {
	if front, _ := p.pages.GetFrontPage(); front == pageAlert {
		return ev
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		p.app.Stop()
		return nil
	case tcell.KeyTab, tcell.KeyRight:
		p.moveFocus(1)
		return nil
	case tcell.KeyBacktab, tcell.KeyLeft:
		p.moveFocus(-1)
		return nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			p.app.Stop()
		case 's':
			p.send(ipc.Start{})
		case 'p':
			p.send(ipc.Stop{})
		case 'w':
			p.send(ipc.RestartWork{})
		case 'b':
			p.send(ipc.RestartBreak{})
		default:
			return ev
		}
		return nil
	}
	return ev
}

func (p *popup) moveFocus(step int) {
	for i, b := range p.buttons {
		if b.HasFocus() {
			next := (i + step + len(p.buttons)) % len(p.buttons)
			p.app.SetFocus(p.buttons[next])
			return
		}
	}
	p.app.SetFocus(p.buttons[0])
}

// refresh redraws from the view. Must run on the UI goroutine.
func (p *popup) refresh() {
	d := p.view.frame(time.Now())
	p.header.SetText(d.Title)
	p.clock.SetText(d.Clock)
	p.body.SetBorderColor(d.Border)
	p.body.SetTitleColor(d.Border)
}

func (p *popup) setStatus(format string, args ...interface{}) {
	p.status.SetText(fmt.Sprintf(format, args...))
}

func (p *popup) showAlert(message string) {
	p.modal.SetText(reminder.AlertTitle + "\n\n" + message)
	p.pages.ShowPage(pageAlert)
	p.app.SetFocus(p.modal)
}

// startFocusing dismisses the alert and starts a work session.
func (p *popup) startFocusing() {
	p.view.clearAlert()
	p.pages.HidePage(pageAlert)
	p.app.SetFocus(p.buttons[0])
	isWork := p.view.current().IsWorkTime
	go func() {
		msgs := []ipc.Message{ipc.DismissAlert{}}
		if !isWork {
			msgs = append(msgs, ipc.RestartWork{})
		}
		msgs = append(msgs, ipc.Start{})
		for _, m := range msgs {
			if !p.deliver(m) {
				return
			}
		}
	}()
}

// send delivers m without blocking the UI.
func (p *popup) send(m ipc.Message) {
	go p.deliver(m)
}

func (p *popup) deliver(m ipc.Message) bool {
	resp, err := p.client.Send(p.ctx, m)
	if err == nil && !resp.Success {
		err = errors.New(resp.Message)
	}
	if err != nil {
		p.app.QueueUpdateDraw(func() { p.setStatus("[red]%v", err) })
		return false
	}

	switch m.(type) {
	case ipc.Start, ipc.Stop:
		var st model.TimerState
		if resp.DecodeData(&st) == nil {
			p.view.setState(st)
		}
	case ipc.RestartWork, ipc.RestartBreak:
		var r ipc.RestartResult
		if resp.DecodeData(&r) == nil {
			p.view.setState(model.TimerState{
				TimeLeft:    r.TimeLeft,
				IsWorkTime:  r.IsWorkTime,
				LastUpdated: time.Now().UnixMilli(),
			})
		}
	}
	p.app.QueueUpdateDraw(func() {
		p.setStatus("%s", resp.Message)
		p.refresh()
	})
	return true
}

// tick redraws the countdown every second.
func (p *popup) tick() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
			p.app.QueueUpdateDraw(p.refresh)
		}
	}
}

// follow keeps a subscription open, reconnecting while the daemon restarts.
func (p *popup) follow() {
	for {
		err := p.client.Subscribe(p.ctx, func(n ipc.Notice) {
			alert := p.view.apply(n)
			p.app.QueueUpdateDraw(func() {
				p.refresh()
				if alert {
					if msg, ok := p.view.pendingAlert(); ok {
						p.showAlert(msg)
					}
				}
			})
		})
		if p.ctx.Err() != nil {
			return
		}
		if err != nil {
			p.app.QueueUpdateDraw(func() { p.setStatus("[yellow]Lost daemon: %v", err) })
		}
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}
