package app

import (
	"context"
	"log"

	"focuspilot/internal/badge"
	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
)

// statePresenter updates the badge and tells subscribers about the new state.
type statePresenter struct {
	badge *badge.Presenter
	hub   *Hub
}

func (p *statePresenter) Present(s model.TimerState) {
	p.badge.Present(s)
	b := badge.RenderState(s)
	p.hub.Publish(ipc.Notice{Type: ipc.NoticeState, Timer: &s, Badge: &b})
}

func (p *statePresenter) Disable() {
	p.badge.Disable()
	b := badge.Disabled()
	p.hub.Publish(ipc.Notice{Type: ipc.NoticeState, Badge: &b})
}

// alertRaiser shows the inactivity alert in every open popup and brings one
// to the front. With no popup open there is nothing to raise.
type alertRaiser struct {
	hub    *Hub
	window WindowRaiser
	title  string
}

func (r *alertRaiser) Raise(_ context.Context, message string) bool {
	if r.hub.Publish(ipc.Notice{Type: ipc.NoticeInactivityAlert, Message: message}) == 0 {
		return false
	}
	if r.window != nil {
		if err := r.window.Raise(r.title); err != nil {
			log.Printf("Warning: could not raise popup window: %v", err)
		}
	}
	return true
}
