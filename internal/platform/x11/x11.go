// Package x11 brings an existing window to the front by its title.
package x11

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// ErrNoWindow is returned by Raise when no managed window has the title.
var ErrNoWindow = errors.New("x11: no window with that title")

type WindowRaiser struct {
	X  *xgbutil.XUtil
	mu sync.Mutex
}

func NewWindowRaiser() (*WindowRaiser, error) {
	X, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	// _NET_CLIENT_LIST and _NET_ACTIVE_WINDOW are EWMH
	if _, err := ewmh.SupportingWmCheckGet(X, X.RootWin()); err != nil {
		log.Printf("Warning: EWMH potentially not supported by Window Manager: %v", err)
	}
	return &WindowRaiser{X: X}, nil
}

type window struct {
	id    xproto.Window
	title string
}

func (r *WindowRaiser) windows() ([]window, error) {
	ids, err := ewmh.ClientListGet(r.X)
	if err != nil {
		return nil, fmt.Errorf("could not list client windows: %w", err)
	}
	out := make([]window, 0, len(ids))
	for _, id := range ids {
		// _NET_WM_NAME preferred, fallback to WM_NAME
		title, err := ewmh.WmNameGet(r.X, id)
		if err != nil || title == "" {
			title, err = icccm.WmNameGet(r.X, id)
			if err != nil {
				continue
			}
		}
		out = append(out, window{id: id, title: title})
	}
	return out, nil
}

// Raise activates the window titled title and reports which one it picked.
func (r *WindowRaiser) Raise(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wins, err := r.windows()
	if err != nil {
		return err
	}
	w, ok := findWindow(wins, title)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoWindow, title)
	}
	if err := ewmh.ActiveWindowReq(r.X, w.id); err != nil {
		return fmt.Errorf("could not activate window %d: %w", w.id, err)
	}
	log.Printf("Raised window %d %.60q", w.id, w.title)
	return nil
}

func (r *WindowRaiser) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.X.Conn().Close()
}

// findWindow prefers an exact title match, then a title starting with want,
// then one containing it.
func findWindow(wins []window, want string) (window, bool) {
	if want == "" {
		return window{}, false
	}
	for _, w := range wins {
		if w.title == want {
			return w, true
		}
	}
	for _, w := range wins {
		if strings.HasPrefix(w.title, want) {
			return w, true
		}
	}
	for _, w := range wins {
		if strings.Contains(w.title, want) {
			return w, true
		}
	}
	return window{}, false
}
