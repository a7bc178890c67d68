package state

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"
)

// Door states as reported by a Home Assistant cover entity.
const (
	DoorClosed  = "closed"
	DoorOpening = "opening"
	DoorOpen    = "open"
	DoorClosing = "closing"
	DoorUnknown = "unknown"
)

var doorStates = []string{DoorClosed, DoorOpening, DoorOpen, DoorClosing, DoorUnknown}

// NormalizeDoor maps a raw cover status onto one of the door states.
// Anything unrecognised (unavailable, stopped, "") is unknown.
func NormalizeDoor(status string) string {
	for _, s := range doorStates {
		if status == s {
			return s
		}
	}
	return DoorUnknown
}

func observeEvent(dst string) string {
	return "observe_" + dst
}

// DoorTracker mirrors the host's door state. It has no transitions of its
// own; every observed status is an event leading straight to that state.
type DoorTracker struct {
	fsm         *fsm.FSM
	onChange    func(from, to string)
	transitions int
	mu          sync.Mutex
}

// NewDoorTracker starts in DoorUnknown. onChange may be nil.
func NewDoorTracker(onChange func(from, to string)) *DoorTracker {
	d := &DoorTracker{onChange: onChange}

	events := make(fsm.Events, 0, len(doorStates))
	for _, dst := range doorStates {
		events = append(events, fsm.EventDesc{Name: observeEvent(dst), Src: doorStates, Dst: dst})
	}

	d.fsm = fsm.NewFSM(
		DoorUnknown,
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				d.transitions++
				if d.onChange != nil {
					d.onChange(e.Src, e.Dst)
				}
			},
		},
	)
	return d
}

// Observe feeds a raw status into the tracker and reports whether the
// tracked state changed.
func (d *DoorTracker) Observe(ctx context.Context, status string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.fsm.Event(ctx, observeEvent(NormalizeDoor(status)))
	if err == nil {
		return true, nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return false, nil
	}
	return false, err
}

func (d *DoorTracker) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fsm.Current()
}

// Transitions counts state changes since construction.
func (d *DoorTracker) Transitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transitions
}
