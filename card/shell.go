package card

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/elijahnyp/garage_card/state"
	"github.com/elijahnyp/garage_card/util"
)

// CardSize is the layout size hint reported to the dashboard.
const CardSize = 4

// DefaultTickInterval drives the elapsed-time refresh while attached.
const DefaultTickInterval = time.Second

// Element ids of the card tree.
const (
	IDCard            = "garage-card"
	IDScene           = "garage-scene"
	IDDoorTouchTarget = "door-touch-target"
	IDDoor            = "garage-door"
	IDLightToggle     = "light-toggle"
	IDLightIcon       = "light-icon"
	IDDoorToggle      = "door-toggle"
	IDDoorIndicator   = "door-indicator"
	IDDoorText        = "door-text"
	IDDoorIcon        = "door-icon"
	IDKeepOpenToggle  = "keep-open-toggle"
	IDCountdown       = "countdown"
	IDCountdownText   = "countdown-text"
	IDCarStatus       = "car-status"
)

func carID(i int) string       { return "car-" + strconv.Itoa(i) }
func carDotID(i int) string    { return "car" + strconv.Itoa(i) + "-dot" }
func carStatusID(i int) string { return "car" + strconv.Itoa(i) + "-status" }
func carTimeID(i int) string   { return "car" + strconv.Itoa(i) + "-time" }

// Widget owns the card tree for one configuration. Every entry point runs
// under one lock, so a state update and a timer refresh never interleave;
// whichever runs last decides what is displayed.
type Widget struct {
	cfg        *Config
	snap       state.Snapshot
	doc        *document
	dispatcher Dispatcher
	door       *state.DoorTracker
	clock      func() time.Time
	observers  []func(ViewModel)
	view       ViewModel
	interval   time.Duration
	mu         sync.Mutex
	stale      bool
	hasView    bool

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

type Option func(*Widget)

func WithClock(clock func() time.Time) Option {
	return func(w *Widget) { w.clock = clock }
}

func WithTickInterval(d time.Duration) Option {
	return func(w *Widget) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithObserver registers fn to receive every applied view model. It runs
// while the widget is locked and must neither block nor call back into it.
func WithObserver(fn func(ViewModel)) Option {
	return func(w *Widget) { w.observers = append(w.observers, fn) }
}

func NewWidget(d Dispatcher, opts ...Option) *Widget {
	w := &Widget{
		dispatcher: d,
		clock:      time.Now,
		interval:   DefaultTickInterval,
		stale:      true,
	}
	w.door = state.NewDoorTracker(func(from, to string) {
		util.Logger.Info().Msgf("door %s -> %s", from, to)
	})
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Widget) CardSize() int { return CardSize }

// Configure replaces the configuration. The tree is rebuilt from scratch on
// the next UpdateState.
func (w *Widget) Configure(cfg *Config) error {
	if cfg == nil {
		return ErrInvalidConfig
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
	w.stale = true
	util.Logger.Debug().Msgf("card %q configured with %d vehicle(s)", cfg.Name, len(cfg.Vehicles()))
	return nil
}

func (w *Widget) Config() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// UpdateState stores snap, builds the tree if needed and applies a fresh
// projection to it.
func (w *Widget) UpdateState(snap state.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snap = snap
	if w.cfg == nil {
		return
	}
	if w.stale || w.doc == nil {
		w.renderStructure()
	}
	if _, err := w.door.Observe(context.Background(), snap.Status(w.cfg.DoorEntity, state.DoorUnknown)); err != nil {
		util.Logger.Warn().Err(err).Msg("door tracker rejected status")
	}
	w.applyView(Project(w.cfg, snap, w.clock()))
	util.StateUpdatesTotal.Inc()
}

// renderStructure builds the tree for the optional elements present in the
// current config and wires the click regions.
func (w *Widget) renderStructure() {
	cfg := w.cfg
	d := newDocument()
	vehicles := cfg.Vehicles()
	assets := cfg.AssetsPath

	root := d.element(nil, "div", IDCard, "garage-card")
	header := d.element(root, "div", "", "header")
	setText(d.element(header, "span", "", "header-title"), cfg.Name)

	sceneClasses := []string{"garage-scene"}
	if cfg.HasLight() {
		sceneClasses = append(sceneClasses, "has-light")
	}
	scene := d.element(root, "div", IDScene, sceneClasses...)
	d.element(scene, "div", IDDoorTouchTarget, "door-touch-target")
	base := d.element(d.element(scene, "div", "", "layer", "garage-base"), "img", "")
	setAttr(base, "src", assets+"/garage-base.png")
	setAttr(base, "alt", "Garage")
	for _, v := range vehicles {
		img := d.element(d.element(scene, "div", carID(v.Index), "layer", "car"), "img", "")
		setAttr(img, "src", assets+"/"+v.Image)
		setAttr(img, "alt", v.Name)
	}
	doorImg := d.element(d.element(scene, "div", IDDoor, "layer", "garage-door"), "img", "")
	setAttr(doorImg, "src", assets+"/garage-door-closed.png")
	setAttr(doorImg, "alt", "Door")
	if cfg.HasLight() {
		btn := d.element(scene, "button", IDLightToggle, "light-btn")
		setIcon(d.element(btn, "ha-icon", IDLightIcon), IconLightOff)
	}
	if cfg.HasCountdown() {
		cd := d.element(scene, "div", IDCountdown, "countdown")
		setText(d.element(cd, "span", IDCountdownText, "countdown-text"), CountdownDefault)
	}

	bar := d.element(root, "div", "", "status-bar")
	controls := d.element(bar, "div", "", "controls-row")
	pill := d.element(controls, "div", IDDoorToggle, "door-status")
	d.element(pill, "span", IDDoorIndicator, "indicator")
	setText(d.element(pill, "span", IDDoorText, "text"), "Unknown")
	setIcon(d.element(pill, "ha-icon", IDDoorIcon), IconDoorClosed)
	if cfg.HasKeepOpen() {
		keep := d.element(controls, "div", IDKeepOpenToggle, "keep-open-toggle")
		setIcon(d.element(keep, "ha-icon", ""), "mdi:lock-open-variant-outline")
		setText(d.element(keep, "span", ""), "Keep Open")
		d.element(keep, "div", "", "toggle-indicator")
	}
	if len(vehicles) > 0 {
		status := d.element(bar, "div", IDCarStatus, "car-status")
		for _, v := range vehicles {
			badge := d.element(status, "div", "", "car-badge")
			row := d.element(badge, "div", "", "badge-row")
			d.element(row, "span", carDotID(v.Index), "dot")
			setText(d.element(row, "span", "", "name"), v.Name)
			setText(d.element(row, "span", carStatusID(v.Index), "status"), "Away")
			d.element(badge, "span", carTimeID(v.Index), "time-info")
		}
	}

	d.on(IDScene, func(*clickEvent) { w.dispatch(ToggleDoor(cfg.DoorEntity)) })
	d.on(IDDoorToggle, func(e *clickEvent) {
		e.StopPropagation()
		w.dispatch(ToggleDoor(cfg.DoorEntity))
	})
	d.on(IDLightToggle, func(e *clickEvent) {
		e.StopPropagation()
		if cfg.HasLight() {
			w.dispatch(ToggleLight(cfg.LightEntity))
		}
	})
	d.on(IDKeepOpenToggle, func(e *clickEvent) {
		e.StopPropagation()
		if cfg.HasKeepOpen() {
			w.dispatch(ToggleKeepOpen(cfg.KeepOpenEntity))
		}
	})

	w.doc = d
	w.stale = false
	w.hasView = false
	util.StructuralRendersTotal.Inc()
	util.Logger.Debug().Msgf("card %q rendered with %d elements", cfg.Name, len(d.byID))
}

// applyView patches the existing tree; it never adds or removes elements.
func (w *Widget) applyView(vm ViewModel) {
	d := w.doc
	door := d.get(IDDoor)
	toggleClass(door, "open", vm.Door.Open)
	toggleClass(door, "moving", vm.Door.Moving)
	indicator := d.get(IDDoorIndicator)
	toggleClass(indicator, "open", vm.Door.Open && !vm.Door.Moving)
	toggleClass(indicator, "moving", vm.Door.Moving)
	setText(d.get(IDDoorText), vm.Door.Text)
	setIcon(d.get(IDDoorIcon), vm.Door.Icon)

	for _, v := range vm.Vehicles {
		toggleClass(d.get(carID(v.Index)), "away", !v.Present)
		toggleClass(d.get(carDotID(v.Index)), "home", v.Present)
		status := d.get(carStatusID(v.Index))
		setText(status, v.Status)
		toggleClass(status, "home", v.Present)
	}

	if vm.Light.Configured {
		toggleClass(d.get(IDScene), "lit", vm.Light.On)
		toggleClass(d.get(IDLightToggle), "on", vm.Light.On)
		setIcon(d.get(IDLightIcon), vm.Light.Icon)
	}
	toggleClass(d.get(IDKeepOpenToggle), "enabled", vm.KeepOpen.Enabled)

	w.applyTimes(vm)
}

// applyTimes patches only the time-derived elements.
func (w *Widget) applyTimes(vm ViewModel) {
	d := w.doc
	for _, v := range vm.Vehicles {
		setText(d.get(carTimeID(v.Index)), v.Time)
	}
	if vm.Countdown.Configured {
		setText(d.get(IDCountdownText), vm.Countdown.Text)
		toggleClass(d.get(IDCountdown), "active", vm.Countdown.Active)
	}
	w.view = vm
	w.hasView = true
	for _, fn := range w.observers {
		fn(vm)
	}
}

func (w *Widget) dispatch(cmd Command) {
	if w.dispatcher == nil || cmd.EntityID == "" {
		return
	}
	util.CommandsTotal.WithLabelValues(cmd.Domain, cmd.Service).Inc()
	util.Logger.Debug().Msgf("dispatching %s.%s for %s", cmd.Domain, cmd.Service, cmd.EntityID)
	w.dispatcher.Dispatch(cmd)
}

// Tick refreshes the elapsed-time fields without a full state refresh.
func (w *Widget) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil || w.cfg == nil || w.stale || !w.hasView {
		return
	}
	w.applyTimes(refreshTimes(w.view, w.cfg, w.snap, w.clock()))
}

// Attach starts the refresh ticker. Calling it twice is harmless.
func (w *Widget) Attach() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	w.stop, w.done = stop, done
	ticker := time.NewTicker(w.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.Tick()
			}
		}
	}()
	util.Logger.Debug().Msg("card attached")
}

// Detach stops the refresh ticker and waits for it to exit.
func (w *Widget) Detach() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop, w.done = nil, nil
	util.Logger.Debug().Msg("card detached")
}

func (w *Widget) Attached() bool {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	return w.stop != nil
}

// Click simulates a click on the element with the given id. It reports
// false when nothing is rendered or no such element exists.
func (w *Widget) Click(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil || w.stale {
		return false
	}
	return w.doc.click(id)
}

// View returns the last applied view model.
func (w *Widget) View() (ViewModel, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	vm := w.view
	vm.Vehicles = append([]VehicleView(nil), w.view.Vehicles...)
	return vm, w.hasView
}

// HTML renders the current tree, or "" before the first render.
func (w *Widget) HTML() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := w.doc.render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ElementIDs lists the ids present in the rendered tree.
func (w *Widget) ElementIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil {
		return nil
	}
	return w.doc.ids()
}

func (w *Widget) DoorState() string {
	return w.door.Current()
}
