package card

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/elijahnyp/garage_card/state"
)

// Icons used by the card.
const (
	IconDoorOpen     = "mdi:garage-open"
	IconDoorClosed   = "mdi:garage"
	IconLightOn      = "mdi:lightbulb"
	IconLightOff     = "mdi:lightbulb-outline"
	CountdownDefault = "--"
	CountdownSoon    = "Closing Soon"
	timeLayout       = "3:04 PM"
)

var countdownPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// DoorView is the projected door.
type DoorView struct {
	State     string `json:"state"`
	Text      string `json:"text"`
	Icon      string `json:"icon"`
	Open      bool   `json:"open"`
	Moving    bool   `json:"moving"`
	Indicator string `json:"indicator"`
}

type VehicleView struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Time    string `json:"time"`
	Index   int    `json:"index"`
	Present bool   `json:"present"`
}

type LightView struct {
	Icon       string `json:"icon"`
	Configured bool   `json:"configured"`
	On         bool   `json:"on"`
}

type KeepOpenView struct {
	Configured bool `json:"configured"`
	Enabled    bool `json:"enabled"`
}

type CountdownView struct {
	Text       string `json:"text"`
	Configured bool   `json:"configured"`
	Active     bool   `json:"active"`
}

// ViewModel is everything the card displays for one (config, state, time).
type ViewModel struct {
	Name      string        `json:"name"`
	Door      DoorView      `json:"door"`
	Vehicles  []VehicleView `json:"vehicles"`
	Light     LightView     `json:"light"`
	KeepOpen  KeepOpenView  `json:"keep_open"`
	Countdown CountdownView `json:"countdown"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DoorOpen is true while the door is open or on its way up.
func DoorOpen(status string) bool {
	return status == state.DoorOpen || status == state.DoorOpening
}

func DoorMoving(status string) bool {
	return status == state.DoorOpening || status == state.DoorClosing
}

// FormatDuration renders whole elapsed minutes as "{h}h {m}m" or "{m}m".
func FormatDuration(elapsed time.Duration) string {
	mins := int64(elapsed / time.Minute)
	if mins < 0 {
		mins = 0
	}
	hours := mins / 60
	mins = mins % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// LastSeen is "<local time> • <elapsed>" in now's location, or "" when the
// change time is unknown.
func LastSeen(lastChanged, now time.Time) string {
	if lastChanged.IsZero() {
		return ""
	}
	return lastChanged.In(now.Location()).Format(timeLayout) + " • " + FormatDuration(now.Sub(lastChanged))
}

// CountdownActive reports whether a countdown value means the door is about
// to close.
func CountdownActive(text string) bool {
	return countdownPattern.MatchString(text) || text == CountdownSoon
}

func projectDoor(cfg *Config, snap state.Snapshot) DoorView {
	status := snap.Status(cfg.DoorEntity, state.DoorUnknown)
	d := DoorView{
		State:  state.NormalizeDoor(status),
		Text:   capitalize(status),
		Open:   DoorOpen(status),
		Moving: DoorMoving(status),
		Icon:   IconDoorClosed,
	}
	if d.Open {
		d.Icon = IconDoorOpen
	}
	switch {
	case d.Moving:
		d.Indicator = "moving"
	case d.Open:
		d.Indicator = "open"
	default:
		d.Indicator = "closed"
	}
	return d
}

func projectVehicle(v Vehicle, snap state.Snapshot, now time.Time) VehicleView {
	vv := VehicleView{Index: v.Index, Name: v.Name, Status: "Away"}
	e, ok := snap.Get(v.PresenceEntity)
	if !ok {
		return vv
	}
	vv.Present = e.Status == "on"
	if vv.Present {
		vv.Status = "Home"
	}
	vv.Time = LastSeen(e.LastChanged, now)
	return vv
}

func projectCountdown(cfg *Config, snap state.Snapshot) CountdownView {
	if !cfg.HasCountdown() {
		return CountdownView{Text: CountdownDefault}
	}
	text := snap.Status(cfg.CountdownEntity, CountdownDefault)
	return CountdownView{Configured: true, Text: text, Active: CountdownActive(text)}
}

// Project computes the view model. It never fails: a missing entity or
// snapshot entry falls back to unknown, away, off or empty.
func Project(cfg *Config, snap state.Snapshot, now time.Time) ViewModel {
	if cfg == nil {
		cfg = &Config{Name: DefaultName}
	}
	vm := ViewModel{
		Name:      cfg.Name,
		Door:      projectDoor(cfg, snap),
		Countdown: projectCountdown(cfg, snap),
		Vehicles:  []VehicleView{},
	}
	for _, v := range cfg.Vehicles() {
		vm.Vehicles = append(vm.Vehicles, projectVehicle(v, snap, now))
	}

	vm.Light = LightView{Configured: cfg.HasLight(), Icon: IconLightOff}
	if cfg.HasLight() && snap.Status(cfg.LightEntity, "") == "on" {
		vm.Light.On = true
		vm.Light.Icon = IconLightOn
	}

	vm.KeepOpen = KeepOpenView{Configured: cfg.HasKeepOpen()}
	if cfg.HasKeepOpen() {
		vm.KeepOpen.Enabled = snap.Status(cfg.KeepOpenEntity, "") == "on"
	}
	return vm
}

// refreshTimes recomputes only the time-derived fields of vm.
func refreshTimes(vm ViewModel, cfg *Config, snap state.Snapshot, now time.Time) ViewModel {
	vehicles := make([]VehicleView, len(vm.Vehicles))
	copy(vehicles, vm.Vehicles)
	byIndex := make(map[int]Vehicle)
	for _, v := range cfg.Vehicles() {
		byIndex[v.Index] = v
	}
	for i := range vehicles {
		v, ok := byIndex[vehicles[i].Index]
		if !ok {
			continue
		}
		vehicles[i].Time = ""
		if e, ok := snap.Get(v.PresenceEntity); ok {
			vehicles[i].Time = LastSeen(e.LastChanged, now)
		}
	}
	vm.Vehicles = vehicles
	vm.Countdown = projectCountdown(cfg, snap)
	return vm
}
