package tui

import (
	"github.com/nixlim/fleetwatch/internal/events"
)

const noiseOptionKey = "hide_noise"

// FilterMenuState tracks the interactive filter menu.
type FilterMenuState struct {
	Active  bool
	Cursor  int
	Options []FilterOption
}

// FilterOption represents one toggleable filter option in the filter menu.
type FilterOption struct {
	Label   string
	Key     string
	Enabled bool
}

// NewFilterMenu creates a filter menu with every kind shown and noise visible.
func NewFilterMenu() FilterMenuState {
	opts := make([]FilterOption, 0, len(events.AllKinds)+1)
	for _, k := range events.AllKinds {
		opts = append(opts, FilterOption{Label: kindLabels[k], Key: string(k), Enabled: true})
	}
	opts = append(opts, FilterOption{Label: "Hide heartbeats", Key: noiseOptionKey})
	return FilterMenuState{Options: opts}
}

var kindLabels = map[events.Kind]string{
	events.KindError:   "Errors",
	events.KindWarning: "Warnings",
	events.KindSuccess: "Successes",
	events.KindInfo:    "Info",
	events.KindSystem:  "System",
}

// Filter converts the menu state into an event filter for device. With
// every kind enabled no kind filter is set, so events of unrecognized kinds
// stay visible.
func (fm FilterMenuState) Filter(device string) events.Filter {
	f := events.Filter{Device: device}
	kinds := make(map[events.Kind]bool)
	all := true
	for _, opt := range fm.Options {
		if opt.Key == noiseOptionKey {
			f.HideNoise = opt.Enabled
			continue
		}
		if opt.Enabled {
			kinds[events.Kind(opt.Key)] = true
		} else {
			all = false
		}
	}
	if !all {
		f.Kinds = kinds
	}
	return f
}

// toggle flips the option with the given key.
func (fm *FilterMenuState) toggle(key string) {
	for i := range fm.Options {
		if fm.Options[i].Key == key {
			fm.Options[i].Enabled = !fm.Options[i].Enabled
			return
		}
	}
}

// anyKind reports whether at least one kind is enabled.
func (fm FilterMenuState) anyKind() bool {
	for _, opt := range fm.Options {
		if opt.Key != noiseOptionKey && opt.Enabled {
			return true
		}
	}
	return false
}
