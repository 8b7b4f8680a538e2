// Package refresh implements the refresh-rate policy engine: it holds the
// live set of hardware display configs, the device/override policies, and
// selects the config that best fits the competing per-layer requirements.
package refresh

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"FrameTimeline/pkg/timing"
)

// PeriodMargin is the slack used when matching a candidate period against a
// layer's desired period.
const PeriodMargin timing.Nanos = 800_000 // 800µs

// RefreshRate describes one hardware display config. Immutable once
// constructed; the live set is replaced wholesale on reconfiguration.
type RefreshRate struct {
	ConfigID    int
	VsyncPeriod timing.Nanos
	ConfigGroup int
	Fps         timing.Fps
}

func (r RefreshRate) String() string {
	return fmt.Sprintf("%s (config %d, group %d, vsync %dns)",
		r.Fps, r.ConfigID, r.ConfigGroup, r.VsyncPeriod)
}

// LayerVoteType is the kind of preference a layer expressed.
type LayerVoteType int

const (
	// NoVote: the layer doesn't care about the refresh rate.
	NoVote LayerVoteType = iota
	// VoteMin: the lowest rate available.
	VoteMin
	// VoteMax: the highest rate available.
	VoteMax
	// VoteHeuristic: a rate derived by the platform from the layer's
	// observed present cadence.
	VoteHeuristic
	// VoteExplicitDefault: an app-provided rate with default compatibility.
	VoteExplicitDefault
	// VoteExplicitExactOrMultiple: an app-provided rate where even multiples
	// are acceptable.
	VoteExplicitExactOrMultiple
	// VoteExplicitExact: an app-provided rate with exact compatibility.
	VoteExplicitExact
)

func (v LayerVoteType) String() string {
	switch v {
	case NoVote:
		return "NoVote"
	case VoteMin:
		return "Min"
	case VoteMax:
		return "Max"
	case VoteHeuristic:
		return "Heuristic"
	case VoteExplicitDefault:
		return "ExplicitDefault"
	case VoteExplicitExactOrMultiple:
		return "ExplicitExactOrMultiple"
	case VoteExplicitExact:
		return "ExplicitExact"
	}
	return fmt.Sprintf("LayerVoteType(%d)", int(v))
}

// IsExplicit reports whether the vote came from the app rather than the
// platform. Only explicit votes may pull the selection outside the policy's
// primary range.
func (v LayerVoteType) IsExplicit() bool {
	return v == VoteExplicitDefault || v == VoteExplicitExactOrMultiple || v == VoteExplicitExact
}

// Seamlessness constrains whether a layer tolerates a config-group switch,
// which is visible as a mode-switch flicker on some panels.
type Seamlessness int

const (
	SeamlessnessDefault Seamlessness = iota
	OnlySeamless
	SeamedAndSeamless
)

// LayerRequirement captures one layer's input to rate selection.
type LayerRequirement struct {
	Name         string
	OwnerUID     uint32
	Vote         LayerVoteType
	DesiredFps   timing.Fps
	Seamlessness Seamlessness
	// Weight in [0, 1]; the higher the weight the more impact the layer has.
	Weight  float64
	Focused bool
}

// GlobalSignals carries device-wide state that biases selection.
type GlobalSignals struct {
	Touch bool
	Idle  bool
}

// Engine owns the live config set and the current policy. All methods are
// safe for concurrent use; the lock is never held across calls into
// collaborators.
type Engine struct {
	mu sync.Mutex

	rates  map[int]RefreshRate
	sorted []RefreshRate // ascending fps

	// primary and appRequest are the candidate lists for the current policy,
	// ascending by fps, rebuilt whenever configs or policy change.
	primary    []RefreshRate
	appRequest []RefreshRate

	currentConfig  int
	devicePolicy   Policy
	overridePolicy *Policy

	lastIdleAction    IdleTimerAction
	hasLastIdleAction bool
}

// NewEngine builds an engine over the given configs with a trivial policy
// defaulting to currentConfig and spanning all supported rates.
func NewEngine(configs []RefreshRate, currentConfig int) (*Engine, error) {
	e := &Engine{}
	if err := e.UpdateConfigs(configs, currentConfig); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateConfigs replaces the live config set wholesale, e.g. after a hotplug.
// The device policy is reset to span all supported rates.
func (e *Engine) UpdateConfigs(configs []RefreshRate, currentConfig int) error {
	if len(configs) == 0 {
		return fmt.Errorf("refresh: empty config set")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rates := make(map[int]RefreshRate, len(configs))
	sorted := make([]RefreshRate, 0, len(configs))
	for _, c := range configs {
		if _, dup := rates[c.ConfigID]; dup {
			return fmt.Errorf("refresh: duplicate config id %d", c.ConfigID)
		}
		rates[c.ConfigID] = c
		sorted = append(sorted, c)
	}
	if _, ok := rates[currentConfig]; !ok {
		return fmt.Errorf("refresh: current config %d not in config set", currentConfig)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Fps < sorted[j].Fps })

	e.rates = rates
	e.sorted = sorted
	e.currentConfig = currentConfig
	e.devicePolicy = Policy{
		DefaultConfig:   currentConfig,
		PrimaryRange:    timing.FpsRange{Min: sorted[0].Fps, Max: sorted[len(sorted)-1].Fps},
		AppRequestRange: timing.FpsRange{Min: sorted[0].Fps, Max: sorted[len(sorted)-1].Fps},
	}
	e.overridePolicy = nil
	e.rebuildLocked()
	return nil
}

// SetCurrentConfig records the config the device is actually running at.
func (e *Engine) SetCurrentConfig(configID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rates[configID]; !ok {
		return fmt.Errorf("refresh: unknown config id %d", configID)
	}
	e.currentConfig = configID
	return nil
}

// CurrentRate returns the rate of the config the device runs at.
func (e *Engine) CurrentRate() RefreshRate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rates[e.currentConfig]
}

// IsConfigAllowed reports whether the config is inside the current policy's
// primary range.
func (e *Engine) IsConfigAllowed(configID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.primary {
		if r.ConfigID == configID {
			return true
		}
	}
	return false
}

// CanSwitch reports whether there is more than one config to switch between.
func (e *Engine) CanSwitch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sorted) > 1
}

// SupportedRange returns the full span of rates the hardware offers.
func (e *Engine) SupportedRange() timing.FpsRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return timing.FpsRange{Min: e.sorted[0].Fps, Max: e.sorted[len(e.sorted)-1].Fps}
}

// rebuildLocked recomputes the primary and app-request candidate lists for
// the current policy. Unless the policy allows group switching, candidates
// stay in the default config's group.
func (e *Engine) rebuildLocked() {
	policy := e.currentPolicyLocked()
	defaultGroup := e.rates[policy.DefaultConfig].ConfigGroup

	filter := func(rng timing.FpsRange) []RefreshRate {
		var out []RefreshRate
		for _, r := range e.sorted {
			if !policy.AllowGroupSwitching && r.ConfigGroup != defaultGroup {
				continue
			}
			if rng.Includes(r.Fps) {
				out = append(out, r)
			}
		}
		// Never leave the device without a candidate; fall back to the
		// default config if the range excludes everything.
		if len(out) == 0 {
			out = []RefreshRate{e.rates[policy.DefaultConfig]}
		}
		return out
	}

	e.primary = filter(policy.PrimaryRange)
	e.appRequest = filter(policy.AppRequestRange)
}

func (e *Engine) minByPolicyLocked() RefreshRate { return e.primary[0] }
func (e *Engine) maxByPolicyLocked() RefreshRate { return e.primary[len(e.primary)-1] }

// MinByPolicy returns the lowest rate in the policy's primary range.
func (e *Engine) MinByPolicy() RefreshRate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minByPolicyLocked()
}

// MaxByPolicy returns the highest rate in the policy's primary range.
func (e *Engine) MaxByPolicy() RefreshRate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxByPolicyLocked()
}

// Dump renders the engine state for diagnostics.
func (e *Engine) Dump() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	policy := e.currentPolicyLocked()
	fmt.Fprintf(&b, "RefreshRatePolicyEngine\n")
	fmt.Fprintf(&b, "  current: %s\n", e.rates[e.currentConfig])
	fmt.Fprintf(&b, "  policy: %s\n", policy)
	if e.overridePolicy != nil {
		fmt.Fprintf(&b, "  (override active)\n")
	}
	fmt.Fprintf(&b, "  configs:\n")
	for _, r := range e.sorted {
		marker := " "
		if r.ConfigID == e.currentConfig {
			marker = "*"
		}
		fmt.Fprintf(&b, "   %s %s\n", marker, r)
	}
	return b.String()
}
