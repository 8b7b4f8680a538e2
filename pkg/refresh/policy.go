package refresh

import (
	"fmt"

	"FrameTimeline/pkg/timing"
)

// Policy constrains which configs selection may choose. The device policy and
// the override policy are kept separately; while an override is set it takes
// precedence, and clearing it reverts to the device policy.
type Policy struct {
	// DefaultConfig anchors the config group selection stays in unless
	// AllowGroupSwitching is set.
	DefaultConfig       int
	AllowGroupSwitching bool
	// PrimaryRange is the general guidance range; selection stays inside it
	// unless an app gave an explicit signal.
	PrimaryRange timing.FpsRange
	// AppRequestRange is the wider band explicit app votes may reach into.
	// Invariant: AppRequestRange contains PrimaryRange.
	AppRequestRange timing.FpsRange
}

func (p Policy) Equals(other Policy) bool {
	return p.DefaultConfig == other.DefaultConfig &&
		p.AllowGroupSwitching == other.AllowGroupSwitching &&
		p.PrimaryRange.Equals(other.PrimaryRange) &&
		p.AppRequestRange.Equals(other.AppRequestRange)
}

func (p Policy) String() string {
	return fmt.Sprintf("default %d, allowGroupSwitching %v, primary %s, appRequest %s",
		p.DefaultConfig, p.AllowGroupSwitching, p.PrimaryRange, p.AppRequestRange)
}

// SetPolicyResult reports the outcome of a policy update.
type SetPolicyResult int

const (
	// PolicyRejected: the policy was invalid; the current policy is unchanged.
	PolicyRejected SetPolicyResult = iota
	// PolicyUnchanged: the update succeeded but equals the previous value.
	PolicyUnchanged
	// PolicyUpdated: the update succeeded and changed the current policy.
	PolicyUpdated
)

func (r SetPolicyResult) String() string {
	switch r {
	case PolicyRejected:
		return "Rejected"
	case PolicyUnchanged:
		return "Unchanged"
	case PolicyUpdated:
		return "Updated"
	}
	return fmt.Sprintf("SetPolicyResult(%d)", int(r))
}

func (e *Engine) validPolicyLocked(p Policy) bool {
	if _, ok := e.rates[p.DefaultConfig]; !ok {
		return false
	}
	return p.AppRequestRange.Contains(p.PrimaryRange)
}

// SetDevicePolicy installs the display manager's policy.
func (e *Engine) SetDevicePolicy(policy Policy) SetPolicyResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.validPolicyLocked(policy) {
		return PolicyRejected
	}
	if e.devicePolicy.Equals(policy) {
		return PolicyUnchanged
	}
	e.devicePolicy = policy
	e.rebuildLocked()
	return PolicyUpdated
}

// SetOverridePolicy installs or, with nil, clears the override policy.
func (e *Engine) SetOverridePolicy(policy *Policy) SetPolicyResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if policy == nil {
		if e.overridePolicy == nil {
			return PolicyUnchanged
		}
		e.overridePolicy = nil
		e.rebuildLocked()
		return PolicyUpdated
	}
	if !e.validPolicyLocked(*policy) {
		return PolicyRejected
	}
	if e.overridePolicy != nil && e.overridePolicy.Equals(*policy) {
		return PolicyUnchanged
	}
	p := *policy
	e.overridePolicy = &p
	e.rebuildLocked()
	return PolicyUpdated
}

func (e *Engine) currentPolicyLocked() Policy {
	if e.overridePolicy != nil {
		return *e.overridePolicy
	}
	return e.devicePolicy
}

// CurrentPolicy returns the override policy while one is set, the device
// policy otherwise.
func (e *Engine) CurrentPolicy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentPolicyLocked()
}

// DevicePolicy returns the display manager policy regardless of override.
func (e *Engine) DevicePolicy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devicePolicy
}

// IdleTimerAction enumerates what the caller should do with its idle timer
// after a policy change.
type IdleTimerAction int

const (
	NoChange IdleTimerAction = iota
	TurnOff
	TurnOn
)

func (a IdleTimerAction) String() string {
	switch a {
	case NoChange:
		return "NoChange"
	case TurnOff:
		return "TurnOff"
	case TurnOn:
		return "TurnOn"
	}
	return fmt.Sprintf("IdleTimerAction(%d)", int(a))
}

// IdleTimerAction derives the idle-timer state purely from policy: the timer
// is only useful when the primary range offers more than one rate to idle
// down through. Repeating the previous answer yields NoChange.
func (e *Engine) IdleTimerAction() IdleTimerAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := TurnOff
	if len(e.primary) > 1 {
		action = TurnOn
	}
	if e.hasLastIdleAction && action == e.lastIdleAction {
		return NoChange
	}
	e.lastIdleAction = action
	e.hasLastIdleAction = true
	return action
}
