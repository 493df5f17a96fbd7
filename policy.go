package rotee

import "time"

// FileState is an immutable snapshot of the active file, taken by the sink
// at write time. Policies decide on this snapshot alone.
type FileState struct {
	// OpenedAt is the wall-clock time the active file was opened.
	OpenedAt time.Time
	// Size is the file size when opened plus all bytes written since.
	Size int64
}

// Policy decides whether the active file must be rotated before the next
// chunk is written. Implementations are pure functions of their inputs:
// no IO, no locks, no mutation.
//
// ShouldRotate is called with the current file state and the length of the
// chunk about to be written. Returning true seals the active file into the
// backup sequence before the chunk is written; the chunk itself is never
// split across files.
type Policy interface {
	ShouldRotate(state FileState, incoming int) bool
}

// PolicyFunc is an adapter to allow ordinary functions to be used as a Policy.
type PolicyFunc func(state FileState, incoming int) bool

// ShouldRotate reports whether rotation is needed.
func (f PolicyFunc) ShouldRotate(state FileState, incoming int) bool {
	return f(state, incoming)
}

// SizePolicy returns a policy that rotates when the active file would grow
// beyond max bytes after the incoming chunk is appended. A chunk larger than
// max still triggers only a single rotation, so the fresh file may exceed
// max by at most that one chunk's excess.
//
// max <= 0 disables the policy.
func SizePolicy(max int64) Policy {
	return PolicyFunc(func(state FileState, incoming int) bool {
		if max <= 0 {
			return false
		}
		return state.Size+int64(incoming) > max
	})
}

// AgePolicy returns a policy that rotates once the active file has been open
// for max or longer. The now function supplies the current time; if nil,
// time.Now is used.
//
// max <= 0 disables the policy.
func AgePolicy(max time.Duration, now func() time.Time) Policy {
	if now == nil {
		now = time.Now
	}
	return PolicyFunc(func(state FileState, incoming int) bool {
		if max <= 0 || state.OpenedAt.IsZero() {
			return false
		}
		return now().Sub(state.OpenedAt) >= max
	})
}

// CompositePolicy combines policies with OR semantics: rotation triggers as
// soon as any sub-policy says so. With no sub-policies it never triggers,
// leaving rotation manual-only.
func CompositePolicy(policies ...Policy) Policy {
	return PolicyFunc(func(state FileState, incoming int) bool {
		for _, p := range policies {
			if p.ShouldRotate(state, incoming) {
				return true
			}
		}
		return false
	})
}
