package rotee

import (
	"testing"
	"time"
)

func TestSizePolicy(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name     string
		max      int64
		size     int64
		incoming int
		want     bool
	}{
		{"empty file small chunk", 100, 0, 10, false},
		{"fits exactly", 100, 60, 40, false},
		{"would exceed", 100, 80, 40, true},
		{"already at limit", 100, 100, 1, true},
		{"oversized chunk on empty file", 100, 0, 150, true},
		{"disabled by zero", 0, 1 << 30, 1 << 20, false},
		{"disabled by negative", -1, 1 << 30, 1 << 20, false},
	}
	for _, te := range tt {
		t.Run(te.name, func(t *testing.T) {
			p := SizePolicy(te.max)
			got := p.ShouldRotate(FileState{Size: te.size}, te.incoming)
			if got != te.want {
				t.Errorf("ShouldRotate(size=%d, incoming=%d) = %v, want %v", te.size, te.incoming, got, te.want)
			}
		})
	}
}

func TestAgePolicy(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func(at time.Time) func() time.Time {
		return func() time.Time { return at }
	}

	tt := []struct {
		name     string
		max      time.Duration
		openedAt time.Time
		now      time.Time
		want     bool
	}{
		{"younger than max", time.Minute, base, base.Add(30 * time.Second), false},
		{"exactly max", time.Minute, base, base.Add(time.Minute), true},
		{"older than max", time.Minute, base, base.Add(2 * time.Minute), true},
		{"zero opened-at never rotates", time.Minute, time.Time{}, base, false},
		{"disabled by zero", 0, base, base.Add(time.Hour), false},
	}
	for _, te := range tt {
		t.Run(te.name, func(t *testing.T) {
			p := AgePolicy(te.max, clock(te.now))
			got := p.ShouldRotate(FileState{OpenedAt: te.openedAt, Size: 1}, 1)
			if got != te.want {
				t.Errorf("ShouldRotate(openedAt=%v, now=%v) = %v, want %v", te.openedAt, te.now, got, te.want)
			}
		})
	}
}

func TestAgePolicyDefaultsToWallClock(t *testing.T) {
	t.Parallel()

	p := AgePolicy(time.Hour, nil)
	if p.ShouldRotate(FileState{OpenedAt: time.Now(), Size: 1}, 1) {
		t.Error("fresh file should not rotate on a 1h age policy")
	}
}

func TestCompositePolicy(t *testing.T) {
	t.Parallel()

	yes := PolicyFunc(func(FileState, int) bool { return true })
	no := PolicyFunc(func(FileState, int) bool { return false })

	tt := []struct {
		name     string
		policies []Policy
		want     bool
	}{
		{"no sub-policies is manual-only", nil, false},
		{"all false", []Policy{no, no}, false},
		{"any true wins", []Policy{no, yes}, true},
		{"first true wins", []Policy{yes, no}, true},
	}
	for _, te := range tt {
		t.Run(te.name, func(t *testing.T) {
			got := CompositePolicy(te.policies...).ShouldRotate(FileState{}, 0)
			if got != te.want {
				t.Errorf("ShouldRotate() = %v, want %v", got, te.want)
			}
		})
	}
}

func TestCombinedSizeAndAge(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base.Add(30 * time.Second)
	p := CompositePolicy(
		SizePolicy(100),
		AgePolicy(time.Minute, func() time.Time { return now }),
	)

	// Size triggers first.
	if !p.ShouldRotate(FileState{OpenedAt: base, Size: 90}, 20) {
		t.Error("size threshold should trigger")
	}
	// Neither triggers.
	if p.ShouldRotate(FileState{OpenedAt: base, Size: 10}, 20) {
		t.Error("nothing should trigger")
	}
	// Age triggers once the clock passes the threshold.
	now = base.Add(2 * time.Minute)
	if !p.ShouldRotate(FileState{OpenedAt: base, Size: 10}, 20) {
		t.Error("age threshold should trigger")
	}
}
