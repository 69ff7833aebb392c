package clock

import "testing"

func TestSplitJoinRoundTrip(t *testing.T) {
	cases := []int64{0, 1, MicromarksPerTurn - 1, MicromarksPerTurn, MicromarksPerTurn + 1, -1, -MicromarksPerTurn, -MicromarksPerTurn - 5}
	for _, m := range cases {
		turn, offset := Split(m)
		if offset < 0 || offset >= MicromarksPerTurn {
			t.Fatalf("Split(%d) offset out of range: %d", m, offset)
		}
		if got := Join(turn, offset); got != m {
			t.Fatalf("Join(Split(%d)) = %d, want %d", m, got, m)
		}
	}
}

func TestNowMicromarksLinear(t *testing.T) {
	c := New()
	c.SetEpoch(1_000_000)

	t1 := c.MicromarksAt(2_000_000)
	t2 := c.MicromarksAt(3_000_000)
	if t1 > t2 {
		t.Fatalf("clock not monotonic: t1=%d t2=%d", t1, t2)
	}

	turn, offset := Split(t2)
	if Join(turn, offset) != t2 {
		t.Fatalf("turn*1e9+offset != now_micromarks")
	}
}

func TestUnixMillisAtRoundTrip(t *testing.T) {
	c := New()
	c.SetEpoch(5_000_000)

	for _, unixMs := range []int64{5_000_000, 5_086_164, 4_000_000, 6_123_456} {
		m := c.MicromarksAt(unixMs)
		got := c.UnixMillisAt(m)
		// Integer division in MicromarksAt can lose sub-millisecond
		// precision; the round trip must land within one millisecond.
		if diff := got - unixMs; diff < -1 || diff > 1 {
			t.Fatalf("UnixMillisAt(MicromarksAt(%d)) = %d, want within 1ms", unixMs, got)
		}
	}
}

func TestPreEpochNegative(t *testing.T) {
	c := New()
	c.SetEpoch(10_000_000)
	if m := c.MicromarksAt(0); m >= 0 {
		t.Fatalf("expected negative micromarks before epoch, got %d", m)
	}
}
