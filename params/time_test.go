package params

import "testing"

func TestUnixTimestampToTime(t *testing.T) {
	got := UnixTimestampToTime(1_700_000_000_000)
	if got.Unix() != 1_700_000_000 {
		t.Fatalf("got unix seconds %d, want 1700000000", got.Unix())
	}
}
