package repository

import (
	"testing"
	"time"
)

func TestBucketFloors(t *testing.T) {
	ts := time.Date(2025, 6, 15, 13, 47, 33, 123456789, time.UTC)

	cases := []struct {
		tf   Timeframe
		want time.Time
	}{
		{TF1m, time.Date(2025, 6, 15, 13, 47, 0, 0, time.UTC)},
		{TF5m, time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)},
		{TF15m, time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)},
		{TF1h, time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC)},
		{TF4h, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		{TF1d, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.tf.Bucket(ts); !got.Equal(c.want) {
			t.Fatalf("%s bucket = %v, want %v", c.tf, got, c.want)
		}
	}
}

func TestBucketBoundaryIsItsOwnBucket(t *testing.T) {
	boundary := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for _, tf := range Timeframes {
		if got := tf.Bucket(boundary); !got.Equal(boundary) {
			t.Fatalf("%s bucket of boundary = %v, want unchanged", tf, got)
		}
	}
}

func TestBucketNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 6, 15, 2, 30, 0, 0, loc) // 19:30 previous day UTC
	got := TF1d.Bucket(local)
	want := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("daily bucket = %v, want %v", got, want)
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	if NormalizeTimeframe("") != TF1m {
		t.Fatal("empty must normalize to 1m")
	}
	if NormalizeTimeframe("4h") != TF4h {
		t.Fatal("4h must pass through")
	}
	if NormalizeTimeframe("2h") != TF1m {
		t.Fatal("unsupported must fall back to 1m")
	}
	if NormalizeTimeframe("1w") != TF1m {
		t.Fatal("1w is not supported")
	}
}

func TestDurationsAscend(t *testing.T) {
	for i := 1; i < len(Timeframes); i++ {
		if Timeframes[i].Duration() <= Timeframes[i-1].Duration() {
			t.Fatalf("timeframes not strictly ascending at %s", Timeframes[i])
		}
	}
}
