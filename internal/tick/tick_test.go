package tick

import "testing"

func TestRoundTripCommonRates(t *testing.T) {
	rates := []int{44100, 48000, 88200, 96000, 176400, 192000}
	for _, sr := range rates {
		if !DividesEvenly(sr) {
			t.Fatalf("expected %d to divide %d evenly", sr, PerSecond)
		}
		for _, n := range []int64{0, 1, 2, 44099, 705_600, 123456789} {
			got := TicksToSamples(SamplesToTicks(n, sr), sr)
			if got != n {
				t.Errorf("rate=%d n=%d: round trip gave %d", sr, n, got)
			}
		}
	}
}

func TestSamplesToTicksExact(t *testing.T) {
	cases := []struct {
		samples int64
		rate    int
		want    Tick
	}{
		{44100, 44100, Tick(PerSecond)},
		{705_600, 44100, Tick(16 * PerSecond)},
	}
	for _, c := range cases {
		if got := SamplesToTicks(c.samples, c.rate); got != c.want {
			t.Errorf("SamplesToTicks(%d, %d) = %d, want %d", c.samples, c.rate, got, c.want)
		}
	}
}

func TestFramesToTicks(t *testing.T) {
	if got, want := FramesToTicks(44100, 44100), Tick(PerSecond); got != want {
		t.Errorf("FramesToTicks = %d, want %d", got, want)
	}
}

func TestInvalidSampleRate(t *testing.T) {
	if SamplesToTicks(100, 0) != 0 {
		t.Error("expected zero ticks for invalid sample rate")
	}
	if TicksToSamples(100, -1) != 0 {
		t.Error("expected zero samples for invalid sample rate")
	}
	if DividesEvenly(0) {
		t.Error("zero sample rate should not divide evenly")
	}
}
