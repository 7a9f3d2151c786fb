// Package tick implements WKMP's canonical timeline unit: 1/28,224,000
// of a second. 28,224,000 is an integer multiple of every sample rate
// WKMP decodes to (44.1k, 48k, 88.2k, 96k, 176.4k, 192k), so conversions
// to and from ticks for those rates are exact integer arithmetic.
package tick

// PerSecond is the number of ticks in one second.
const PerSecond int64 = 28_224_000

// Tick is a signed count of 1/28,224,000 second units. All passage
// boundaries, crossfade points, and marker positions are expressed in
// Tick.
type Tick int64

// SamplesToTicks converts a sample count at sampleRate to ticks.
// Exact (no rounding) whenever PerSecond is a multiple of sampleRate.
func SamplesToTicks(samples int64, sampleRate int) Tick {
	if sampleRate <= 0 {
		return 0
	}
	return Tick(samples * PerSecond / int64(sampleRate))
}

// TicksToSamples converts a Tick count to a sample count at sampleRate.
func TicksToSamples(t Tick, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return int64(t) * int64(sampleRate) / PerSecond
}

// FramesToTicks converts a frame count (one frame == one sample per
// channel) at sampleRate into a tick delta.
func FramesToTicks(frames int, sampleRate int) Tick {
	return SamplesToTicks(int64(frames), sampleRate)
}

// DividesEvenly reports whether sampleRate divides PerSecond without
// remainder, i.e. whether conversions at this rate are loss-free.
func DividesEvenly(sampleRate int) bool {
	if sampleRate <= 0 {
		return false
	}
	return PerSecond%int64(sampleRate) == 0
}
