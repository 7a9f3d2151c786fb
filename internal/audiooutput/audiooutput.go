// Package audiooutput runs the real-time audio callback and the
// mixer-feeder task that keeps its lock-free ring buffer filled (spec
// §4.5). The callback thread never blocks or allocates; all mixing
// happens on the feeder goroutine.
package audiooutput

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"
	"github.com/wkmp/core/internal/marker"
	"github.com/wkmp/core/internal/wkerrors"
	"github.com/wkmp/core/internal/wklog"
)

const (
	bytesPerSample = 4 // f32
	channels       = 2
)

// Mixer is the subset of mixer.Mixer the feeder task drives.
type Mixer interface {
	Mix(out []float32) []*marker.Marker
}

// Config configures the output device and ring buffer sizing.
type Config struct {
	DeviceName   string
	SampleRate   uint32
	LatencyMillis int // ring buffer capacity target, default 150ms
}

// Output owns the malgo playback device and its feeder goroutine.
type Output struct {
	cfg    Config
	mixer  Mixer
	ring   *ringbuffer.RingBuffer
	events chan []*marker.Marker

	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	logger  *slog.Logger

	underruns atomic.Uint64
	mu        sync.Mutex
	feederWG  sync.WaitGroup
	cancel    context.CancelFunc
}

// Events returns the channel on which marker events, produced as the
// feeder task mixes, are delivered to the Engine.
func (o *Output) Events() <-chan []*marker.Marker { return o.events }

// Underruns returns the cumulative device-side underrun count.
func (o *Output) Underruns() uint64 { return o.underruns.Load() }

// New constructs an Output bound to the given Mixer. The device is not
// opened until Start.
func New(cfg Config, m Mixer) *Output {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.LatencyMillis <= 0 {
		cfg.LatencyMillis = 150
	}
	capacityBytes := int(cfg.SampleRate) * channels * bytesPerSample * cfg.LatencyMillis / 1000
	return &Output{
		cfg:    cfg,
		mixer:  m,
		ring:   ringbuffer.New(capacityBytes).SetBlocking(false),
		events: make(chan []*marker.Marker, 64),
		logger: wklog.ForService("audiooutput"),
	}
}

func backendForPlatform() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

// Start opens the output device and launches the feeder goroutine.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backendForPlatform()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return wkerrors.New(err).Component("audiooutput").Category(wkerrors.CategoryAudioDevice).Build()
	}
	o.ctx = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = o.cfg.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: o.onPlaybackCallback,
		Stop: func() { o.logger.Warn("playback device stopped") },
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return wkerrors.New(err).Component("audiooutput").Category(wkerrors.CategoryAudioDevice).Build()
	}
	o.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return wkerrors.New(err).Component("audiooutput").Category(wkerrors.CategoryAudioDevice).Build()
	}

	feedCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.feederWG.Add(1)
	go o.feed(feedCtx)

	return nil
}

// Stop halts the feeder goroutine and tears down the device.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.feederWG.Wait()
	if o.device != nil {
		o.device.Uninit()
	}
	if o.ctx != nil {
		_ = o.ctx.Uninit()
	}
}

// feed mixes into chunkFrames-sized batches and pushes the interleaved
// bytes into the ring buffer whenever space exists, forwarding any
// marker events produced that batch (spec §4.5 feeder task contract).
func (o *Output) feed(ctx context.Context) {
	defer o.feederWG.Done()
	const chunkFrames = 1024
	floatBuf := make([]float32, chunkFrames*channels)
	byteBuf := make([]byte, chunkFrames*channels*bytesPerSample)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if o.ring.Free() < len(byteBuf) {
			time.Sleep(2 * time.Millisecond)
			continue
		}

		events := o.mixer.Mix(floatBuf)
		encodeF32LE(floatBuf, byteBuf)
		if _, err := o.ring.Write(byteBuf); err != nil {
			o.logger.Warn("ring buffer write failed", "error", err)
		}
		if len(events) > 0 {
			select {
			case o.events <- events:
			default:
				o.logger.Warn("event channel full, dropping marker batch")
			}
		}
	}
}

// onPlaybackCallback is the real-time callback: it only drains the
// ring buffer, never blocking or allocating.
func (o *Output) onPlaybackCallback(output, _ []byte, frameCount uint32) {
	need := int(frameCount) * channels * bytesPerSample
	n, _ := o.ring.Read(output[:need])
	if n < need {
		for i := n; i < need; i++ {
			output[i] = 0
		}
		o.underruns.Add(1)
	}
}

func encodeF32LE(src []float32, dst []byte) {
	for i, s := range src {
		bits := math.Float32bits(s)
		dst[i*4] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
}
