// Package miniaudio captures audio through malgo, the Go binding of miniaudio.
package miniaudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/multisample-go/audio"
	"go.uber.org/atomic"
)

// ErrDeviceStopped is reported through the error callback when the device
// stops without being paused or closed, e.g. when it is unplugged.
var ErrDeviceStopped = errors.New("capture device stopped unexpectedly")

var GlobalBackend = &Backend{}

func init() {
	audio.RegisterBackend("malgo", GlobalBackend)
}

// Backend owns the malgo context. A zero-value Backend is valid.
type Backend struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo", "message", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}
	b.ctx = ctx
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

func (b *Backend) context() (malgo.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return malgo.Context{}, errors.New("malgo backend not initialized")
	}
	return b.ctx.Context, nil
}

func (b *Backend) Devices() ([]audio.InputDevice, error) {
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	devices := make([]audio.InputDevice, len(infos))
	for i := range infos {
		devices[i] = &Device{ctx: ctx, info: &infos[i]}
	}
	return devices, nil
}

// DefaultDevice returns the device flagged as default, falling back to the
// system default capture device when none is flagged.
func (b *Backend) DefaultDevice() (audio.InputDevice, error) {
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}
	for i := range infos {
		if infos[i].IsDefault != 0 {
			return &Device{ctx: ctx, info: &infos[i]}, nil
		}
	}
	return &Device{ctx: ctx}, nil
}

// Device is a malgo capture device. A nil info selects the system default.
type Device struct {
	ctx  malgo.Context
	info *malgo.DeviceInfo
}

func (d *Device) Name() string {
	if d.info == nil {
		return "default"
	}
	return d.info.Name()
}

func (d *Device) BuildInputStream(cfg audio.StreamConfig, onData audio.DataCallback, onError audio.ErrorCallback) (audio.InputStream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	if cfg.BufferFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.BufferFrames)
	}
	if d.info != nil {
		deviceConfig.Capture.DeviceID = d.info.ID.Pointer()
	}

	s := &Stream{}
	// The data callback always runs on the same device thread, so the scratch
	// buffer is reused between calls.
	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pcmData []byte, _ uint32) {
			scratch = bytesToFloat32(scratch, pcmData)
			onData(scratch)
		},
		Stop: func() {
			if s.paused.Load() || s.closed.Load() {
				return
			}
			onError(ErrDeviceStopped)
		},
	}

	device, err := malgo.InitDevice(d.ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio device: %w", err)
	}
	s.device = device
	s.paused.Store(true)

	slog.Debug("malgo input stream built",
		"device", d.Name(),
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_frames", cfg.BufferFrames)
	return s, nil
}

// Stream wraps an initialized malgo device. Pause stops the device without
// releasing it; Play restarts it.
type Stream struct {
	device *malgo.Device
	paused atomic.Bool
	closed atomic.Bool
}

func (s *Stream) Play() error {
	s.paused.Store(false)
	if err := s.device.Start(); err != nil {
		s.paused.Store(true)
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	return nil
}

func (s *Stream) Pause() error {
	s.paused.Store(true)
	if !s.device.IsStarted() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio device: %w", err)
	}
	return nil
}

func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.device.Uninit()
	return nil
}

// bytesToFloat32 decodes little-endian f32 PCM into dst, growing it as needed.
func bytesToFloat32(dst []float32, b []byte) []float32 {
	n := len(b) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return dst
}
