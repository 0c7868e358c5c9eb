// Package portaudio captures audio through PortAudio callback streams.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/multisample-go/audio"
	"go.uber.org/atomic"
)

var GlobalBackend = &Backend{}

// Replaced in tests.
var (
	paDevices       = pa.Devices
	paDefaultDevice = pa.DefaultInputDevice
)

func init() {
	audio.RegisterBackend("portaudio", GlobalBackend)
}

// Backend represents the PortAudio library. A zero-value Backend is valid.
type Backend struct {
	initialized atomic.Bool
}

func (b *Backend) Init() error {
	if b.initialized.Load() {
		return nil
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	b.initialized.Store(true)
	return nil
}

func (b *Backend) Close() error {
	if !b.initialized.Swap(false) {
		return nil
	}
	return pa.Terminate()
}

func (b *Backend) Devices() ([]audio.InputDevice, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	var devices []audio.InputDevice
	for _, info := range infos {
		if info.MaxInputChannels > 0 {
			devices = append(devices, &Device{info: info})
		}
	}
	return devices, nil
}

func (b *Backend) DefaultDevice() (audio.InputDevice, error) {
	info, err := paDefaultDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default input device: %w", err)
	}
	if info == nil {
		return nil, errors.New("no default input device found")
	}
	return &Device{info: info}, nil
}

// Device represents a PortAudio input device.
type Device struct {
	info *pa.DeviceInfo
}

func (d *Device) Name() string {
	return d.info.Name
}

func (d *Device) BuildInputStream(cfg audio.StreamConfig, onData audio.DataCallback, _ audio.ErrorCallback) (audio.InputStream, error) {
	if cfg.Channels > d.info.MaxInputChannels {
		return nil, fmt.Errorf("device %q has %d input channels, %d requested",
			d.info.Name, d.info.MaxInputChannels, cfg.Channels)
	}

	params := pa.LowLatencyParameters(d.info, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	if cfg.BufferFrames > 0 {
		params.FramesPerBuffer = cfg.BufferFrames
	}

	s := &Stream{device: d.info.Name}
	// PortAudio has no asynchronous error path for callback streams; overflows
	// are counted and reported when the stream is paused.
	callback := func(in []float32, _ pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
		if flags&pa.InputOverflow != 0 {
			s.overflows.Inc()
		}
		onData(in)
	}

	stream, err := pa.OpenStream(params, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	s.stream = stream

	slog.Debug("portaudio input stream built",
		"device", d.info.Name,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"latency", params.Input.Latency)
	return s, nil
}

// Stream is an opened PortAudio callback stream.
type Stream struct {
	stream    *pa.Stream
	device    string
	overflows atomic.Int64
}

func (s *Stream) Play() error {
	return s.stream.Start()
}

func (s *Stream) Pause() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if n := s.overflows.Swap(0); n > 0 {
		slog.Warn("input overflow detected", "device", s.device, "count", n)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.stream.Close()
}
