// audio/interface.go
package audio

// StreamConfig describes the input stream requested from a device.
type StreamConfig struct {
	Channels   int
	SampleRate int
	// BufferFrames is the period size hint in frames. 0 leaves buffering to
	// the device default.
	BufferFrames int
}

// DataCallback receives interleaved samples from the device thread. The slice
// is only valid for the duration of the call.
type DataCallback func(samples []float32)

// ErrorCallback receives terminal stream errors from the device thread.
type ErrorCallback func(err error)

// InputDevice is a capture device owned by the caller.
type InputDevice interface {
	Name() string
	BuildInputStream(cfg StreamConfig, onData DataCallback, onError ErrorCallback) (InputStream, error)
}

// InputStream is an opened, initially paused input stream.
type InputStream interface {
	Play() error
	Pause() error
	Close() error
}

// Backend enumerates and opens capture devices for one audio API.
type Backend interface {
	// Init should do nothing if called more than once.
	Init() error
	Close() error

	Devices() ([]InputDevice, error)
	DefaultDevice() (InputDevice, error)
}
