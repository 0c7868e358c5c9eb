package audio

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

type NamedBackend struct {
	Name string
	Backend
}

var Backends []NamedBackend

// RegisterBackend registers a backend globally. This function is not
// thread-safe, and backend packages should call it on init().
func RegisterBackend(name string, b Backend) {
	Backends = append(Backends, NamedBackend{
		Name:    name,
		Backend: b,
	})
}

// BackendNames returns the names of all registered backends.
func BackendNames() []string {
	out := make([]string, len(Backends))
	for i, backend := range Backends {
		out[i] = backend.Name
	}
	return out
}

// DefaultBackend returns the preferred registered backend for this platform,
// or "" when none is registered.
func DefaultBackend() string {
	if runtime.GOOS == "darwin" && HasBackend("portaudio") {
		return "portaudio"
	}
	if HasBackend("malgo") {
		return "malgo"
	}
	if len(Backends) > 0 {
		return Backends[0].Name
	}
	return ""
}

// FindBackend returns nil if no backend with that name is registered.
func FindBackend(name string) Backend {
	for _, backend := range Backends {
		if backend.Name == name {
			return backend.Backend
		}
	}
	return nil
}

func HasBackend(name string) bool {
	return FindBackend(name) != nil
}

func InitBackend(name string) (Backend, error) {
	backend := FindBackend(name)
	if backend == nil {
		return nil, fmt.Errorf("backend not found: %q; check list-backends", name)
	}

	if err := backend.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize input backend")
	}

	return backend, nil
}

// GetDevice returns the device whose name equals device, or the backend
// default when device is empty.
func GetDevice(backend Backend, device string) (InputDevice, error) {
	if device == "" {
		def, err := backend.DefaultDevice()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default device")
		}
		return def, nil
	}

	devices, err := backend.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get devices")
	}

	for idx := range devices {
		if devices[idx].Name() == device {
			return devices[idx], nil
		}
	}

	return nil, errors.Errorf("device %q not found; check list-devices", device)
}
