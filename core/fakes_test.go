package core

import (
	"errors"
	"sync"
	"time"

	"github.com/lisuiheng/multisample-go/audio"
)

// fakeDevice hands out fakeStreams and records how it was asked to build them.
type fakeDevice struct {
	buildErr error
	stream   *fakeStream

	mu      sync.Mutex
	builds  int
	configs []audio.StreamConfig
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) BuildInputStream(cfg audio.StreamConfig, onData audio.DataCallback, onError audio.ErrorCallback) (audio.InputStream, error) {
	d.mu.Lock()
	d.builds++
	d.configs = append(d.configs, cfg)
	d.mu.Unlock()

	if d.buildErr != nil {
		return nil, d.buildErr
	}
	if d.stream == nil {
		d.stream = newFakeStream(0)
	}
	d.stream.onData = onData
	d.stream.onError = onError
	return d.stream, nil
}

// fakeStream delivers perPlay samples on every Play. Each sample carries the
// zero-based play index so tests can tell which window it belongs to.
type fakeStream struct {
	perPlay int
	// async delivers from a separate goroutine, in several batches.
	async bool

	errOnPlay int // play index that reports a stream error, -1 for none
	failPlay  int // play index whose Play fails, -1 for none
	failPause int // pause index whose Pause fails, -1 for none
	streamErr error
	playErr   error
	pauseErr  error

	onData  audio.DataCallback
	onError audio.ErrorCallback

	mu        sync.Mutex
	plays     int
	pauses    int
	closed    int
	delivered sync.WaitGroup
}

func newFakeStream(perPlay int) *fakeStream {
	return &fakeStream{
		perPlay:   perPlay,
		errOnPlay: -1,
		failPlay:  -1,
		failPause: -1,
		streamErr: errors.New("device unplugged"),
		playErr:   errors.New("play refused"),
		pauseErr:  errors.New("pause refused"),
	}
}

func (s *fakeStream) Play() error {
	s.mu.Lock()
	idx := s.plays
	s.plays++
	s.mu.Unlock()

	if idx == s.failPlay {
		return s.playErr
	}

	batch := make([]float32, s.perPlay)
	for i := range batch {
		batch[i] = float32(idx)
	}

	deliver := func() {
		if s.async {
			for start := 0; start < len(batch); start += 64 {
				end := min(start+64, len(batch))
				s.onData(batch[start:end])
				time.Sleep(time.Microsecond)
			}
		} else {
			s.onData(batch)
		}
		if idx == s.errOnPlay {
			s.onError(s.streamErr)
		}
	}

	if s.async {
		s.delivered.Add(1)
		go func() {
			defer s.delivered.Done()
			deliver()
		}()
		return nil
	}
	deliver()
	return nil
}

func (s *fakeStream) Pause() error {
	// A paused device stops calling back.
	s.delivered.Wait()

	s.mu.Lock()
	idx := s.pauses
	s.pauses++
	s.mu.Unlock()

	if idx == s.failPause {
		return s.pauseErr
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeSender records every message. failAt makes the send with that index
// fail; -1 disables it.
type fakeSender struct {
	failAt int
	err    error

	mu   sync.Mutex
	sent [][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{failAt: -1, err: errors.New("port closed")}
}

func (f *fakeSender) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.sent)
	f.sent = append(f.sent, append([]byte(nil), msg...))
	if idx == f.failAt {
		return f.err
	}
	return nil
}

// sleepRecorder replaces time.Sleep and keeps the requested durations.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
}
