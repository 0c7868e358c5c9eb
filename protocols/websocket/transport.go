// protocols/websocket/transport.go
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/multisample-go/pkg/interfaces"
)

var _ interfaces.Output = (*Bridge)(nil)

// Config holds the settings of a websocket MIDI bridge.
type Config struct {
	URL              string
	AccessToken      string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Bridge sends MIDI messages as binary frames to a remote MIDI bridge, one
// message per frame. Frames received from the bridge are discarded.
type Bridge struct {
	conn      *websocket.Conn
	config    Config
	logger    *slog.Logger
	closeChan chan struct{}
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Dial connects to the bridge at cfg.URL.
func Dial(ctx context.Context, cfg Config, log *slog.Logger) (*Bridge, error) {
	if log == nil {
		log = slog.Default()
	}

	headers := http.Header{}
	if cfg.AccessToken != "" {
		headers.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken))
	}

	dialer := *websocket.DefaultDialer
	if cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.HandshakeTimeout
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, err)
	}

	b := &Bridge{
		conn:      conn,
		config:    cfg,
		logger:    log.With("component", "websocket", "url", cfg.URL),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.readPump()
	b.logger.Info("connected to midi bridge")
	return b, nil
}

// readPump keeps control frames flowing and notices when the bridge goes away.
func (b *Bridge) readPump() {
	defer close(b.done)
	for {
		if _, _, err := b.conn.ReadMessage(); err != nil {
			select {
			case <-b.closeChan:
			default:
				b.logger.Warn("midi bridge connection lost", "error", err)
			}
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
			return
		}
	}
}

func (b *Bridge) Send(msg []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return interfaces.ErrNotConnected
	}
	if b.config.WriteTimeout > 0 {
		if err := b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return fmt.Errorf("failed to write midi frame: %w", err)
	}
	return nil
}

func (b *Bridge) Name() string { return b.config.URL }

// Close sends a close frame and waits briefly for the bridge to answer.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		wasOpen := !b.closed
		b.closed = true
		close(b.closeChan)
		if wasOpen {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		b.mu.Unlock()

		select {
		case <-b.done:
		case <-time.After(time.Second):
		}
		err = b.conn.Close()
	})
	return err
}
