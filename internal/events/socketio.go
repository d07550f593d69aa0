package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIOEvent is the socket.io event name every run event is emitted
// under.
const SocketIOEvent = "deployment_event"

// SocketIOConfig points at a live dashboard.
type SocketIOConfig struct {
	URL            string
	Namespace      string
	ConnectTimeout time.Duration
}

// SocketIOSink streams events to a socket.io server.
type SocketIOSink struct {
	io *socket.Socket
}

// DialSocketIO connects to the dashboard and waits for the handshake.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.New("socket.io url must be absolute")
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to event dashboard.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIOSink{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

func (s *SocketIOSink) Name() string { return "socketio" }

// Publish emits the event. Delivery is not acknowledged.
func (s *SocketIOSink) Publish(_ context.Context, e Event) error {
	s.io.Emit(SocketIOEvent, payload(e))
	return nil
}

// Close disconnects from the dashboard.
func (s *SocketIOSink) Close() error {
	s.io.Disconnect()
	return nil
}

func payload(e Event) map[string]any {
	out := map[string]any{
		"run_id":  e.RunID,
		"network": e.Network,
		"seq":     e.Seq,
		"stage":   e.Stage,
		"kind":    string(e.Kind),
		"time":    e.Time.Format(time.RFC3339Nano),
	}
	if e.Subject != "" {
		out["subject"] = e.Subject
	}
	if len(e.Detail) > 0 {
		out["detail"] = e.Detail
	}
	return out
}
