package observer

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Tap is a FrameSource fed by the host environment: a local WebSocket
// endpoint the host pushes copies of game frames to. The tap only
// reads; the real game connection stays entirely with the host.
type Tap struct {
	addr   string
	log    *zerolog.Logger
	frames chan []byte
}

// NewTap builds a tap listening on addr.
func NewTap(addr string, logger *zerolog.Logger) *Tap {
	return &Tap{
		addr:   addr,
		log:    logger,
		frames: make(chan []byte, 64),
	}
}

// Origin names the tap endpoint for self-reference exclusion.
func (t *Tap) Origin() string {
	return "tap://" + t.addr
}

// Next blocks for the next forwarded frame.
func (t *Tap) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-t.frames:
		return frame, nil
	}
}

// Run serves the tap endpoint until ctx is cancelled. Hosts may
// reconnect; each connection feeds the same frame queue.
func (t *Tap) Run(ctx context.Context) error {
	mux := stdhttp.NewServeMux()
	mux.Handle("/tap", stdhttp.HandlerFunc(t.serve))

	srv := &stdhttp.Server{
		Addr:              t.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	t.log.Info().Str("addr", t.addr).Msg("frame tap listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *Tap) serve(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.log.Warn().Err(err).Msg("tap accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx := r.Context()
	t.log.Debug().Msg("tap host connected")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			t.log.Debug().Err(err).Msg("tap host disconnected")
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		select {
		case t.frames <- data:
		default:
			// Never block the host; a full queue sheds the frame.
			t.log.Debug().Msg("tap queue full, frame dropped")
		}
	}
}
