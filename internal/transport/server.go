package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Path is the websocket endpoint served by the host.
const Path = "/ws"

// Server upgrades HTTP requests on Path into WSConns.
type Server struct {
	upgrader  websocket.Upgrader
	opts      Options
	log       zerolog.Logger
	onConnect func(*WSConn)
}

// NewServer returns a handler that calls onConnect for every new
// connection before its read loop starts, so handlers registered in
// onConnect see the first message.
func NewServer(opts Options, log zerolog.Logger, onConnect func(*WSConn)) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts:      opts.withDefaults(),
		log:       log.With().Str("component", "transport").Logger(),
		onConnect: onConnect,
	}
}

// Handler returns a mux with the websocket endpoint and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	conn := newWSConn(ws, s.opts, s.log)
	conn.log.Info().Msg("viewer connected")
	if s.onConnect != nil {
		s.onConnect(conn)
	}
	conn.Start()
}

// URL builds the websocket address of a host.
func URL(host string, port int) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   Path,
	}
	return u.String()
}

// Dial connects to a host. It fails after opts.ConnectTimeout with an
// error wrapping ErrConnectTimeout, or wraps ErrConnectFailed for any
// other failure. Dial never retries. The returned connection is not
// started; subscribe handlers, then call Start.
func Dial(ctx context.Context, rawURL string, opts Options, log zerolog.Logger) (*WSConn, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.ConnectTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrConnectTimeout, rawURL, opts.ConnectTimeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, rawURL, err)
	}
	return newWSConn(ws, opts, log.With().Str("component", "transport").Logger()), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
