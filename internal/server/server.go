// server owns the accept loop and the per-connection tasks: one reader
// goroutine driving decode-dispatch-encode, plus a writer goroutine per
// logged-in user delivering follower notifications on the same socket.
package server

import (
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"social/internal/handlers"
	"social/internal/notify"
	"social/internal/session"
	"social/internal/wire"
)

var (
	connGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "social_open_connections",
		Help: "Currently open client connections.",
	})
	connTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "social_connections_total",
		Help: "Client connections accepted since start.",
	})
)

func init() {
	prometheus.MustRegister(connGauge, connTotal)
}

type Server struct {
	ln       net.Listener
	disp     *handlers.Dispatcher
	sessions *session.Manager
	notifier *notify.Dispatcher
	log      zerolog.Logger

	t  tomb.Tomb
	mu sync.Mutex
	// open conns by id so shutdown can unblock parked readers
	conns map[string]net.Conn
}

func Start(addr string, disp *handlers.Dispatcher, sessions *session.Manager, notifier *notify.Dispatcher, log zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:       ln,
		disp:     disp,
		sessions: sessions,
		notifier: notifier,
		log:      log,
		conns:    map[string]net.Conn{},
	}
	s.t.Go(s.acceptLoop)
	log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return s, nil
}

// Addr is the bound listen address, useful when addr was ":0".
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.t.Dying():
				return nil
			default:
				return err
			}
		}
		connTotal.Inc()
		connGauge.Inc()
		c := conn
		s.t.Go(func() error {
			s.handle(c)
			return nil
		})
	}
}

// handle runs one connection to completion. A failed read means the
// client is gone: the session binding is released, the notification
// subscription purged, and nothing else is affected.
func (s *Server) handle(conn net.Conn) {
	connID := session.NewConnID()
	s.track(connID, conn)
	var writeMu sync.Mutex

	// the subscription opened by this connection's login, if any; passed
	// back on teardown so a re-login elsewhere keeps its own channel
	var sub <-chan notify.FollowerEvent

	defer func() {
		s.untrack(connID)
		connGauge.Dec()
		conn.Close()
		if username, ok := s.sessions.Disconnect(connID); ok {
			if sub != nil {
				s.notifier.Unsubscribe(username, sub)
			}
			s.log.Debug().Str("user", username).Msg("session released on disconnect")
		}
	}()

	log := s.log.With().Str("conn", connID).Str("remote", conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("connection accepted")

	for {
		req, err := wire.ReadFrame(conn)
		if err != nil {
			if err != wire.ErrConnectionClosed {
				log.Warn().Err(err).Msg("bad frame, dropping connection")
			}
			return
		}

		var logoutUser string
		if req[0] == wire.ReqLogout {
			logoutUser, _ = s.sessions.Current(connID)
		}

		resp, exit := s.disp.Handle(connID, req)

		// a successful login starts the notification writer before the
		// response goes out, so no follower event can slip past; a
		// successful logout tears the subscription down
		if len(req) > 1 && req[0] == wire.ReqLogin && resp[0] == wire.RespSuccess {
			sub = s.startNotifyWriter(conn, &writeMu, req[1], log)
		}

		writeMu.Lock()
		err = wire.WriteFrame(conn, resp)
		writeMu.Unlock()
		if err != nil {
			return
		}

		if logoutUser != "" && resp[0] == wire.RespSuccess {
			s.notifier.Unsubscribe(logoutUser, sub)
			sub = nil
		}
		if exit {
			return
		}
	}
}

// startNotifyWriter forwards follower deltas to the client as
// unsolicited notify frames, sharing the connection's write lock with
// the response path. It ends when the subscription channel closes. The
// channel is returned so the caller can hand it back to Unsubscribe.
func (s *Server) startNotifyWriter(conn net.Conn, writeMu *sync.Mutex, username string, log zerolog.Logger) <-chan notify.FollowerEvent {
	ch := s.notifier.Subscribe(username)
	s.t.Go(func() error {
		for ev := range ch {
			delta := "-" + ev.Follower
			if ev.Added {
				delta = "+" + ev.Follower
			}
			writeMu.Lock()
			err := wire.WriteFrame(conn, []string{wire.Notify, delta})
			writeMu.Unlock()
			if err != nil {
				log.Debug().Str("user", username).Msg("notify write failed, client gone")
				return nil
			}
		}
		return nil
	})
	return ch
}

func (s *Server) track(connID string, conn net.Conn) {
	s.mu.Lock()
	s.conns[connID] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(connID string) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
}

// Shutdown stops accepting, closes every open connection to unblock
// parked readers, and waits for all connection tasks to finish.
func (s *Server) Shutdown() error {
	s.t.Kill(nil)
	s.ln.Close()
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return s.t.Wait()
}
