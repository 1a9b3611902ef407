//go:build linux

package alloctrack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// pollTimeoutMs bounds how long a poll blocks before the serve loop rechecks
// its context.
const pollTimeoutMs = 250

// Server is the sampling endpoint: an epoll-driven TCP server that answers
// any HTTP request with a JSON rendering of the current [Snapshot] and
// closes the connection. One request per connection; the request itself is
// read into a bounded buffer and discarded unparsed.
//
// The server is an external consumer of the tracking core. It runs on
// ordinary Go runtime memory; only the snapshot walk touches the guarded
// tables.
type Server struct {
	log    *logiface.Logger[logiface.Event]
	conns  map[int]*serverConn
	bound  string
	lfd    int
	closed atomic.Bool
}

// NewServer binds a listening socket per the given options. The returned
// server does not accept connections until [Server.Serve] is called.
func NewServer(opts ...Option) (*Server, error) {
	cfg, err := resolveServerOptions(opts)
	if err != nil {
		return nil, err
	}
	lfd, bound, err := listenTCP(cfg.address)
	if err != nil {
		return nil, err
	}
	return &Server{
		log:   cfg.log,
		lfd:   lfd,
		bound: bound,
		conns: make(map[int]*serverConn),
	}, nil
}

// Addr returns the bound listen address, e.g. "127.0.0.1:8080".
func (s *Server) Addr() string {
	return s.bound
}

// Close releases the listening socket. A concurrent [Server.Serve] returns
// on its next poll wakeup.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(s.lfd)
}

// listenTCP opens a nonblocking IPv4 listening socket on address, returning
// the fd and the actually bound address.
func listenTCP(address string) (int, string, error) {
	tcpAddr, err := net.ResolveTCPAddr(`tcp4`, address)
	if err != nil {
		return -1, ``, fmt.Errorf(`alloctrack: resolve %q: %w`, address, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, ``, fmt.Errorf(`alloctrack: socket: %w`, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, ``, fmt.Errorf(`alloctrack: setsockopt: %w`, err)
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	copy(sa.Addr[:], tcpAddr.IP.To4())
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, ``, fmt.Errorf(`alloctrack: bind %q: %w`, address, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, ``, fmt.Errorf(`alloctrack: listen %q: %w`, address, err)
	}
	name, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, ``, fmt.Errorf(`alloctrack: getsockname: %w`, err)
	}
	bound := address
	if sa4, ok := name.(*unix.SockaddrInet4); ok {
		bound = net.JoinHostPort(net.IP(sa4.Addr[:]).String(), fmt.Sprint(sa4.Port))
	}
	return fd, bound, nil
}

// Serve accepts connections and answers requests until ctx is done or the
// server is closed. Per-connection I/O failures drop the offending
// connection; the server continues.
func (s *Server) Serve(ctx context.Context) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf(`alloctrack: epoll_create1: %w`, err)
	}
	defer func() {
		for fd := range s.conns {
			_ = unix.Close(fd)
			delete(s.conns, fd)
		}
		_ = unix.Close(epfd)
		_ = s.Close()
	}()

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, s.lfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(s.lfd),
	}); err != nil {
		return fmt.Errorf(`alloctrack: epoll_ctl: %w`, err)
	}

	s.log.Info().
		Str(`addr`, s.bound).
		Log(`sampling endpoint listening`)

	var events [128]unix.EpollEvent
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.closed.Load() {
			return nil
		}

		n, err := unix.EpollWait(epfd, events[:], pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf(`alloctrack: epoll_wait: %w`, err)
		}

		for i := 0; i < n; i++ {
			ev := &events[i]
			fd := int(ev.Fd)
			if fd == s.lfd {
				s.acceptReady(epfd)
				continue
			}
			conn, ok := s.conns[fd]
			if !ok {
				// Stale event for an fd already dropped this batch.
				continue
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				s.dropConn(epfd, fd)
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 {
				s.connReadable(epfd, fd, conn)
			} else if ev.Events&unix.EPOLLOUT != 0 {
				s.connWritable(epfd, fd, conn)
			}
		}
	}
}

// acceptReady drains the listener's accept queue, registering each new
// connection for readability.
func (s *Server) acceptReady(epfd int) {
	for {
		fd, _, err := unix.Accept4(s.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return
			}
			if !s.closed.Load() {
				s.log.Warning().
					Err(err).
					Log(`accept failed`)
			}
			return
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}); err != nil {
			s.log.Warning().
				Err(err).
				Int(`fd`, fd).
				Log(`register connection failed`)
			_ = unix.Close(fd)
			continue
		}
		s.conns[fd] = &serverConn{}
	}
}

// connReadable consumes a bounded request prefix, then switches the
// connection to write interest with a freshly built response.
func (s *Server) connReadable(epfd, fd int, conn *serverConn) {
	var buf [readBufSize]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return
		}
		s.log.Warning().
			Err(err).
			Int(`fd`, fd).
			Log(`read failed, dropping connection`)
		s.dropConn(epfd, fd)
		return
	}
	if n == 0 {
		// Peer closed before sending anything useful.
		s.dropConn(epfd, fd)
		return
	}
	conn.resp = buildResponse()
	conn.off = 0
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: unix.EPOLLOUT,
		Fd:     int32(fd),
	}); err != nil {
		s.log.Warning().
			Err(err).
			Int(`fd`, fd).
			Log(`modify connection failed, dropping connection`)
		s.dropConn(epfd, fd)
	}
}

// connWritable pushes the remaining response bytes, closing the connection
// once the response is fully written.
func (s *Server) connWritable(epfd, fd int, conn *serverConn) {
	n, err := unix.Write(fd, conn.resp[conn.off:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return
		}
		s.log.Warning().
			Err(err).
			Int(`fd`, fd).
			Log(`write failed, dropping connection`)
		s.dropConn(epfd, fd)
		return
	}
	conn.off += n
	if conn.off >= len(conn.resp) {
		s.dropConn(epfd, fd)
	}
}

func (s *Server) dropConn(epfd, fd int) {
	_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
	_ = unix.Close(fd)
	delete(s.conns, fd)
}
