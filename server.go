package alloctrack

import (
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
	"github.com/joeycumines/logiface"
)

// DefaultAddress is the sampling endpoint's default listen address.
const DefaultAddress = `127.0.0.1:8080`

// readBufSize bounds how much of a request is read before responding. The
// request is discarded unparsed; requests larger than the buffer are an
// accepted limitation of this endpoint.
const readBufSize = 8192

type serverOptions struct {
	address string
	log     *logiface.Logger[logiface.Event]
}

// Option configures a [Server].
type Option interface {
	applyServer(*serverOptions) error
}

type optionImpl struct {
	applyServerFunc func(*serverOptions) error
}

func (o *optionImpl) applyServer(opts *serverOptions) error {
	return o.applyServerFunc(opts)
}

// WithAddress sets the TCP listen address, "host:port". Port 0 binds an
// ephemeral port, reported by [Server.Addr]. Defaults to [DefaultAddress].
func WithAddress(address string) Option {
	return &optionImpl{func(opts *serverOptions) error {
		opts.address = address
		return nil
	}}
}

// WithLogger sets the server's logger. A nil logger (the default) disables
// logging.
func WithLogger(log *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *serverOptions) error {
		opts.log = log
		return nil
	}}
}

func resolveServerOptions(opts []Option) (*serverOptions, error) {
	cfg := &serverOptions{
		address: DefaultAddress,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyServer(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// serverConn is one accepted connection: read a request prefix, then write
// the prepared response, tracking the write offset across partial writes.
type serverConn struct {
	resp []byte
	off  int
}

// appendSnapshotJSON appends the endpoint's JSON body for snap.
func appendSnapshotJSON(dst []byte, snap *Snapshot) []byte {
	dst = append(dst, '{')
	dst = jsonenc.AppendString(dst, `memory`)
	dst = append(dst, ':', '[')
	first := true
	for e := range snap.Memory.All() {
		if !first {
			dst = append(dst, ',')
		}
		first = false
		dst = append(dst, '[')
		dst = strconv.AppendUint(dst, uint64(e.Addr), 10)
		dst = append(dst, ',')
		dst = strconv.AppendInt(dst, int64(e.Size), 10)
		dst = append(dst, ']')
	}
	dst = append(dst, ']', ',')
	dst = jsonenc.AppendString(dst, `length_memory_array`)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(snap.Memory.Len()), 10)
	dst = append(dst, ',')
	dst = jsonenc.AppendString(dst, `memory_allocated`)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(snap.MemoryAllocated), 10)
	dst = append(dst, ',')
	dst = jsonenc.AppendString(dst, `total_memory`)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(snap.TotalMemory), 10)
	return append(dst, '}')
}

// buildResponse takes a fresh snapshot and renders the full HTTP response.
func buildResponse() []byte {
	snap := ProgramInformation()
	body := appendSnapshotJSON(nil, &snap)
	snap.Free()
	resp := make([]byte, 0, len(body)+64)
	resp = append(resp, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: "...)
	resp = strconv.AppendInt(resp, int64(len(body)), 10)
	resp = append(resp, "\r\n\r\n"...)
	return append(resp, body...)
}
