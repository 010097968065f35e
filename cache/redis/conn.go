package redis

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

// conn is one authenticated connection. Every command is bounded by the IO
// timeout and, when earlier, the deadline of the caller's context.
// Cancelling the context aborts a command in flight.
type conn struct {
	nc       net.Conn
	br       *bufio.Reader
	wbuf     []byte
	timeout  time.Duration
	deadline time.Time
}

func (c *conn) bound(ctx context.Context) {
	c.deadline = time.Time{}
	if dl, ok := ctx.Deadline(); ok {
		c.deadline = dl
	}
}

// watch expires c's deadlines as soon as ctx is done. Call stop once the
// command has finished.
func (c *conn) watch(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.nc.SetDeadline(time.Now()) })
}

func (c *conn) nextDeadline() time.Time {
	d := time.Now().Add(c.timeout)
	if !c.deadline.IsZero() && c.deadline.Before(d) {
		return c.deadline
	}
	return d
}

// write sends every command in one write.
func (c *conn) write(cmds ...[]string) error {
	c.wbuf = c.wbuf[:0]
	for _, args := range cmds {
		c.wbuf = appendCommand(c.wbuf, args...)
	}
	if err := c.nc.SetWriteDeadline(c.nextDeadline()); err != nil {
		return err
	}
	_, err := c.nc.Write(c.wbuf)
	return err
}

func (c *conn) read() (any, error) {
	if err := c.nc.SetReadDeadline(c.nextDeadline()); err != nil {
		return nil, err
	}
	return readReply(c.br)
}

func (c *conn) do(args ...string) (any, error) {
	if err := c.write(args); err != nil {
		return nil, err
	}
	return c.read()
}

// broken reports whether err leaves c unusable. Server error replies do not.
func broken(err error) bool {
	var se ServerError
	if err == nil || errors.As(err, &se) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, errProtocol) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

type dialFunc func(context.Context, Options) (net.Conn, error)

func dialTCP(ctx context.Context, opts Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	return d.DialContext(ctx, "tcp", opts.Addr)
}

// pool keeps up to cap(idle) connections for reuse. Extra connections are
// dialed on demand and closed on release.
type pool struct {
	opts Options
	dial dialFunc
	idle chan *conn
}

func (p *pool) get(ctx context.Context) (*conn, error) {
	select {
	case c := <-p.idle:
		c.bound(ctx)
		return c, nil
	default:
	}

	nc, err := p.dial(ctx, p.opts)
	if err != nil {
		return nil, err
	}
	c := &conn{nc: nc, br: bufio.NewReader(nc), timeout: p.opts.IOTimeout}
	c.bound(ctx)
	stop := c.watch(ctx)
	err = p.handshake(c)
	stop()
	if err != nil {
		_ = nc.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return c, nil
}

func (p *pool) handshake(c *conn) error {
	var cmds [][]string
	if p.opts.Password != "" {
		cmds = append(cmds, []string{"AUTH", p.opts.Password})
	}
	if p.opts.DB > 0 {
		cmds = append(cmds, []string{"SELECT", strconv.Itoa(p.opts.DB)})
	}
	if len(cmds) == 0 {
		return nil
	}
	if err := c.write(cmds...); err != nil {
		return err
	}
	for _, cmd := range cmds {
		reply, err := c.read()
		if err != nil {
			return err
		}
		if !okReply(reply) {
			return errors.New("redis: " + cmd[0] + " rejected")
		}
	}
	return nil
}

func (p *pool) put(c *conn, healthy bool) {
	if c == nil {
		return
	}
	if healthy {
		c.deadline = time.Time{}
		select {
		case p.idle <- c:
			return
		default:
		}
	}
	_ = c.nc.Close()
}

func (p *pool) drain() {
	for {
		select {
		case c := <-p.idle:
			_ = c.nc.Close()
		default:
			return
		}
	}
}
