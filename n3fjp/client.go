// Package n3fjp talks to the N3FJP logging programs over their TCP API.
//
// The API is a request/response exchange of tag-delimited text with no length
// prefix and no acknowledgment, so a response is considered complete once the
// peer goes quiet (see FetchList). Parsing of the returned text lives in
// parse.go and the mapping of vendor tags onto contact fields in record.go.
package n3fjp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	ztelnet "github.com/ziutek/telnet"
)

const (
	// DefaultPort is the TCP API port N3FJP listens on out of the box.
	DefaultPort = 1100

	// TransportNative dials a plain TCP socket.
	TransportNative = "native"
	// TransportTelnet wraps the socket with a telnet codec so IAC negotiation
	// from a terminal-server gateway in front of the logger is stripped.
	TransportTelnet = "telnet"

	lineTerminator = "\r\n"
	readChunkBytes = 64 * 1024
)

// Client issues single commands against the N3FJP API. Every call opens a fresh
// connection; the logger closes or ignores idle sockets, so nothing is pooled.
type Client struct {
	host        string
	port        int
	transport   string
	dialTimeout time.Duration
}

// NewClient creates a client for host:port. An empty transport selects the
// native TCP transport; a non-positive dialTimeout means "use the fetch's total
// timeout".
func NewClient(host string, port int, transport string, dialTimeout time.Duration) *Client {
	transport = strings.ToLower(strings.TrimSpace(transport))
	if transport == "" {
		transport = TransportNative
	}
	if port <= 0 {
		port = DefaultPort
	}
	return &Client{
		host:        strings.TrimSpace(host),
		port:        port,
		transport:   transport,
		dialTimeout: dialTimeout,
	}
}

// Addr returns the host:port the client dials.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Transport reports the configured transport name.
func (c *Client) Transport() string {
	return c.transport
}

// BuildListCommand renders the LIST request for the n most recent log entries.
// The LIST element must be closed; the logger returns partial or empty
// responses otherwise.
func BuildListCommand(n int, includeAll bool) string {
	if n < 0 {
		n = 0
	}
	if includeAll {
		return fmt.Sprintf("<CMD><LIST><INCLUDEALL><VALUE>%d</VALUE></LIST></CMD>", n)
	}
	return fmt.Sprintf("<CMD><LIST><VALUE>%d</VALUE></LIST></CMD>", n)
}

// FetchList requests the n most recent contacts with every field included and
// returns the raw response bytes.
func (c *Client) FetchList(ctx context.Context, n int, totalTimeout, idleTimeout time.Duration) ([]byte, error) {
	return c.Command(ctx, BuildListCommand(n, true), totalTimeout, idleTimeout)
}

// Purpose: Send one command and collect the response using silence-based framing.
// Key aspects: Stops when totalTimeout elapses since send, or when at least one
// chunk arrived and the peer stayed quiet for idleTimeout. EOF ends the read
// normally; any other connection error discards the partial response.
// Upstream: FetchList, cmd/n3fjpprobe.
// Downstream: dial, net.Conn read deadlines.
func (c *Client) Command(ctx context.Context, cmd string, totalTimeout, idleTimeout time.Duration) ([]byte, error) {
	if totalTimeout <= 0 {
		return nil, errors.New("n3fjp: total timeout must be > 0")
	}
	if idleTimeout <= 0 || idleTimeout > totalTimeout {
		idleTimeout = totalTimeout
	}

	conn, err := c.dial(ctx, totalTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		// Unblock a pending Read so cancellation is observed promptly.
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	payload := strings.TrimSpace(cmd) + lineTerminator
	start := time.Now()
	_ = conn.SetWriteDeadline(start.Add(totalTimeout))
	if _, err := io.WriteString(conn, payload); err != nil {
		return nil, fmt.Errorf("n3fjp: send to %s: %w", c.Addr(), err)
	}

	var (
		out      []byte
		lastData = start
		buf      = make([]byte, readChunkBytes)
	)
	for {
		now := time.Now()
		if now.Sub(start) >= totalTimeout {
			break
		}
		if len(out) > 0 && now.Sub(lastData) >= idleTimeout {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deadline := now.Add(idleTimeout)
		if hard := start.Add(totalTimeout); deadline.After(hard) {
			deadline = hard
		}
		_ = conn.SetReadDeadline(deadline)

		n, err := conn.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			lastData = time.Now()
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		return nil, fmt.Errorf("n3fjp: read from %s: %w", c.Addr(), err)
	}
	return out, nil
}

func (c *Client) dial(ctx context.Context, totalTimeout time.Duration) (net.Conn, error) {
	timeout := c.dialTimeout
	if timeout <= 0 {
		timeout = totalTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, fmt.Errorf("n3fjp: connect to %s: %w", c.Addr(), err)
	}
	switch c.transport {
	case TransportNative:
		return conn, nil
	case TransportTelnet:
		tconn, err := ztelnet.NewConn(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("n3fjp: telnet wrap %s: %w", c.Addr(), err)
		}
		return tconn, nil
	default:
		log.Printf("N3FJP: unknown transport %q, using %s", c.transport, TransportNative)
		return conn, nil
	}
}
