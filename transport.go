package hellotls

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

// Responses are read with a single bounded read; TLS records fragmented
// across reads are not reassembled.  Callers needing that must extend
// the transport.
const maxResponseLength = 4096

type contextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// socks5Dialer returns a dialer that reaches targets through the SOCKS5
// proxy at proxyAddr.
func socks5Dialer(proxyAddr string, timeout time.Duration) (contextDialer, error) {
	d, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "proxy %s", proxyAddr)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.Errorf("proxy %s: dialer does not support contexts", proxyAddr)
	}
	return cd, nil
}

// sendRecord performs one probe attempt: connect, write the encoded
// record, read at most one response buffer, close.  The timeout bounds
// the whole attempt.  Failures are not retried.
func sendRecord(ctx context.Context, dialer contextDialer, addr string, timeout time.Duration, record []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, errors.Wrapf(err, "set deadline on %s", addr)
		}
	}

	logf(logTypeIO, "%s <- client hello (%d bytes)", addr, len(record))
	if _, err := conn.Write(record); err != nil {
		return nil, errors.Wrapf(err, "write client hello to %s", addr)
	}

	response := make([]byte, maxResponseLength)
	n, err := conn.Read(response)
	if err != nil {
		return nil, errors.Wrapf(err, "read server response from %s", addr)
	}
	logf(logTypeIO, "%s -> %d bytes", addr, n)
	return response[:n], nil
}
