package hellotls

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoCipherSuites is returned when the server accepted none of the
// offered cipher suites, which usually means the requested protocol
// version itself is not supported.
var ErrNoCipherSuites = errors.New("tls.scan: no supported cipher suites for this protocol version")

type scanConfig struct {
	protocol  Protocol
	port      int
	workers   int
	timeout   time.Duration
	suites    []CipherSuite
	proxyAddr string
}

// Option adjusts how a scan runs.
type Option func(*scanConfig)

// WithProtocol sets the protocol version to enumerate cipher suites
// for.  The default is TLS 1.3.
func WithProtocol(p Protocol) Option {
	return func(c *scanConfig) { c.protocol = p }
}

// WithPort sets the port used when the host has none.  The default is 443.
func WithPort(port int) Option {
	return func(c *scanConfig) { c.port = port }
}

// WithWorkers sets how many connections may probe concurrently, each
// owning a disjoint slice of the candidate suites.  The default is 1.
func WithWorkers(n int) Option {
	return func(c *scanConfig) { c.workers = n }
}

// WithTimeout bounds each connect/write/read attempt.  The default is
// two seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *scanConfig) { c.timeout = d }
}

// WithCipherSuites narrows the candidate suites offered to the server.
// The default is AllCipherSuites.
func WithCipherSuites(suites ...CipherSuite) Option {
	return func(c *scanConfig) { c.suites = suites }
}

// WithProxy routes probe connections through a SOCKS5 proxy.
func WithProxy(addr string) Option {
	return func(c *scanConfig) { c.proxyAddr = addr }
}

func newScanConfig(opts []Option) scanConfig {
	c := scanConfig{
		protocol: TLS13,
		port:     443,
		workers:  1,
		timeout:  2 * time.Second,
		suites:   AllCipherSuites,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

func (c scanConfig) newDialer() (contextDialer, error) {
	if c.proxyAddr != "" {
		return socks5Dialer(c.proxyAddr, c.timeout)
	}
	return &net.Dialer{}, nil
}

// splitTarget separates an optional ":port" suffix from the host, which
// doubles as the SNI server name.
func splitTarget(host string, defaultPort int) (serverName string, addr string, err error) {
	serverName = host
	port := defaultPort
	if name, portStr, ok := strings.Cut(host, ":"); ok {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", "", errors.Wrapf(err, "invalid port in target %q", host)
		}
		serverName = name
	}
	return serverName, net.JoinHostPort(serverName, strconv.Itoa(port)), nil
}

// EnumerateCipherSuites discovers every cipher suite the server at host
// is willing to negotiate for one protocol version.  The server picks a
// single suite per handshake, so each accepted suite is removed from
// the offer and the connection repeated until the server answers with a
// handshake_failure alert.
//
// The candidate set is split across workers by index, so results are in
// per-worker discovery order.  Any alert other than handshake_failure,
// and any transport or parse failure, aborts the whole enumeration;
// when several workers fail together, which error is returned is
// unspecified.
func EnumerateCipherSuites(ctx context.Context, host string, opts ...Option) ([]CipherSuite, error) {
	config := newScanConfig(opts)
	serverName, addr, err := splitTarget(host, config.port)
	if err != nil {
		return nil, err
	}
	dialer, err := config.newDialer()
	if err != nil {
		return nil, err
	}

	var (
		mutex    sync.Mutex
		accepted []CipherSuite
	)

	group, ctx := errgroup.WithContext(ctx)
	for _, subset := range partitionSuites(config.suites, config.workers) {
		remaining := subset
		group.Go(func() error {
			for len(remaining) > 0 {
				if err := ctx.Err(); err != nil {
					return err
				}

				hello := ClientHello{
					ServerName:   serverName,
					Protocols:    []Protocol{config.protocol},
					CipherSuites: remaining,
				}
				record, err := hello.Marshal()
				if err != nil {
					return err
				}

				response, err := sendRecord(ctx, dialer, addr, config.timeout, record)
				if err != nil {
					return err
				}

				serverHello, err := ParseServerHello(response)
				if err != nil {
					var alert *ServerAlertError
					if errors.As(err, &alert) && alert.Description == AlertHandshakeFailure {
						// The server is out of acceptable offers.
						return nil
					}
					return err
				}

				next, removed := removeSuite(remaining, serverHello.CipherSuite)
				if !removed {
					return errors.Errorf("tls.scan: %s accepted %s, which was not offered", addr, serverHello.CipherSuite)
				}
				remaining = next

				logf(logTypeScan, "%s accepted %s under %s", addr, serverHello.CipherSuite, config.protocol)
				mutex.Lock()
				accepted = append(accepted, serverHello.CipherSuite)
				mutex.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if len(accepted) == 0 {
		return nil, errors.Wrapf(ErrNoCipherSuites, "%s under %s", addr, config.protocol)
	}
	return accepted, nil
}

// EnumerateProtocols probes which protocol versions the server at host
// accepts, using one connection per version.  A handshake_failure or
// protocol_version alert marks the version unsupported; any other
// failure is fatal.
func EnumerateProtocols(ctx context.Context, host string, opts ...Option) ([]Protocol, error) {
	config := newScanConfig(opts)
	serverName, addr, err := splitTarget(host, config.port)
	if err != nil {
		return nil, err
	}
	dialer, err := config.newDialer()
	if err != nil {
		return nil, err
	}

	var supported []Protocol
	for _, protocol := range AllProtocols {
		hello := ClientHello{
			ServerName:   serverName,
			Protocols:    []Protocol{protocol},
			CipherSuites: config.suites,
		}
		record, err := hello.Marshal()
		if err != nil {
			return nil, err
		}

		response, err := sendRecord(ctx, dialer, addr, config.timeout, record)
		if err != nil {
			return nil, err
		}

		if _, err := ParseServerHello(response); err != nil {
			var alert *ServerAlertError
			if errors.As(err, &alert) &&
				(alert.Description == AlertHandshakeFailure || alert.Description == AlertProtocolVersion) {
				continue
			}
			return nil, err
		}

		logf(logTypeScan, "%s accepted %s", addr, protocol)
		supported = append(supported, protocol)
	}
	return supported, nil
}

// partitionSuites deals suites round-robin into count disjoint subsets,
// spreading the more desirable suites across workers instead of
// clustering them in one subset.
func partitionSuites(suites []CipherSuite, count int) [][]CipherSuite {
	subsets := make([][]CipherSuite, count)
	for i, suite := range suites {
		subsets[i%count] = append(subsets[i%count], suite)
	}
	return subsets
}

// removeSuite returns a copy of suites with one occurrence of target
// removed, reporting whether it was present.
func removeSuite(suites []CipherSuite, target CipherSuite) ([]CipherSuite, bool) {
	out := make([]CipherSuite, 0, len(suites))
	removed := false
	for _, suite := range suites {
		if suite == target && !removed {
			removed = true
			continue
		}
		out = append(out, suite)
	}
	return out, removed
}
