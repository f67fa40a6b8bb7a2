package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hellotls/hellotls"
)

var protocolsByName = map[string]hellotls.Protocol{
	"ssl3":   hellotls.SSLv3,
	"tls1.0": hellotls.TLS10,
	"tls1.1": hellotls.TLS11,
	"tls1.2": hellotls.TLS12,
	"tls1.3": hellotls.TLS13,
}

func main() {
	protocolName := flag.String("protocol", "tls1.3", "protocol version to enumerate (ssl3, tls1.0, tls1.1, tls1.2, tls1.3)")
	port := flag.Int("port", 443, "port used when the target has none")
	workers := flag.Int("workers", 2, "concurrent probe connections")
	timeout := flag.Duration("timeout", 2*time.Second, "per-connection timeout")
	versions := flag.Bool("versions", false, "enumerate supported protocol versions instead of cipher suites")
	proxyAddr := flag.String("proxy", "", "SOCKS5 proxy address")
	flag.Parse()

	target := flag.Arg(0)
	if target == "" {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] host[:port]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	protocol, ok := protocolsByName[*protocolName]
	if !ok {
		fmt.Fprintln(os.Stderr, "err: unknown protocol", *protocolName)
		os.Exit(2)
	}

	opts := []hellotls.Option{
		hellotls.WithProtocol(protocol),
		hellotls.WithPort(*port),
		hellotls.WithWorkers(*workers),
		hellotls.WithTimeout(*timeout),
	}
	if *proxyAddr != "" {
		opts = append(opts, hellotls.WithProxy(*proxyAddr))
	}

	if *versions {
		supported, err := hellotls.EnumerateProtocols(context.Background(), target, opts...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "err:", err)
			os.Exit(1)
		}
		for _, p := range supported {
			fmt.Println(p)
		}
		return
	}

	suites, err := hellotls.EnumerateCipherSuites(context.Background(), target, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "err:", err)
		os.Exit(1)
	}
	for _, suite := range suites {
		fmt.Println(suite)
	}
}
