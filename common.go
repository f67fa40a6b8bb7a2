package hellotls

import (
	"fmt"
)

type recordType byte

const (
	recordTypeAlert     recordType = 21
	recordTypeHandshake recordType = 22
)

type handshakeType byte

const (
	handshakeTypeClientHello handshakeType = 1
	handshakeTypeServerHello handshakeType = 2
)

// Protocol is a TLS protocol version, identified by its two-byte wire code.
type Protocol uint16

const (
	SSLv3 Protocol = 0x0300
	TLS10 Protocol = 0x0301
	TLS11 Protocol = 0x0302
	TLS12 Protocol = 0x0303
	TLS13 Protocol = 0x0304
)

// AllProtocols lists the known protocol versions, oldest first.
var AllProtocols = []Protocol{SSLv3, TLS10, TLS11, TLS12, TLS13}

var protocolNames = map[Protocol]string{
	SSLv3: "SSLv3",
	TLS10: "TLS 1.0",
	TLS11: "TLS 1.1",
	TLS12: "TLS 1.2",
	TLS13: "TLS 1.3",
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("protocol(0x%04x)", uint16(p))
}

func protocolFromWire(code uint16) (Protocol, error) {
	p := Protocol(code)
	if _, ok := protocolNames[p]; !ok {
		return 0, fmt.Errorf("tls.decode: Unknown protocol version 0x%04x", code)
	}
	return p, nil
}
