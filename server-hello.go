package hellotls

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// ServerAlertError is returned when the server answers a ClientHello
// with an alert record instead of a ServerHello.
type ServerAlertError struct {
	Protocol    Protocol
	Level       AlertLevel
	Description Alert
}

func (e *ServerAlertError) Error() string {
	return fmt.Sprintf("tls.serverhello: Server alert (%s): %s: %s", e.Protocol, e.Level, e.Description)
}

// Magic server random signaling a HelloRetryRequest (RFC 8446, 4.1.3).
var helloRetryRequestRandom = [32]byte{
	0xcf, 0x21, 0xad, 0x74, 0xe5, 0x9a, 0x61, 0x11,
	0xbe, 0x1d, 0x8c, 0x02, 0x1e, 0x65, 0xb8, 0x91,
	0xc2, 0xa2, 0x11, 0x16, 0x7a, 0xbb, 0x8c, 0x5e,
	0x07, 0x9e, 0x09, 0xe2, 0xc8, 0xa8, 0x33, 0x9c,
}

// struct {
//     ProtocolVersion legacy_version;
//     Random random;
//     opaque legacy_session_id_echo<0..32>;
//     CipherSuite cipher_suite;
//     ...
// } ServerHello;
type ServerHello struct {
	// Protocol is read from the legacy ServerHello.version field.  When
	// the server negotiates TLS 1.3 the true version is carried in a
	// supported_versions extension that this parser does not read, so
	// Protocol never reports above TLS 1.2.  Enumeration iterates by
	// requested version, so it never consults this field.
	Protocol Protocol

	// CipherSuite is the single suite the server accepted.
	CipherSuite CipherSuite

	// IsRetryRequest marks a HelloRetryRequest, recognized by its magic
	// random value.
	IsRetryRequest bool
}

var serverHelloVersions = []Protocol{TLS10, TLS11, TLS12}

func isServerHelloVersion(p Protocol) bool {
	for _, v := range serverHelloVersions {
		if p == v {
			return true
		}
	}
	return false
}

// ParseServerHello classifies a raw server response as either a
// ServerHello or an alert.  An alert is returned as *ServerAlertError;
// anything else that fails to parse is a plain error.  Bytes past the
// accepted cipher suite are ignored.
func ParseServerHello(data []byte) (*ServerHello, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("tls.serverhello: Empty response")
	}
	if bytes.HasPrefix(data, []byte("HTTP/")) {
		return nil, fmt.Errorf("tls.serverhello: Server speaks plaintext HTTP, not TLS")
	}

	s := cryptobyte.String(data)

	var contentType uint8
	if !s.ReadUint8(&contentType) {
		return nil, fmt.Errorf("tls.serverhello: Truncated record header")
	}

	if recordType(contentType) == recordTypeAlert {
		return nil, parseAlert(&s)
	}
	if recordType(contentType) != recordTypeHandshake {
		return nil, fmt.Errorf("tls.serverhello: Unexpected record type %d", contentType)
	}

	var legacyRecordVersion, recordLength uint16
	if !s.ReadUint16(&legacyRecordVersion) || !s.ReadUint16(&recordLength) {
		return nil, fmt.Errorf("tls.serverhello: Truncated record header")
	}
	recordProtocol, err := protocolFromWire(legacyRecordVersion)
	if err != nil {
		return nil, err
	}
	if !isServerHelloVersion(recordProtocol) {
		return nil, fmt.Errorf("tls.serverhello: Unexpected record version %s", recordProtocol)
	}

	var msgType uint8
	var body cryptobyte.String
	if !s.ReadUint8(&msgType) || !s.ReadUint24LengthPrefixed(&body) {
		return nil, fmt.Errorf("tls.serverhello: Truncated handshake header")
	}
	if handshakeType(msgType) != handshakeTypeServerHello {
		return nil, fmt.Errorf("tls.serverhello: Unexpected handshake type %d", msgType)
	}

	var serverVersion uint16
	if !body.ReadUint16(&serverVersion) {
		return nil, fmt.Errorf("tls.serverhello: Truncated ServerHello")
	}
	protocol, err := protocolFromWire(serverVersion)
	if err != nil {
		return nil, err
	}
	if !isServerHelloVersion(protocol) {
		return nil, fmt.Errorf("tls.serverhello: Unexpected server version %s", protocol)
	}

	var random []byte
	if !body.ReadBytes(&random, 32) {
		return nil, fmt.Errorf("tls.serverhello: Truncated server random")
	}

	var sessionID cryptobyte.String
	if !body.ReadUint8LengthPrefixed(&sessionID) {
		return nil, fmt.Errorf("tls.serverhello: Truncated session ID")
	}
	if len(sessionID) != 0 && len(sessionID) != 32 {
		return nil, fmt.Errorf("tls.serverhello: Unexpected session ID length %d", len(sessionID))
	}

	var suiteCode uint16
	if !body.ReadUint16(&suiteCode) {
		return nil, fmt.Errorf("tls.serverhello: Truncated cipher suite")
	}
	suite, err := cipherSuiteFromWire(suiteCode)
	if err != nil {
		return nil, err
	}

	return &ServerHello{
		Protocol:       protocol,
		CipherSuite:    suite,
		IsRetryRequest: bytes.Equal(random, helloRetryRequestRandom[:]),
	}, nil
}

// struct {
//     AlertLevel level;
//     AlertDescription description;
// } Alert;
func parseAlert(s *cryptobyte.String) error {
	var version, length uint16
	var level, description uint8
	if !s.ReadUint16(&version) || !s.ReadUint16(&length) ||
		!s.ReadUint8(&level) || !s.ReadUint8(&description) {
		return fmt.Errorf("tls.serverhello: Truncated alert record")
	}

	protocol, err := protocolFromWire(version)
	if err != nil {
		return err
	}
	alertLevel, err := alertLevelFromWire(level)
	if err != nil {
		return err
	}
	alert, err := alertFromWire(description)
	if err != nil {
		return err
	}

	return &ServerAlertError{
		Protocol:    protocol,
		Level:       alertLevel,
		Description: alert,
	}
}
