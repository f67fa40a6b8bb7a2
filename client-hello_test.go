package hellotls

import (
	"bytes"
	"testing"
)

func u16(b []byte) int { return int(b[0])<<8 | int(b[1]) }
func u24(b []byte) int { return int(b[0])<<16 | int(b[1])<<8 | int(b[2]) }

// walkExtensions splits an encoded extension block into its typed
// payloads, preserving order.
func walkExtensions(t *testing.T, data []byte) ([]helloExtensionType, map[helloExtensionType][]byte) {
	t.Helper()

	order := []helloExtensionType{}
	payloads := map[helloExtensionType][]byte{}
	for len(data) > 0 {
		assert(t, len(data) >= 4, "Truncated extension header")
		extensionType := helloExtensionType(u16(data[0:2]))
		length := u16(data[2:4])
		assert(t, len(data) >= 4+length, "Truncated extension payload")

		order = append(order, extensionType)
		payloads[extensionType] = data[4 : 4+length]
		data = data[4+length:]
	}
	return order, payloads
}

func marshalHello(t *testing.T, ch ClientHello) []byte {
	t.Helper()
	record, err := ch.Marshal()
	assertNotError(t, err, "Failed to marshal ClientHello")
	return record
}

func TestClientHelloRecordLayout(t *testing.T) {
	record := marshalHello(t, ClientHello{
		ServerName:   "example.com",
		Protocols:    AllProtocols,
		CipherSuites: AllCipherSuites,
	})

	// Record header: handshake, legacy version TLS 1.0, length
	assertEquals(t, record[0], byte(recordTypeHandshake))
	assertEquals(t, u16(record[1:3]), 0x0301)
	assertEquals(t, u16(record[3:5]), len(record)-5)

	// Handshake header: client hello, uint24 length
	assertEquals(t, record[5], byte(handshakeTypeClientHello))
	assertEquals(t, u24(record[6:9]), len(record)-9)

	// Body: legacy version pinned to TLS 1.2 despite TLS 1.3 on offer
	body := record[9:]
	assertEquals(t, u16(body[0:2]), int(TLS12))
	assertByteEquals(t, body[2:34], helloRandom[:])
	assertEquals(t, body[34], byte(32))
	assertByteEquals(t, body[35:67], helloSessionID[:])

	// Cipher suite vector
	suitesLen := u16(body[67:69])
	assertEquals(t, suitesLen, 2*len(AllCipherSuites))
	suites := body[69 : 69+suitesLen]
	for i, suite := range AllCipherSuites {
		assertEquals(t, u16(suites[2*i:2*i+2]), int(suite))
	}

	// Compression methods: null only
	rest := body[69+suitesLen:]
	assertByteEquals(t, rest[0:2], []byte{0x01, 0x00})

	// Extension block fills the remainder exactly
	assertEquals(t, u16(rest[2:4]), len(rest)-4)
	order, payloads := walkExtensions(t, rest[4:])

	assertDeepEquals(t, order, []helloExtensionType{
		extensionTypeServerName,
		extensionTypeStatusRequest,
		extensionTypeECPointFormats,
		extensionTypeSupportedGroups,
		extensionTypeSessionTicket,
		extensionTypeEncryptThenMAC,
		extensionTypeExtendedMasterSecret,
		extensionTypeSignatureAlgorithms,
		extensionTypeRenegotiationInfo,
		extensionTypeSCT,
		extensionTypeSupportedVersions,
		extensionTypePSKKeyExchangeModes,
		extensionTypeKeyShare,
	})

	sni := append(unhex("000e00000b"), []byte("example.com")...)
	assertByteEquals(t, payloads[extensionTypeServerName], sni)
	assertByteEquals(t, payloads[extensionTypeStatusRequest], unhex("0100000000"))
	assertByteEquals(t, payloads[extensionTypeECPointFormats], unhex("03000102"))
	assertByteEquals(t, payloads[extensionTypeSupportedGroups],
		unhex("0014001d0017001e001800190100010101020103"+"0104"))
	assertByteEquals(t, payloads[extensionTypeSessionTicket], []byte{})
	assertByteEquals(t, payloads[extensionTypeEncryptThenMAC], []byte{})
	assertByteEquals(t, payloads[extensionTypeExtendedMasterSecret], []byte{})
	assertByteEquals(t, payloads[extensionTypeSignatureAlgorithms],
		unhex("0020040305030603080708080809080a080b08040805080604010501060102010203"))
	assertByteEquals(t, payloads[extensionTypeRenegotiationInfo], unhex("00"))
	assertByteEquals(t, payloads[extensionTypeSCT], []byte{})
	assertByteEquals(t, payloads[extensionTypeSupportedVersions],
		unhex("0a03000301030203030304"))
	assertByteEquals(t, payloads[extensionTypePSKKeyExchangeModes], unhex("0101"))
	assertByteEquals(t, payloads[extensionTypeKeyShare],
		append(unhex("0024001d0020"), keyShareX25519[:]...))
}

func TestClientHelloVersionPinning(t *testing.T) {
	cases := []struct {
		protocols     []Protocol
		recordVersion int
		bodyVersion   int
	}{
		{[]Protocol{SSLv3}, 0x0300, 0x0300},
		{[]Protocol{TLS10}, 0x0301, 0x0301},
		{[]Protocol{TLS11}, 0x0301, 0x0302},
		{[]Protocol{TLS12}, 0x0301, 0x0303},
		{[]Protocol{TLS13}, 0x0301, 0x0303},
		{[]Protocol{TLS10, TLS13}, 0x0301, 0x0303},
	}

	for _, c := range cases {
		record := marshalHello(t, ClientHello{
			ServerName:   "example.com",
			Protocols:    c.protocols,
			CipherSuites: AllCipherSuites,
		})
		assertEquals(t, u16(record[1:3]), c.recordVersion)
		assertEquals(t, u16(record[9:11]), c.bodyVersion)
	}
}

func TestClientHelloVersionExtensions(t *testing.T) {
	// Without TLS 1.3 on offer, the 1.3-only extensions must be absent.
	record := marshalHello(t, ClientHello{
		ServerName:   "example.com",
		Protocols:    []Protocol{TLS12},
		CipherSuites: AllCipherSuites,
	})
	order, _ := walkExtensions(t, extensionBlock(t, record))
	for _, extensionType := range order {
		assert(t, extensionType != extensionTypeSupportedVersions, "supported_versions offered without TLS 1.3")
		assert(t, extensionType != extensionTypePSKKeyExchangeModes, "psk_key_exchange_modes offered without TLS 1.3")
		assert(t, extensionType != extensionTypeKeyShare, "key_share offered without TLS 1.3")
	}
}

// extensionBlock locates the extension bytes inside an encoded record.
func extensionBlock(t *testing.T, record []byte) []byte {
	t.Helper()
	body := record[9:]
	suitesLen := u16(body[67:69])
	rest := body[69+suitesLen:]
	return rest[4:]
}

func TestClientHelloUnicodeServerName(t *testing.T) {
	record := marshalHello(t, ClientHello{
		ServerName:   "bücher.example",
		Protocols:    []Protocol{TLS13},
		CipherSuites: AllCipherSuites,
	})
	_, payloads := walkExtensions(t, extensionBlock(t, record))
	assert(t, bytes.Contains(payloads[extensionTypeServerName], []byte("xn--bcher-kva.example")),
		"Unicode server name was not converted to punycode")
}

func TestClientHelloInvariants(t *testing.T) {
	_, err := ClientHello{
		ServerName:   "example.com",
		Protocols:    []Protocol{},
		CipherSuites: AllCipherSuites,
	}.Marshal()
	assertError(t, err, "Marshaled a ClientHello with no protocol versions")

	_, err = ClientHello{
		ServerName:   "example.com",
		Protocols:    []Protocol{TLS13},
		CipherSuites: []CipherSuite{},
	}.Marshal()
	assertError(t, err, "Marshaled a ClientHello with no cipher suites")
}
