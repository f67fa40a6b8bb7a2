package hellotls

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/net/idna"
)

type helloExtensionType uint16

const (
	extensionTypeServerName           helloExtensionType = 0
	extensionTypeStatusRequest        helloExtensionType = 5
	extensionTypeSupportedGroups      helloExtensionType = 10
	extensionTypeECPointFormats       helloExtensionType = 11
	extensionTypeSignatureAlgorithms  helloExtensionType = 13
	extensionTypeSCT                  helloExtensionType = 18
	extensionTypeEncryptThenMAC       helloExtensionType = 22
	extensionTypeExtendedMasterSecret helloExtensionType = 23
	extensionTypeSessionTicket        helloExtensionType = 35
	extensionTypeSupportedVersions    helloExtensionType = 43
	extensionTypePSKKeyExchangeModes  helloExtensionType = 45
	extensionTypeKeyShare             helloExtensionType = 51
	extensionTypeRenegotiationInfo    helloExtensionType = 0xff01
)

const (
	compressionMethodNull = 0
	sniTypeHostName       = 0
	statusTypeOCSP        = 1
	pskModeDHE            = 1
	groupX25519           = 0x001d
)

// The handshake is never completed, so the random and session ID need
// not be unpredictable.  Fixed values keep the encoding reproducible.
var helloRandom = [32]byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
	0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
}

var helloSessionID = [32]byte{
	0xe0, 0xe1, 0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7,
	0xe8, 0xe9, 0xea, 0xeb, 0xec, 0xed, 0xee, 0xef,
	0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7,
	0xf8, 0xf9, 0xfa, 0xfb, 0xfc, 0xfd, 0xfe, 0xff,
}

// Well-formed but not secret: the x25519 share offered in key_share.
// Servers insist on a plausible share before answering a TLS 1.3
// ClientHello, even though this probe abandons the connection after the
// ServerHello.
var keyShareX25519 = [32]byte{
	0x35, 0x80, 0x72, 0xd6, 0x36, 0x58, 0x80, 0xd1,
	0xae, 0xea, 0x32, 0x9a, 0xdf, 0x91, 0x21, 0x38,
	0x38, 0x51, 0xed, 0x21, 0xa2, 0x8e, 0x3b, 0x75,
	0xe9, 0x65, 0xd0, 0xd2, 0xcd, 0x16, 0x62, 0x54,
}

var defaultPointFormats = []byte{
	0x00, // uncompressed
	0x01, // ansiX962_compressed_prime
	0x02, // ansiX962_compressed_char2
}

var defaultGroups = []uint16{
	0x001d, // x25519
	0x0017, // secp256r1
	0x001e, // x448
	0x0018, // secp384r1
	0x0019, // secp521r1
	0x0100, // ffdhe2048
	0x0101, // ffdhe3072
	0x0102, // ffdhe4096
	0x0103, // ffdhe6144
	0x0104, // ffdhe8192
}

var defaultSignatureSchemes = []uint16{
	0x0403, // ecdsa_secp256r1_sha256
	0x0503, // ecdsa_secp384r1_sha384
	0x0603, // ecdsa_secp521r1_sha512
	0x0807, // ed25519
	0x0808, // ed448
	0x0809, // rsa_pss_pss_sha256
	0x080a, // rsa_pss_pss_sha384
	0x080b, // rsa_pss_pss_sha512
	0x0804, // rsa_pss_rsae_sha256
	0x0805, // rsa_pss_rsae_sha384
	0x0806, // rsa_pss_rsae_sha512
	0x0401, // rsa_pkcs1_sha256
	0x0501, // rsa_pkcs1_sha384
	0x0601, // rsa_pkcs1_sha512
	0x0201, // rsa_pkcs1_sha1
	0x0203, // ecdsa_sha1
}

// struct {
//     ProtocolVersion legacy_version;
//     Random random;
//     opaque legacy_session_id<0..32>;
//     CipherSuite cipher_suites<2..2^16-2>;
//     opaque legacy_compression_methods<1..2^8-1>;
//     Extension extensions<8..2^16-1>;
// } ClientHello;
type ClientHello struct {
	ServerName   string
	Protocols    []Protocol
	CipherSuites []CipherSuite
}

// Marshal encodes the ClientHello as a complete handshake record, ready
// to be written to the wire.
//
// The legacy version fields advertise at most TLS 1.2 even when TLS 1.3
// is requested; middleboxes mishandle higher codes, so TLS 1.3 is
// negotiated only through the supported_versions extension.
func (ch ClientHello) Marshal() ([]byte, error) {
	if len(ch.Protocols) == 0 {
		return nil, fmt.Errorf("tls.clienthello: No protocol versions provided")
	}
	if len(ch.CipherSuites) == 0 {
		return nil, fmt.Errorf("tls.clienthello: No cipher suites provided")
	}

	serverName, err := idna.ToASCII(ch.ServerName)
	if err != nil {
		return nil, fmt.Errorf("tls.clienthello: Server name %q not encodable: %v", ch.ServerName, err)
	}

	legacyVersion := maxProtocol(ch.Protocols)
	if legacyVersion == TLS13 {
		legacyVersion = TLS12
	}
	recordVersion := TLS10
	if legacyVersion == SSLv3 {
		recordVersion = SSLv3
	}

	var b cryptobyte.Builder
	b.AddUint8(uint8(recordTypeHandshake))
	b.AddUint16(uint16(recordVersion))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(handshakeTypeClientHello))
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(uint16(legacyVersion))
			b.AddBytes(helloRandom[:])
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(helloSessionID[:])
			})
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				for _, suite := range ch.CipherSuites {
					b.AddUint16(uint16(suite))
				}
			})
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddUint8(compressionMethodNull)
			})
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				ch.addExtensions(b, serverName)
			})
		})
	})
	return b.Bytes()
}

// addExtensions emits the extension blocks in their fixed order.
func (ch ClientHello) addExtensions(b *cryptobyte.Builder, serverName string) {
	// struct {
	//     NameType name_type;
	//     opaque HostName<1..2^16-1>;
	// } ServerName;
	addExtension(b, extensionTypeServerName, func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint8(sniTypeHostName)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes([]byte(serverName))
			})
		})
	})

	// OCSP status request with empty responder list and extensions.
	addExtension(b, extensionTypeStatusRequest, func(b *cryptobyte.Builder) {
		b.AddUint8(statusTypeOCSP)
		b.AddUint16(0)
		b.AddUint16(0)
	})

	addExtension(b, extensionTypeECPointFormats, func(b *cryptobyte.Builder) {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(defaultPointFormats)
		})
	})

	addExtension(b, extensionTypeSupportedGroups, func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, group := range defaultGroups {
				b.AddUint16(group)
			}
		})
	})

	addExtension(b, extensionTypeSessionTicket, nil)
	addExtension(b, extensionTypeEncryptThenMAC, nil)
	addExtension(b, extensionTypeExtendedMasterSecret, nil)

	addExtension(b, extensionTypeSignatureAlgorithms, func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, scheme := range defaultSignatureSchemes {
				b.AddUint16(scheme)
			}
		})
	})

	// Empty renegotiated_connection (TLS 1.2 and lower).
	addExtension(b, extensionTypeRenegotiationInfo, func(b *cryptobyte.Builder) {
		b.AddUint8(0)
	})

	addExtension(b, extensionTypeSCT, nil)

	if !containsProtocol(ch.Protocols, TLS13) {
		return
	}

	addExtension(b, extensionTypeSupportedVersions, func(b *cryptobyte.Builder) {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, p := range ch.Protocols {
				b.AddUint16(uint16(p))
			}
		})
	})

	// Servers refuse a TLS 1.3 ClientHello without these two.
	addExtension(b, extensionTypePSKKeyExchangeModes, func(b *cryptobyte.Builder) {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint8(pskModeDHE)
		})
	})

	// struct {
	//     NamedGroup group;
	//     opaque key_exchange<1..2^16-1>;
	// } KeyShareEntry;
	addExtension(b, extensionTypeKeyShare, func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(groupX25519)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(keyShareX25519[:])
			})
		})
	})
}

// struct {
//     ExtensionType extension_type;
//     opaque extension_data<0..2^16-1>;
// } Extension;
func addExtension(b *cryptobyte.Builder, extensionType helloExtensionType, body cryptobyte.BuilderContinuation) {
	b.AddUint16(uint16(extensionType))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		if body != nil {
			body(b)
		}
	})
}

func maxProtocol(protocols []Protocol) Protocol {
	max := protocols[0]
	for _, p := range protocols[1:] {
		if p > max {
			max = p
		}
	}
	return max
}

func containsProtocol(protocols []Protocol, target Protocol) bool {
	for _, p := range protocols {
		if p == target {
			return true
		}
	}
	return false
}
