// Package netaddr implements the wire address model: a 64-byte address
// buffer that can hold an IPv4, IPv6, Tor v3 (.onion) or I2P (.b32.i2p)
// address, serialized either in a legacy 16-byte form or an extended
// 64-byte form depending on peer protocol version.
//
// Grounded on original_source/src/network/netbase.{h,cpp} (the CNetAddr /
// CService class and its IMPLEMENT_SERIALIZE dual-wire-format policy,
// IPIsTorV3 / MakeTorV3Address / GetTorV3Checksum) and on the teacher's
// wire.NetAddress legacy/extended serialization convention.
package netaddr

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/junaeth-project/qposd/crypto"
)

// IPSize is the width of the internal address buffer. Versions before
// IP64Version only ever populate the first 16 bytes of it (a plain IPv6 or
// IPv4-mapped-IPv6 address); Tor v3 and I2P addresses need the full width.
const IPSize = 64

// IP64MarkerSize is the width of the trailing marker Unmarshal stamps into
// the buffer of an address read in the legacy (< IP64Version) 16-byte wire
// format, so that "really only 16 bytes" can be told apart from "zero
// padding of a 64-byte address". The marker itself is never written to the
// wire.
const IP64MarkerSize = 20

// ip64MarkerStart is the offset of the trailing marker within the buffer.
const ip64MarkerStart = IPSize - IP64MarkerSize

// IP64Version is the minimum peer protocol version that understands the
// extended 64-byte address encoding.
const IP64Version = 64200

// onionV3PubkeySize, onionCatBytes and onionV3Bytes describe the byte
// layout OnionCat packs into the address buffer for a Tor v3 address:
// 6-byte OnionCat prefix, 32-byte ed25519 public key, 2-byte checksum,
// 1-byte version.
const (
	onionV3PubkeySize = 32
	onionCatBytes     = 6
	onionV3Bytes      = onionCatBytes + onionV3PubkeySize + 3
	onionAddressBytes = onionV3PubkeySize + 3
	garlicPubkeySize  = 32
	garlicCatBytes    = 6
	garlicAddrBytes   = garlicPubkeySize
)

const strOnionSuffix = ".onion"
const strGarlicSuffix = ".oc.b32.i2p"

var pchOnionCat = [onionCatBytes]byte{0xFD, 0x87, 0xD8, 0x7E, 0xEB, 0x43}
var pchGarlicCat = [garlicCatBytes]byte{0xFD, 0x60, 0xDB, 0x4D, 0xDD, 0xB5}

// pchIPv4 is the RFC 4291 IPv4-in-IPv6 mapped-address prefix.
var pchIPv4 = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF}

// pchIP64Marker is the fixed byte string Unmarshal stamps at ip64MarkerStart
// when it reads an address in the legacy 16-byte form, so IsMarkedIP64 can
// recognize such an address.
var pchIP64Marker = [IP64MarkerSize]byte{
	0x28, 0x5c, 0x59, 0xde, 0x91,
	0x18, 0x9e, 0xca, 0xc2, 0x81,
	0x47, 0x8a, 0xf7, 0x96, 0x7f,
	0x1b, 0xe5, 0x8a, 0xee, 0xf9,
}

// Network classifies an Addr's routable address family.
type Network int

const (
	NetUnroutable Network = iota
	NetIPv4
	NetIPv6
	NetTor
	NetI2P
)

func (n Network) String() string {
	switch n {
	case NetIPv4:
		return "ipv4"
	case NetIPv6:
		return "ipv6"
	case NetTor:
		return "tor"
	case NetI2P:
		return "i2p"
	default:
		return "unroutable"
	}
}

// Reachability is the ordinal GetReachabilityFrom resolves to: how well a
// candidate address would serve a peer on a given network.
type Reachability int

const (
	ReachUnreachable Reachability = iota
	ReachDefault
	ReachTeredo
	ReachIPv6Weak
	ReachIPv4
	ReachIPv6Strong
	ReachPrivate
)

// Addr is the 64-byte address buffer. The zero value is the unspecified
// IPv6 address (::).
type Addr struct {
	ip [IPSize]byte
}

// FromIP builds an Addr from a net.IP (v4 or v6).
func FromIP(ip net.IP) Addr {
	var a Addr
	if v4 := ip.To4(); v4 != nil {
		copy(a.ip[0:12], pchIPv4[:])
		copy(a.ip[12:16], v4)
		return a
	}
	if v6 := ip.To16(); v6 != nil {
		copy(a.ip[0:16], v6)
	}
	return a
}

// GetByte returns byte n of the first 16 bytes of the buffer (the plain
// IPv4/IPv6 view), counted from the end: GetByte(15) is the first byte and
// GetByte(3) the first IPv4 octet, matching the original's indexing used
// throughout the RFC range checks.
func (a Addr) GetByte(n int) byte {
	return a.ip[15-n]
}

// IsIPv4 reports whether the address is an IPv4-mapped-IPv6 address.
func (a Addr) IsIPv4() bool {
	return bytes.Equal(a.ip[0:12], pchIPv4[:])
}

// IsTor reports whether the address carries the OnionCat prefix (any Tor
// address, v2 placeholder or v3).
func (a Addr) IsTor() bool {
	return bytes.Equal(a.ip[0:onionCatBytes], pchOnionCat[:])
}

// IsI2P reports whether the address carries the garlic-cat prefix.
func (a Addr) IsI2P() bool {
	return bytes.Equal(a.ip[0:garlicCatBytes], pchGarlicCat[:])
}

// IsIPv6 reports whether the address is a plain IPv6 address (neither
// IPv4-mapped, Tor nor I2P).
func (a Addr) IsIPv6() bool {
	return !a.IsIPv4() && !a.IsTor() && !a.IsI2P()
}

// IsMarkedIP64 reports whether the trailing marker is present, i.e. this
// buffer was reconstructed from a legacy 16-byte wire encoding.
func (a Addr) IsMarkedIP64() bool {
	return bytes.Equal(a.ip[ip64MarkerStart:ip64MarkerStart+IP64MarkerSize], pchIP64Marker[:])
}

// IsRFC1918 reports a private-use IPv4 address (10/8, 172.16/12, 192.168/16).
func (a Addr) IsRFC1918() bool {
	return a.IsIPv4() && (a.GetByte(3) == 10 ||
		(a.GetByte(3) == 192 && a.GetByte(2) == 168) ||
		(a.GetByte(3) == 172 && a.GetByte(2) >= 16 && a.GetByte(2) <= 31))
}

// IsRFC3927 reports an IPv4 link-local address (169.254/16).
func (a Addr) IsRFC3927() bool {
	return a.IsIPv4() && a.GetByte(3) == 169 && a.GetByte(2) == 254
}

// IsRFC3849 reports an IPv6 documentation address (2001:db8::/32).
func (a Addr) IsRFC3849() bool {
	return a.GetByte(15) == 0x20 && a.GetByte(14) == 0x01 &&
		a.GetByte(13) == 0x0D && a.GetByte(12) == 0xB8
}

// IsRFC3964 reports a 6to4 tunnel address (2002::/16).
func (a Addr) IsRFC3964() bool {
	return a.GetByte(15) == 0x20 && a.GetByte(14) == 0x02
}

// IsRFC6052 reports an IPv4/IPv6 translation prefix (64:ff9b::/96).
func (a Addr) IsRFC6052() bool {
	pfx := [12]byte{0, 0x64, 0xFF, 0x9B, 0, 0, 0, 0, 0, 0, 0, 0}
	return bytes.Equal(a.ip[0:12], pfx[:])
}

// IsRFC4380 reports a Teredo tunnel address (2001::/32).
func (a Addr) IsRFC4380() bool {
	return a.GetByte(15) == 0x20 && a.GetByte(14) == 0x01 &&
		a.GetByte(13) == 0 && a.GetByte(12) == 0
}

// IsRFC4862 reports an IPv6 link-local address (fe80::/64).
func (a Addr) IsRFC4862() bool {
	pfx := [8]byte{0xFE, 0x80, 0, 0, 0, 0, 0, 0}
	return bytes.Equal(a.ip[0:8], pfx[:])
}

// IsRFC4193 reports an IPv6 unique-local address (fc00::/7), the same
// range Tor v3 and I2P addresses are packed into.
func (a Addr) IsRFC4193() bool {
	return a.GetByte(15)&0xFE == 0xFC
}

// IsRFC6145 reports an IPv4-translated address (::ffff:0:0:0/96).
func (a Addr) IsRFC6145() bool {
	pfx := [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF, 0, 0}
	return bytes.Equal(a.ip[0:12], pfx[:])
}

// IsRFC4843 reports an ORCHID address (2001:10::/28).
func (a Addr) IsRFC4843() bool {
	return a.GetByte(15) == 0x20 && a.GetByte(14) == 0x01 &&
		a.GetByte(13) == 0x00 && a.GetByte(12)&0xF0 == 0x10
}

// IsLocal reports a loopback address, IPv4 or IPv6.
func (a Addr) IsLocal() bool {
	if a.IsIPv4() && (a.GetByte(3) == 127 || a.GetByte(3) == 0) {
		return true
	}
	var v6loop [16]byte
	v6loop[15] = 1
	return bytes.Equal(a.ip[0:16], v6loop[:])
}

// IsMulticast reports an IPv4 or IPv6 multicast address.
func (a Addr) IsMulticast() bool {
	return (a.IsIPv4() && a.GetByte(3)&0xF0 == 0xE0) || a.GetByte(15) == 0xFF
}

// IsTorV3 reports whether the address is a well-formed Tor v3 address: the
// OnionCat prefix, version byte 0x03, and a checksum over the embedded
// ed25519 public key that matches.
func (a Addr) IsTorV3() bool {
	if !a.IsTor() {
		return false
	}
	if a.ip[onionCatBytes+onionV3PubkeySize+2] != 0x03 {
		return false
	}
	digest := torV3Checksum(a.ip[onionCatBytes : onionCatBytes+onionV3PubkeySize])
	return a.ip[onionCatBytes+onionV3PubkeySize] == digest[0] &&
		a.ip[onionCatBytes+onionV3PubkeySize+1] == digest[1]
}

// IsTorV3Placeholder reports a zero-filled Tor v2-range slot that was
// reserved for, but never given, a v3 address.
func (a Addr) IsTorV3Placeholder() bool {
	if !a.IsTor() {
		return false
	}
	for i := onionCatBytes; i < onionCatBytes+7; i++ {
		if a.ip[i] != 0 {
			return false
		}
	}
	return a.ip[15] == 3
}

// IsValid rejects addresses that cannot correspond to any real peer:
// unspecified, documentation ranges, or (for pre-IP64Version peers) Tor.
func (a Addr) IsValid(peerVersion int32) bool {
	if a.IsTor() {
		return peerVersion >= IP64Version
	}
	for i := 16; i < ip64MarkerStart; i++ {
		if a.ip[i] != 0 {
			return false
		}
	}
	var none16 [16]byte
	if bytes.Equal(a.ip[0:16], none16[:]) {
		return false
	}
	if a.IsRFC3849() {
		return false
	}
	if a.IsIPv4() {
		if a.ip[12] == 0xFF && a.ip[13] == 0xFF && a.ip[14] == 0xFF && a.ip[15] == 0xFF {
			return false
		}
		if a.ip[12] == 0 && a.ip[13] == 0 && a.ip[14] == 0 && a.ip[15] == 0 {
			return false
		}
	}
	return true
}

// IsRoutable reports whether the address is both valid and outside every
// private/reserved range (Tor v3 and I2P are carved back in: they live in
// the RFC4193 range but are routable over their own overlay network).
func (a Addr) IsRoutable() bool {
	return a.IsValid(IP64Version) && !(a.IsRFC1918() || a.IsRFC3927() || a.IsRFC4862() ||
		(a.IsRFC4193() && !a.IsTorV3() && !a.IsI2P()) ||
		a.IsRFC4843() || a.IsLocal())
}

// GetNetwork classifies the address's routable network.
func (a Addr) GetNetwork() Network {
	if !a.IsRoutable() {
		return NetUnroutable
	}
	if a.IsIPv4() {
		return NetIPv4
	}
	if a.IsTorV3() {
		return NetTor
	}
	if a.IsI2P() {
		return NetI2P
	}
	return NetIPv6
}

// ToStringIP renders the address: dotted-quad for IPv4, the textual .onion
// form for Tor v3, the textual .b32.i2p form for I2P, otherwise the
// standard IPv6 textual form.
func (a Addr) ToStringIP() string {
	if a.IsTorV3() {
		return strings.ToLower(base32Encode(a.ip[onionCatBytes:onionCatBytes+onionAddressBytes])) + strOnionSuffix
	}
	if a.IsI2P() {
		return strings.ToLower(base32Encode(a.ip[garlicCatBytes:garlicCatBytes+garlicAddrBytes])) + strGarlicSuffix
	}
	if a.IsIPv4() {
		return net.IP(a.ip[12:16]).String()
	}
	return net.IP(a.ip[0:16]).String()
}

func (a Addr) String() string {
	return a.ToStringIP()
}

// GetGroup returns a peer-diversity bucket key: the /16 for IPv4, the /32
// for IPv6, or a single-byte tag for Tor/I2P/unroutable addresses, used by
// the address manager to spread outbound connections across networks.
func (a Addr) GetGroup() []byte {
	net := a.GetNetwork()
	var vchRet []byte
	switch net {
	case NetIPv4:
		vchRet = append(vchRet, byte(NetIPv4))
		vchRet = append(vchRet, a.ip[12], a.ip[13])
	case NetIPv6:
		vchRet = append(vchRet, byte(NetIPv6))
		vchRet = append(vchRet, a.ip[0:4]...)
	case NetTor:
		vchRet = append(vchRet, byte(NetTor))
		vchRet = append(vchRet, a.ip[onionCatBytes:onionCatBytes+4]...)
	case NetI2P:
		vchRet = append(vchRet, byte(NetI2P))
		vchRet = append(vchRet, a.ip[garlicCatBytes:garlicCatBytes+4]...)
	default:
		vchRet = append(vchRet, byte(NetUnroutable))
	}
	return vchRet
}

// GetReachabilityFrom scores how well a reaches a peer whose address is
// partner (nil means an unknown/anonymous partner).
func (a Addr) GetReachabilityFrom(partner *Addr) Reachability {
	if !a.IsRoutable() {
		return ReachUnreachable
	}

	ourNet := a.extNetwork()
	var theirNet int
	if partner == nil {
		theirNet = -1
	} else {
		theirNet = partner.extNetwork()
	}

	fTunnel := a.IsRFC3964() || a.IsRFC6052() || a.IsRFC6145()

	switch theirNet {
	case int(NetIPv4):
		if ourNet == int(NetIPv4) {
			return ReachIPv4
		}
		return ReachDefault
	case int(NetIPv6):
		switch ourNet {
		case extTeredo:
			return ReachTeredo
		case int(NetIPv4):
			return ReachIPv4
		case int(NetIPv6):
			if fTunnel {
				return ReachIPv6Weak
			}
			return ReachIPv6Strong
		default:
			return ReachDefault
		}
	case int(NetTor):
		switch ourNet {
		case int(NetIPv4):
			return ReachIPv4
		case int(NetTor):
			return ReachPrivate
		default:
			return ReachDefault
		}
	case int(NetI2P):
		switch ourNet {
		case int(NetI2P):
			return ReachPrivate
		default:
			return ReachDefault
		}
	default:
		switch ourNet {
		case int(NetIPv4):
			return ReachIPv4
		case int(NetIPv6):
			return ReachIPv6Weak
		case int(NetTor):
			return ReachPrivate
		case int(NetI2P):
			return ReachPrivate
		default:
			return ReachDefault
		}
	}
}

const extTeredo = 100

// extNetwork is GetNetwork extended with a private Teredo classification,
// used only by GetReachabilityFrom.
func (a Addr) extNetwork() int {
	if a.IsRFC4380() {
		return extTeredo
	}
	return int(a.GetNetwork())
}

// Marshal writes the address to w: the first 16 bytes if peerVersion
// predates IP64Version (no marker is written), otherwise the full 64-byte
// buffer.
func (a Addr) Marshal(w *bytes.Buffer, peerVersion int32) error {
	if peerVersion < IP64Version {
		w.Write(a.ip[0:16])
		return nil
	}
	w.Write(a.ip[:])
	return nil
}

// Unmarshal reads an address from b: 16 bytes if peerVersion predates
// IP64Version (zero-filling the rest of the buffer and stamping the
// trailing marker), otherwise the full 64-byte buffer.
func Unmarshal(b []byte, peerVersion int32) (Addr, error) {
	var a Addr
	if peerVersion < IP64Version {
		if len(b) < 16 {
			return a, fmt.Errorf("netaddr: short legacy address (%d bytes)", len(b))
		}
		copy(a.ip[0:16], b[0:16])
		copy(a.ip[ip64MarkerStart:], pchIP64Marker[:])
		return a, nil
	}
	if len(b) < IPSize {
		return a, fmt.Errorf("netaddr: short extended address (%d bytes)", len(b))
	}
	copy(a.ip[:], b[0:IPSize])
	return a, nil
}

// torV3Checksum computes the 2-byte checksum OnionCat packs alongside a Tor
// v3 ed25519 public key: SHA3-256(".onion checksum" || pubkey || 0x03).
func torV3Checksum(pubkey []byte) [2]byte {
	buf := make([]byte, 0, 16+len(pubkey)+1)
	buf = append(buf, ".onion checksum"...)
	buf = append(buf, pubkey...)
	buf = append(buf, 0x03)
	digest := crypto.Sha3_256(buf)
	var out [2]byte
	copy(out[:], digest[0:2])
	return out
}

// MakeTorV3Address renders the textual .onion address for a 32-byte
// ed25519 public key, matching Tor's own address derivation.
func MakeTorV3Address(pubkey [32]byte) string {
	digest := torV3Checksum(pubkey[:])
	buf := make([]byte, 0, onionAddressBytes)
	buf = append(buf, pubkey[:]...)
	buf = append(buf, digest[0], digest[1])
	buf = append(buf, 0x03)
	return strings.ToLower(base32Encode(buf)) + strOnionSuffix
}

// SetTorV3 packs a 32-byte ed25519 public key into the buffer as a Tor v3
// address.
func (a *Addr) SetTorV3(pubkey [32]byte) {
	digest := torV3Checksum(pubkey[:])
	copy(a.ip[0:onionCatBytes], pchOnionCat[:])
	copy(a.ip[onionCatBytes:onionCatBytes+onionV3PubkeySize], pubkey[:])
	a.ip[onionCatBytes+onionV3PubkeySize] = digest[0]
	a.ip[onionCatBytes+onionV3PubkeySize+1] = digest[1]
	a.ip[onionCatBytes+onionV3PubkeySize+2] = 0x03
}

// base32Encode is the RFC 4648 base-32 encoding without padding, the form
// Tor and I2P use for their textual addresses.
func base32Encode(b []byte) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}

// hashGroupID folds the first 16 bytes of the buffer into a compact peer
// identity for logging and bucket hashing, reusing the project's double
// SHA-256 rather than a bespoke 64-bit hash.
func (a Addr) hashGroupID() uint64 {
	digest := crypto.Sha256d(a.ip[0:16])
	return binary.LittleEndian.Uint64(digest[0:8])
}

// GetHash returns a compact 64-bit identity for the address, used by the
// address manager's deterministic bucket placement.
func (a Addr) GetHash() uint64 {
	return a.hashGroupID()
}
