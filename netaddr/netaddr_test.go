package netaddr

import (
	"bytes"
	"net"
	"testing"
)

func TestFromIPRoundTrip(t *testing.T) {
	tests := []struct {
		ip   string
		want Network
	}{
		{"8.8.8.8", NetIPv4},
		{"2606:4700:4700::1111", NetIPv6},
		{"127.0.0.1", NetUnroutable},
		{"192.168.1.1", NetUnroutable},
		{"fe80::1", NetUnroutable},
	}
	for _, test := range tests {
		addr := FromIP(net.ParseIP(test.ip))
		if got := addr.GetNetwork(); got != test.want {
			t.Errorf("%s: GetNetwork() = %v, want %v", test.ip, got, test.want)
		}
	}
}

func TestTorV3RoundTrip(t *testing.T) {
	var pubkey [32]byte
	for i := range pubkey {
		pubkey[i] = byte(i)
	}

	var a Addr
	a.SetTorV3(pubkey)

	if !a.IsTor() {
		t.Fatalf("SetTorV3: IsTor() = false")
	}
	if !a.IsTorV3() {
		t.Fatalf("SetTorV3: IsTorV3() = false, checksum mismatch")
	}
	if got := a.GetNetwork(); got != NetTor {
		t.Errorf("GetNetwork() = %v, want %v", got, NetTor)
	}

	addrStr := MakeTorV3Address(pubkey)
	if got := a.ToStringIP() + ""; got == "" {
		t.Fatalf("ToStringIP() returned empty string")
	}
	wantSuffix := strOnionSuffix
	if addrStr[len(addrStr)-len(wantSuffix):] != wantSuffix {
		t.Errorf("MakeTorV3Address() = %q, missing %q suffix", addrStr, wantSuffix)
	}
}

func TestTorV3BadChecksumRejected(t *testing.T) {
	var pubkey [32]byte
	for i := range pubkey {
		pubkey[i] = byte(i)
	}
	var a Addr
	a.SetTorV3(pubkey)

	// Flip a byte of the embedded checksum; IsTorV3 must now reject it.
	a.ip[onionCatBytes+onionV3PubkeySize] ^= 0xFF

	if a.IsTorV3() {
		t.Errorf("IsTorV3() = true after corrupting checksum, want false")
	}
	if !a.IsTor() {
		t.Errorf("IsTor() = false, want true (prefix untouched)")
	}
}

func TestMarshalUnmarshalLegacy(t *testing.T) {
	addr := FromIP(net.ParseIP("1.2.3.4"))

	var buf bytes.Buffer
	if err := addr.Marshal(&buf, IP64Version-1); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != 16 {
		t.Fatalf("Marshal legacy: wrote %d bytes, want 16", buf.Len())
	}

	got, err := Unmarshal(buf.Bytes(), IP64Version-1)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.IsMarkedIP64() {
		t.Errorf("Unmarshal legacy: IsMarkedIP64() = false, want true")
	}
	if got.ToStringIP() != addr.ToStringIP() {
		t.Errorf("round trip: got %s, want %s", got.ToStringIP(), addr.ToStringIP())
	}
}

func TestMarshalUnmarshalExtended(t *testing.T) {
	var pubkey [32]byte
	pubkey[0] = 0xAB
	var addr Addr
	addr.SetTorV3(pubkey)

	var buf bytes.Buffer
	if err := addr.Marshal(&buf, IP64Version); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if buf.Len() != IPSize {
		t.Fatalf("Marshal extended: wrote %d bytes, want %d", buf.Len(), IPSize)
	}

	got, err := Unmarshal(buf.Bytes(), IP64Version)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.IsTorV3() {
		t.Errorf("round trip: IsTorV3() = false, want true")
	}
}

func TestGetReachabilityFrom(t *testing.T) {
	v4 := FromIP(net.ParseIP("8.8.8.8"))
	v6 := FromIP(net.ParseIP("2606:4700:4700::1111"))

	if got := v4.GetReachabilityFrom(&v4); got != ReachIPv4 {
		t.Errorf("v4 from v4: got %v, want %v", got, ReachIPv4)
	}
	if got := v6.GetReachabilityFrom(&v6); got != ReachIPv6Strong {
		t.Errorf("v6 from v6: got %v, want %v", got, ReachIPv6Strong)
	}
	if got := v4.GetReachabilityFrom(nil); got == ReachUnreachable {
		t.Errorf("v4 from unknown: got %v, want reachable", got)
	}
}
