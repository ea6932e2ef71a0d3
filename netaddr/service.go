package netaddr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// Service pairs an Addr with a TCP port, the CNetAddr/CService split the
// original draws between "an address" and "an address a peer can dial".
type Service struct {
	Addr Addr
	Port uint16
}

// NewService builds a Service from a net.IP and port.
func NewService(ip net.IP, port uint16) Service {
	return Service{Addr: FromIP(ip), Port: port}
}

// String renders host:port, bracketing IPv6/Tor/I2P hosts.
func (s Service) String() string {
	host := s.Addr.ToStringIP()
	if s.Addr.IsIPv4() {
		return fmt.Sprintf("%s:%d", host, s.Port)
	}
	return fmt.Sprintf("[%s]:%d", host, s.Port)
}

// Marshal writes the address followed by the big-endian port, the layout
// every NetAddress wire record uses after its timestamp/services prefix.
func (s Service) Marshal(w *bytes.Buffer, peerVersion int32) error {
	if err := s.Addr.Marshal(w, peerVersion); err != nil {
		return err
	}
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], s.Port)
	w.Write(portBuf[:])
	return nil
}

// UnmarshalService reads an Addr followed by a big-endian port from b.
func UnmarshalService(b []byte, peerVersion int32) (Service, int, error) {
	addrLen := 16
	if peerVersion >= IP64Version {
		addrLen = IPSize
	}
	if len(b) < addrLen+2 {
		return Service{}, 0, fmt.Errorf("netaddr: short service (%d bytes)", len(b))
	}
	addr, err := Unmarshal(b[:addrLen], peerVersion)
	if err != nil {
		return Service{}, 0, err
	}
	port := binary.BigEndian.Uint16(b[addrLen : addrLen+2])
	return Service{Addr: addr, Port: port}, addrLen + 2, nil
}
