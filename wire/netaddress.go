package wire

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/junaeth-project/qposd/codec"
	"github.com/junaeth-project/qposd/netaddr"
)

// ServiceFlag identifies the services a peer advertises in its version
// message and in every NetAddress it relays.
type ServiceFlag uint64

// SFNodeNetwork is set by a peer that serves the full block chain.
const SFNodeNetwork ServiceFlag = 1 << 0

// NetAddress is a netaddr.Service annotated with a last-seen timestamp and
// the service bits the peer advertises, the record carried in a version
// message's addrMe/addrFrom and in every addr-message entry (spec.md §4.9).
type NetAddress struct {
	Timestamp uint32
	Services  ServiceFlag
	IP        netaddr.Service
}

// NewNetAddressTimestamp builds a NetAddress for a bare IP/port pair first
// seen at ts, the form DNS seeding and address relay both construct
// before anything is known about the peer beyond its address.
func NewNetAddressTimestamp(ts time.Time, services ServiceFlag, ip net.IP, port uint16) *NetAddress {
	return &NetAddress{
		Timestamp: uint32(ts.Unix()),
		Services:  services,
		IP:        netaddr.NewService(ip, port),
	}
}

func serviceWireSize(peerVersion int32) int {
	if peerVersion >= netaddr.IP64Version {
		return netaddr.IPSize + 2
	}
	return 16 + 2
}

func (na *NetAddress) serialize(w *bytes.Buffer, peerVersion int32) error {
	if err := codec.WriteVarInt(w, uint64(na.Timestamp)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(na.Services)); err != nil {
		return err
	}
	return na.IP.Marshal(w, peerVersion)
}

func deserializeNetAddress(r io.Reader, peerVersion int32) (*NetAddress, error) {
	na := &NetAddress{}
	ts, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	na.Timestamp = uint32(ts)
	svc, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	na.Services = ServiceFlag(svc)

	raw := make([]byte, serviceWireSize(peerVersion))
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	ip, _, err := netaddr.UnmarshalService(raw, peerVersion)
	if err != nil {
		return nil, err
	}
	na.IP = ip
	return na, nil
}

// MaxAddrPerMsg is the limit spec.md §4.9 places on a single addr message.
const MaxAddrPerMsg = 1000

func writeNetAddressVector(w *bytes.Buffer, addrs []*NetAddress, peerVersion int32) error {
	if len(addrs) > MaxAddrPerMsg {
		return fmt.Errorf("wire: %d addresses exceeds max of %d", len(addrs), MaxAddrPerMsg)
	}
	if err := codec.WriteVarInt(w, uint64(len(addrs))); err != nil {
		return err
	}
	for _, a := range addrs {
		if err := a.serialize(w, peerVersion); err != nil {
			return err
		}
	}
	return nil
}

func readNetAddressVector(r io.Reader, peerVersion int32) ([]*NetAddress, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxAddrPerMsg {
		return nil, fmt.Errorf("wire: %d addresses exceeds max of %d", n, MaxAddrPerMsg)
	}
	out := make([]*NetAddress, n)
	for i := range out {
		na, err := deserializeNetAddress(r, peerVersion)
		if err != nil {
			return nil, err
		}
		out[i] = na
	}
	return out, nil
}
