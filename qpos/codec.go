package qpos

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
	"github.com/junaeth-project/qposd/crypto"
)

// maxRegistryStakers bounds the staker vector a Marshal/Unmarshal round
// trip will accept, matching the defensive ReadVector ceilings used
// throughout the wire package for attacker-controlled counts; a restored
// registry is read from local disk, not the network, but the same
// discipline costs nothing here.
const maxRegistryStakers = 1 << 24

// writeHash and readHash are the chainhash.Hash element encoders every
// fixed-width hash field in this file is built on.
func writeHash(w io.Writer, h chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (chainhash.Hash, error) {
	var h chainhash.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writePubKey(w io.Writer, key *crypto.PublicKey) error {
	if key == nil {
		return codec.WriteVarInt(w, 0)
	}
	b := key.SerializeCompressed()
	if err := codec.WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readPubKey(r io.Reader) (*crypto.PublicKey, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return crypto.ParsePubKey(b)
}

func writeString(w io.Writer, s string) error {
	if err := codec.WriteVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader, maxLen uint64) (string, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n > maxLen {
		return "", codec.ErrNonCanonicalVarInt
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// marshalStaker writes every field of s needed to restore it exactly,
// including its three authority keys (which may legitimately be nil only
// on a malformed record, never in practice) and both rolling-history
// bitsets.
func marshalStaker(w io.Writer, s *Staker) error {
	if err := codec.WriteVarInt(w, uint64(s.ID)); err != nil {
		return err
	}
	if err := writeString(w, s.Alias); err != nil {
		return err
	}
	if err := writePubKey(w, s.PubkeyOwner); err != nil {
		return err
	}
	if err := writePubKey(w, s.PubkeyDelegate); err != nil {
		return err
	}
	if err := writePubKey(w, s.PubkeyController); err != nil {
		return err
	}
	if err := writeHash(w, s.CreationBlockHash); err != nil {
		return err
	}
	if err := writeHash(w, s.CreationTxID); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(s.CreationVout)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(s.PurchasePrice)); err != nil {
		return err
	}
	if err := codec.WriteBitset(w, s.RecentBlocks); err != nil {
		return err
	}
	if err := codec.WriteBitset(w, s.PrevRecentBlocks); err != nil {
		return err
	}
	for _, v := range []uint32{
		s.BlocksProduced, s.BlocksMissed, s.BlocksDocked, s.BlocksAssigned,
		s.BlocksSeen, s.PrevBlocksMissed, s.PcmDelegatePayout,
	} {
		if err := codec.WriteVarInt(w, uint64(v)); err != nil {
			return err
		}
	}
	if err := writeHash(w, s.MostRecentBlockHash); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(int64(s.HeightDisabled)+1)); err != nil {
		return err
	}
	qualified := uint64(0)
	if s.Qualified {
		qualified = 1
	}
	if err := codec.WriteVarInt(w, qualified); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(s.TotalEarned)); err != nil {
		return err
	}
	keys := make([]string, 0, len(s.Meta))
	for k := range s.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return codec.WriteMap(w, keys, s.Meta,
		func(w io.Writer, k string) error { return writeString(w, k) },
		func(w io.Writer, v string) error { return writeString(w, v) })
}

func unmarshalStaker(r io.Reader) (*Staker, error) {
	var s Staker
	id, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.ID = uint32(id)
	if s.Alias, err = readString(r, 256); err != nil {
		return nil, err
	}
	if s.PubkeyOwner, err = readPubKey(r); err != nil {
		return nil, err
	}
	if s.PubkeyDelegate, err = readPubKey(r); err != nil {
		return nil, err
	}
	if s.PubkeyController, err = readPubKey(r); err != nil {
		return nil, err
	}
	if s.CreationBlockHash, err = readHash(r); err != nil {
		return nil, err
	}
	if s.CreationTxID, err = readHash(r); err != nil {
		return nil, err
	}
	vout, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.CreationVout = uint32(vout)
	price, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.PurchasePrice = int64(price)
	if s.RecentBlocks, err = codec.ReadBitset(r); err != nil {
		return nil, err
	}
	if s.PrevRecentBlocks, err = codec.ReadBitset(r); err != nil {
		return nil, err
	}
	fields := make([]*uint32, 7)
	fields[0], fields[1], fields[2], fields[3] = &s.BlocksProduced, &s.BlocksMissed, &s.BlocksDocked, &s.BlocksAssigned
	fields[4], fields[5], fields[6] = &s.BlocksSeen, &s.PrevBlocksMissed, &s.PcmDelegatePayout
	for _, f := range fields {
		v, err := codec.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		*f = uint32(v)
	}
	if s.MostRecentBlockHash, err = readHash(r); err != nil {
		return nil, err
	}
	heightDisabled, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.HeightDisabled = int32(int64(heightDisabled) - 1)
	qualified, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.Qualified = qualified != 0
	earned, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	s.TotalEarned = int64(earned)
	meta, err := codec.ReadMap(r, 4096,
		func(r io.Reader) (string, error) { return readString(r, 256) },
		func(r io.Reader) (string, error) { return readString(r, 4096) })
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		s.Meta = meta
	}
	return &s, nil
}

func marshalQueue(w io.Writer, q *Queue) error {
	present := uint64(0)
	if q != nil {
		present = 1
	}
	if err := codec.WriteVarInt(w, present); err != nil {
		return err
	}
	if q == nil {
		return nil
	}
	if err := codec.WriteVarInt(w, uint64(q.CurrentSlot)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(q.SlotTime0)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(q.targetTime)); err != nil {
		return err
	}
	if err := codec.WriteVector(w, q.StakerIDs, func(w io.Writer, id uint32) error {
		return codec.WriteVarInt(w, uint64(id))
	}); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(len(q.BlockStats))); err != nil {
		return err
	}
	_, err := w.Write(q.BlockStats)
	return err
}

func unmarshalQueue(r io.Reader) (*Queue, error) {
	present, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	var q Queue
	currentSlot, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	q.CurrentSlot = uint32(currentSlot)
	slotTime0, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	q.SlotTime0 = uint32(slotTime0)
	targetTime, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	q.targetTime = uint32(targetTime)
	ids, err := codec.ReadVector(r, maxRegistryStakers, func(r io.Reader) (uint32, error) {
		v, err := codec.ReadVarInt(r)
		return uint32(v), err
	})
	if err != nil {
		return nil, err
	}
	q.StakerIDs = ids
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxRegistryStakers {
		return nil, codec.ErrNonCanonicalVarInt
	}
	q.BlockStats = make([]byte, n)
	if _, err := io.ReadFull(r, q.BlockStats); err != nil {
		return nil, err
	}
	return &q, nil
}

// MarshalBinary encodes the registry's full live state — every staker,
// the active queue, the claimable-balance ledger, and the next-ID
// counter — for persistence. Aliases are not stored separately; they are
// rebuilt from each staker's Alias field on UnmarshalBinary. Retained
// reorg snapshots are intentionally excluded: a restarted node begins
// with reorg protection only as deep as its persisted block history,
// matching the teacher's own disk-backed chainstate not carrying its
// in-memory undo buffer across a restart.
func (r *Registry) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.WriteVarInt(&buf, uint64(r.nextID)); err != nil {
		return nil, err
	}
	if err := codec.WriteVarInt(&buf, uint64(r.slotTime)); err != nil {
		return nil, err
	}
	if err := codec.WriteVarInt(&buf, uint64(r.maxMisses)); err != nil {
		return nil, err
	}

	ids := make([]uint32, 0, len(r.stakers))
	for id := range r.stakers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := codec.WriteVector(&buf, ids, func(w io.Writer, id uint32) error {
		return marshalStaker(w, r.stakers[id])
	}); err != nil {
		return nil, err
	}

	if err := marshalQueue(&buf, r.queue); err != nil {
		return nil, err
	}

	balKeys := make([]string, 0, len(r.balances))
	for k := range r.balances {
		balKeys = append(balKeys, k)
	}
	sort.Strings(balKeys)
	if err := codec.WriteMap(&buf, balKeys, r.balances,
		func(w io.Writer, k string) error { return writeString(w, k) },
		func(w io.Writer, v int64) error { return codec.WriteVarInt(w, uint64(v)) }); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a registry previously encoded by
// MarshalBinary, replacing r's entire state in place.
func (r *Registry) UnmarshalBinary(data []byte) error {
	buf := bytes.NewReader(data)
	nextID, err := codec.ReadVarInt(buf)
	if err != nil {
		return err
	}
	slotTime, err := codec.ReadVarInt(buf)
	if err != nil {
		return err
	}
	maxMisses, err := codec.ReadVarInt(buf)
	if err != nil {
		return err
	}
	stakers, err := codec.ReadVector(buf, maxRegistryStakers, unmarshalStaker)
	if err != nil {
		return err
	}
	queue, err := unmarshalQueue(buf)
	if err != nil {
		return err
	}
	balances, err := codec.ReadMap(buf, maxRegistryStakers,
		func(r io.Reader) (string, error) { return readString(r, 256) },
		func(r io.Reader) (int64, error) {
			v, err := codec.ReadVarInt(r)
			return int64(v), err
		})
	if err != nil {
		return err
	}

	r.nextID = uint32(nextID)
	r.slotTime = uint32(slotTime)
	r.maxMisses = uint32(maxMisses)
	r.stakers = make(map[uint32]*Staker, len(stakers))
	r.aliases = make(map[string]uint32, len(stakers))
	for _, s := range stakers {
		r.stakers[s.ID] = s
		if s.Alias != "" {
			r.aliases[strings.ToLower(s.Alias)] = s.ID
		}
	}
	r.queue = queue
	r.balances = balances
	r.snapshots = make(map[int32]*Snapshot)
	r.history = nil
	return nil
}
