package protocol

import "encoding/binary"

// EntityActionKind mirrors internal/entitymgr's ActionKind ordering
// (Spawn, Despawn, Insert, Remove) — duplicated here rather than imported
// to keep this leaf package free of a dependency on the entity-manager
// package; server.go is the only place that translates between the two.
type EntityActionKind uint8

const (
	ActionSpawn EntityActionKind = iota
	ActionDespawn
	ActionInsert
	ActionRemove
)

// EntityActionFrame is one entity-replication delta on the wire (spec §6:
// "entity-action frames"). NetID is the connection-local wire handle for
// the entity (see entitymgr.Manager.NetID) since Entity itself has no
// general wire encoding. Seq is populated for the two reliable kinds
// (Spawn, Insert); ComponentID/Payload only for Insert; ComponentID only
// for Remove.
type EntityActionFrame struct {
	Kind        EntityActionKind
	NetID       uint16
	Seq         uint16
	ComponentID uint32
	Payload     []byte
}

func (f EntityActionFrame) AppendTo(dst []byte) []byte {
	dst = append(dst, byte(f.Kind))
	dst = binary.BigEndian.AppendUint16(dst, f.NetID)
	switch f.Kind {
	case ActionSpawn:
		dst = binary.BigEndian.AppendUint16(dst, f.Seq)
	case ActionInsert:
		dst = binary.BigEndian.AppendUint16(dst, f.Seq)
		dst = binary.AppendUvarint(dst, uint64(f.ComponentID))
		dst = binary.AppendUvarint(dst, uint64(len(f.Payload)))
		dst = append(dst, f.Payload...)
	case ActionRemove:
		dst = binary.AppendUvarint(dst, uint64(f.ComponentID))
	case ActionDespawn:
		// no further fields
	}
	return dst
}

// DecodeEntityActionFrame parses one frame from the front of p, returning
// the frame and the remaining bytes.
func DecodeEntityActionFrame(p []byte) (EntityActionFrame, []byte, error) {
	if len(p) < 3 {
		return EntityActionFrame{}, nil, ErrTruncated
	}
	f := EntityActionFrame{Kind: EntityActionKind(p[0]), NetID: binary.BigEndian.Uint16(p[1:3])}
	rest := p[3:]
	switch f.Kind {
	case ActionSpawn:
		if len(rest) < 2 {
			return EntityActionFrame{}, nil, ErrTruncated
		}
		f.Seq = binary.BigEndian.Uint16(rest)
		rest = rest[2:]
	case ActionInsert:
		if len(rest) < 2 {
			return EntityActionFrame{}, nil, ErrTruncated
		}
		f.Seq = binary.BigEndian.Uint16(rest)
		rest = rest[2:]
		cid, n := binary.Uvarint(rest)
		if n <= 0 {
			return EntityActionFrame{}, nil, ErrTruncated
		}
		f.ComponentID = uint32(cid)
		rest = rest[n:]
		plen, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < plen {
			return EntityActionFrame{}, nil, ErrTruncated
		}
		rest = rest[n:]
		f.Payload = append([]byte(nil), rest[:plen]...)
		rest = rest[plen:]
	case ActionRemove:
		cid, n := binary.Uvarint(rest)
		if n <= 0 {
			return EntityActionFrame{}, nil, ErrTruncated
		}
		f.ComponentID = uint32(cid)
		rest = rest[n:]
	case ActionDespawn:
		// no further fields
	}
	return f, rest, nil
}

// MessageFrame is one queued channel message on the wire: seq:u16 +
// length-prefixed payload.
type MessageFrame struct {
	Seq     uint16
	Payload []byte
}

func (f MessageFrame) AppendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, f.Seq)
	dst = binary.AppendUvarint(dst, uint64(len(f.Payload)))
	return append(dst, f.Payload...)
}

func DecodeMessageFrame(p []byte) (MessageFrame, []byte, error) {
	if len(p) < 2 {
		return MessageFrame{}, nil, ErrTruncated
	}
	f := MessageFrame{Seq: binary.BigEndian.Uint16(p)}
	rest := p[2:]
	plen, n := binary.Uvarint(rest)
	if n <= 0 || uint64(len(rest)-n) < plen {
		return MessageFrame{}, nil, ErrTruncated
	}
	rest = rest[n:]
	f.Payload = append([]byte(nil), rest[:plen]...)
	return f, rest[plen:], nil
}

// ChannelFrame groups a channel's wire id with the messages packed for it
// in one Data packet (spec §6: "{channel_id:var, message_count:var,
// messages…}").
type ChannelFrame struct {
	ChannelWireID uint32
	Messages      []MessageFrame
}

func (f ChannelFrame) AppendTo(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(f.ChannelWireID))
	dst = binary.AppendUvarint(dst, uint64(len(f.Messages)))
	for _, m := range f.Messages {
		dst = m.AppendTo(dst)
	}
	return dst
}

func DecodeChannelFrame(p []byte) (ChannelFrame, []byte, error) {
	wireID, n := binary.Uvarint(p)
	if n <= 0 {
		return ChannelFrame{}, nil, ErrTruncated
	}
	rest := p[n:]
	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return ChannelFrame{}, nil, ErrTruncated
	}
	rest = rest[n:]
	f := ChannelFrame{ChannelWireID: uint32(wireID)}
	for i := uint64(0); i < count; i++ {
		var m MessageFrame
		var err error
		m, rest, err = DecodeMessageFrame(rest)
		if err != nil {
			return ChannelFrame{}, nil, err
		}
		f.Messages = append(f.Messages, m)
	}
	return f, rest, nil
}

// DataBody is the full Data packet body: optional client_tick, then entity
// action frames, then channel frames.
type DataBody struct {
	ClientTick      uint16
	HasClientTick   bool
	EntityActions   []EntityActionFrame
	Channels        []ChannelFrame
}

func (b DataBody) AppendTo(dst []byte) []byte {
	dst = AppendOptionalTick(dst, b.ClientTick, b.HasClientTick)
	dst = binary.AppendUvarint(dst, uint64(len(b.EntityActions)))
	for _, a := range b.EntityActions {
		dst = a.AppendTo(dst)
	}
	dst = binary.AppendUvarint(dst, uint64(len(b.Channels)))
	for _, c := range b.Channels {
		dst = c.AppendTo(dst)
	}
	return dst
}

func DecodeDataBody(p []byte) (DataBody, error) {
	tick, present, rest, err := DecodeOptionalTick(p)
	if err != nil {
		return DataBody{}, err
	}
	b := DataBody{ClientTick: tick, HasClientTick: present}

	actionCount, n := binary.Uvarint(rest)
	if n <= 0 {
		return DataBody{}, ErrTruncated
	}
	rest = rest[n:]
	for i := uint64(0); i < actionCount; i++ {
		var a EntityActionFrame
		a, rest, err = DecodeEntityActionFrame(rest)
		if err != nil {
			return DataBody{}, err
		}
		b.EntityActions = append(b.EntityActions, a)
	}

	channelCount, n := binary.Uvarint(rest)
	if n <= 0 {
		return DataBody{}, ErrTruncated
	}
	rest = rest[n:]
	for i := uint64(0); i < channelCount; i++ {
		var c ChannelFrame
		c, rest, err = DecodeChannelFrame(rest)
		if err != nil {
			return DataBody{}, err
		}
		b.Channels = append(b.Channels, c)
	}
	return b, nil
}
