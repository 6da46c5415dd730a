package protocol

import (
	"bytes"
	"testing"
)

// ---------------------------------------------------------------------------
// EntityActionFrame
// ---------------------------------------------------------------------------

func TestEntityActionFrameRoundTripSpawn(t *testing.T) {
	f := EntityActionFrame{Kind: ActionSpawn, NetID: 3, Seq: 77}
	got, rest, err := DecodeEntityActionFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeEntityActionFrame: %v", err)
	}
	if len(rest) != 0 || got.Kind != f.Kind || got.NetID != f.NetID || got.Seq != f.Seq ||
		got.ComponentID != f.ComponentID || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("got %+v rest=%d; want %+v rest=0", got, len(rest), f)
	}
}

func TestEntityActionFrameRoundTripDespawn(t *testing.T) {
	f := EntityActionFrame{Kind: ActionDespawn, NetID: 9}
	got, rest, err := DecodeEntityActionFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeEntityActionFrame: %v", err)
	}
	if len(rest) != 0 || got.Kind != ActionDespawn || got.NetID != 9 {
		t.Fatalf("got %+v; want Despawn NetID=9", got)
	}
}

func TestEntityActionFrameRoundTripInsert(t *testing.T) {
	f := EntityActionFrame{
		Kind:        ActionInsert,
		NetID:       5,
		Seq:         12,
		ComponentID: 2,
		Payload:     []byte("transform-bytes"),
	}
	got, rest, err := DecodeEntityActionFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeEntityActionFrame: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes: %d", len(rest))
	}
	if got.Kind != f.Kind || got.NetID != f.NetID || got.Seq != f.Seq || got.ComponentID != f.ComponentID {
		t.Fatalf("got %+v; want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("Payload = %q; want %q", got.Payload, f.Payload)
	}
}

func TestEntityActionFrameRoundTripRemove(t *testing.T) {
	f := EntityActionFrame{Kind: ActionRemove, NetID: 2, ComponentID: 7}
	got, rest, err := DecodeEntityActionFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeEntityActionFrame: %v", err)
	}
	if len(rest) != 0 || got.ComponentID != 7 || got.NetID != 2 {
		t.Fatalf("got %+v; want Remove NetID=2 ComponentID=7", got)
	}
}

func TestEntityActionFrameSequenceConcatenates(t *testing.T) {
	a := EntityActionFrame{Kind: ActionSpawn, NetID: 1, Seq: 1}
	b := EntityActionFrame{Kind: ActionDespawn, NetID: 2}

	buf := a.AppendTo(nil)
	buf = b.AppendTo(buf)

	gotA, rest, err := DecodeEntityActionFrame(buf)
	if err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if gotA.Kind != a.Kind || gotA.NetID != a.NetID || gotA.Seq != a.Seq ||
		gotA.ComponentID != a.ComponentID || !bytes.Equal(gotA.Payload, a.Payload) {
		t.Fatalf("first frame = %+v; want %+v", gotA, a)
	}
	gotB, rest, err := DecodeEntityActionFrame(rest)
	if err != nil {
		t.Fatalf("decode second frame: %v", err)
	}
	if len(rest) != 0 || gotB.Kind != b.Kind || gotB.NetID != b.NetID {
		t.Fatalf("second frame = %+v rest=%d; want %+v rest=0", gotB, len(rest), b)
	}
}

// ---------------------------------------------------------------------------
// MessageFrame / ChannelFrame
// ---------------------------------------------------------------------------

func TestMessageFrameRoundTrip(t *testing.T) {
	f := MessageFrame{Seq: 500, Payload: []byte("hello")}
	got, rest, err := DecodeMessageFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeMessageFrame: %v", err)
	}
	if len(rest) != 0 || got.Seq != f.Seq || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("got %+v; want %+v", got, f)
	}
}

func TestChannelFrameRoundTripMultipleMessages(t *testing.T) {
	f := ChannelFrame{
		ChannelWireID: 3,
		Messages: []MessageFrame{
			{Seq: 1, Payload: []byte("a")},
			{Seq: 2, Payload: []byte("bb")},
			{Seq: 3, Payload: nil},
		},
	}
	got, rest, err := DecodeChannelFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeChannelFrame: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover bytes: %d", len(rest))
	}
	if got.ChannelWireID != f.ChannelWireID || len(got.Messages) != len(f.Messages) {
		t.Fatalf("got %+v; want %+v", got, f)
	}
	for i := range f.Messages {
		if got.Messages[i].Seq != f.Messages[i].Seq || !bytes.Equal(got.Messages[i].Payload, f.Messages[i].Payload) {
			t.Fatalf("message %d = %+v; want %+v", i, got.Messages[i], f.Messages[i])
		}
	}
}

func TestChannelFrameRoundTripEmpty(t *testing.T) {
	f := ChannelFrame{ChannelWireID: 9}
	got, rest, err := DecodeChannelFrame(f.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeChannelFrame: %v", err)
	}
	if len(rest) != 0 || got.ChannelWireID != 9 || len(got.Messages) != 0 {
		t.Fatalf("got %+v; want empty channel 9", got)
	}
}

// ---------------------------------------------------------------------------
// DataBody
// ---------------------------------------------------------------------------

func TestDataBodyRoundTripWithClientTick(t *testing.T) {
	b := DataBody{
		ClientTick:    1234,
		HasClientTick: true,
		EntityActions: []EntityActionFrame{
			{Kind: ActionSpawn, NetID: 1, Seq: 1},
			{Kind: ActionInsert, NetID: 1, Seq: 2, ComponentID: 1, Payload: []byte("x")},
		},
		Channels: []ChannelFrame{
			{ChannelWireID: 0, Messages: []MessageFrame{{Seq: 1, Payload: []byte("chat")}}},
		},
	}
	got, err := DecodeDataBody(b.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeDataBody: %v", err)
	}
	if got.ClientTick != b.ClientTick || !got.HasClientTick {
		t.Fatalf("tick got=%d/%v; want %d/true", got.ClientTick, got.HasClientTick, b.ClientTick)
	}
	if len(got.EntityActions) != 2 || len(got.Channels) != 1 {
		t.Fatalf("got %d actions, %d channels; want 2, 1", len(got.EntityActions), len(got.Channels))
	}
	if got.EntityActions[1].ComponentID != 1 || !bytes.Equal(got.EntityActions[1].Payload, []byte("x")) {
		t.Fatalf("insert frame = %+v; want ComponentID=1 Payload=x", got.EntityActions[1])
	}
}

func TestDataBodyRoundTripWithoutClientTickOrContent(t *testing.T) {
	b := DataBody{}
	got, err := DecodeDataBody(b.AppendTo(nil))
	if err != nil {
		t.Fatalf("DecodeDataBody: %v", err)
	}
	if got.HasClientTick || len(got.EntityActions) != 0 || len(got.Channels) != 0 {
		t.Fatalf("got %+v; want a zero-content body", got)
	}
}
