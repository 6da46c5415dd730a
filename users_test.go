package netcode

import "testing"

func TestAddrKeyDistinguishesPorts(t *testing.T) {
	a1 := addr("127.0.0.1:4000")
	a2 := addr("127.0.0.1:4001")
	if addrKey(a1) == addrKey(a2) {
		t.Fatal("addrKey collided for two distinct ports")
	}
}

func TestAddrKeyNilIsEmpty(t *testing.T) {
	if addrKey(nil) != "" {
		t.Fatalf("addrKey(nil) = %q; want empty string", addrKey(nil))
	}
}

func TestNewUserRecordHasEmptyRoomSet(t *testing.T) {
	rec := newUserRecord(addr("127.0.0.1:4000"))
	if len(rec.RoomKeys) != 0 {
		t.Fatalf("RoomKeys = %+v; want empty on a freshly created record", rec.RoomKeys)
	}
}
