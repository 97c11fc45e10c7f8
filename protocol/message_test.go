package protocol

import "testing"

func TestRqHeaderRoundTrip(t *testing.T) {
	h := RqHeader{PartnerID: 7, CryptoInfoLength: 20, RqLength: 48}
	buf := encodeRqHeader(h)
	if len(buf) != RqHeaderSize {
		t.Fatalf("encoded header length = %d, want %d", len(buf), RqHeaderSize)
	}
	got, err := decodeRqHeader(buf)
	if err != nil {
		t.Fatalf("decodeRqHeader: %v", err)
	}
	if got != h {
		t.Fatalf("decodeRqHeader round-trip = %+v, want %+v", got, h)
	}
}

func TestDecodeRqHeaderWrongLength(t *testing.T) {
	_, err := decodeRqHeader(make([]byte, RqHeaderSize-1))
	if err == nil {
		t.Fatal("expected error for short RqHeader buffer")
	}
}

func TestCryptoInfoRoundTrip(t *testing.T) {
	var ci CryptoInfo
	for i := range ci.IV {
		ci.IV[i] = byte(i)
	}
	ci.AESPaddingLengthPlusOne = 9

	buf := encodeCryptoInfo(ci)
	if len(buf) != CryptoInfoSize {
		t.Fatalf("encoded CryptoInfo length = %d, want %d", len(buf), CryptoInfoSize)
	}
	got, consumed, err := decodeCryptoInfo(buf)
	if err != nil {
		t.Fatalf("decodeCryptoInfo: %v", err)
	}
	if consumed != CryptoInfoSize {
		t.Fatalf("consumed = %d, want %d", consumed, CryptoInfoSize)
	}
	if got != ci {
		t.Fatalf("decodeCryptoInfo round-trip = %+v, want %+v", got, ci)
	}
}

func TestDecodeCryptoInfoRejectsOutOfRangePadding(t *testing.T) {
	for _, bad := range []uint32{0, 17, 1000} {
		var ci CryptoInfo
		ci.AESPaddingLengthPlusOne = bad
		buf := encodeCryptoInfo(ci)
		if _, _, err := decodeCryptoInfo(buf); err == nil {
			t.Fatalf("aes_padding_length_plus_one=%d: expected error, got none", bad)
		}
	}
}

func TestRqRoundTripWithAndWithoutChannel(t *testing.T) {
	ch := uint32(6)
	rq := Rq{APs: APList{
		MAC:     []uint64{0x0011223344aa, 0x00aabbccdd11},
		RSSI:    []int32{-55, -70},
		Channel: []*uint32{&ch, nil},
	}}

	buf, err := encodeRq(rq)
	if err != nil {
		t.Fatalf("encodeRq: %v", err)
	}
	got, err := decodeRq(buf)
	if err != nil {
		t.Fatalf("decodeRq: %v", err)
	}
	if len(got.APs.MAC) != 2 || got.APs.MAC[0] != rq.APs.MAC[0] || got.APs.MAC[1] != rq.APs.MAC[1] {
		t.Fatalf("MAC round-trip mismatch: %+v", got.APs.MAC)
	}
	if got.APs.RSSI[0] != -55 || got.APs.RSSI[1] != -70 {
		t.Fatalf("RSSI round-trip mismatch: %+v", got.APs.RSSI)
	}
	if got.APs.Channel[0] == nil || *got.APs.Channel[0] != 6 {
		t.Fatalf("Channel[0] round-trip mismatch: %+v", got.APs.Channel[0])
	}
	if got.APs.Channel[1] != nil {
		t.Fatalf("Channel[1] should be nil (omitted), got %+v", got.APs.Channel[1])
	}
}

func TestRqRoundTripEmptyAPList(t *testing.T) {
	rq := Rq{APs: APList{MAC: []uint64{}, RSSI: []int32{}, Channel: []*uint32{}}}
	buf, err := encodeRq(rq)
	if err != nil {
		t.Fatalf("encodeRq: %v", err)
	}
	got, err := decodeRq(buf)
	if err != nil {
		t.Fatalf("decodeRq: %v", err)
	}
	if len(got.APs.MAC) != 0 {
		t.Fatalf("expected empty AP list, got %d entries", len(got.APs.MAC))
	}
}

func TestEncodeRqRejectsMismatchedArrayLengths(t *testing.T) {
	rq := Rq{APs: APList{
		MAC:     []uint64{1, 2},
		RSSI:    []int32{-1},
		Channel: []*uint32{nil, nil},
	}}
	if _, err := encodeRq(rq); err == nil {
		t.Fatal("expected error for mismatched parallel array lengths")
	}
}

func TestDecodeRqRejectsTrailingBytes(t *testing.T) {
	rq := Rq{APs: APList{MAC: []uint64{1}, RSSI: []int32{-10}, Channel: []*uint32{nil}}}
	buf, err := encodeRq(rq)
	if err != nil {
		t.Fatalf("encodeRq: %v", err)
	}
	buf = append(buf, 0xff)
	if _, err := decodeRq(buf); err == nil {
		t.Fatal("expected error for trailing bytes after Rq body")
	}
}

func TestDecodeRqRejectsExcessiveAPCount(t *testing.T) {
	buf := appendUvarint(nil, uint64(MaxAPCount+1))
	if _, err := decodeRq(buf); err == nil {
		t.Fatal("expected error for ap_count exceeding MaxAPCount")
	}
}

func TestRsHeaderRoundTrip(t *testing.T) {
	h := RsHeader{RemainingLength: 44}
	buf := encodeRsHeader(h)
	if len(buf) != RsHeaderSize {
		t.Fatalf("encoded RsHeader length = %d, want %d", len(buf), RsHeaderSize)
	}
	got, err := decodeRsHeader(buf)
	if err != nil {
		t.Fatalf("decodeRsHeader: %v", err)
	}
	if got != h {
		t.Fatalf("decodeRsHeader round-trip = %+v, want %+v", got, h)
	}
}

func TestRsBodyRoundTrip(t *testing.T) {
	rs := Rs{Lat: 37.422, Lon: -122.084, HPE: 12.5}
	buf := encodeRsBody(rs)
	if len(buf) != RsBodySize {
		t.Fatalf("encoded Rs length = %d, want %d", len(buf), RsBodySize)
	}
	got, err := decodeRsBody(buf)
	if err != nil {
		t.Fatalf("decodeRsBody: %v", err)
	}
	if got != rs {
		t.Fatalf("decodeRsBody round-trip = %+v, want %+v", got, rs)
	}
}
