/*
Package protocol implements the wire codec for the location gateway.

=== Why a custom binary protocol ===

Field clients are battery- and bandwidth-constrained, so the request and
response bodies are a compact length-delimited encoding rather than JSON
or XML: one AES-encrypted section per direction, wrapped in a small fixed
header that tells the reader exactly how many bytes to pull off the wire
before it has a complete message. This solves the same sticky/half-packet
problem length-prefixed framing always solves, plus it keeps the structured
payload itself free of field names and delimiters.

=== Layout ===

RqHeader (10 bytes, fixed):

	+------------+--------------------+------------+
	| partner_id | crypto_info_length | rq_length  |
	|  uint32 BE |     uint32 BE       | uint16 BE  |
	+------------+--------------------+------------+

CryptoInfo (20 bytes, fixed):

	+----------------+------------------------------+
	|       iv       | aes_padding_length_plus_one   |
	|    16 bytes    |          uint32 BE             |
	+----------------+------------------------------+

Rq body (variable, decrypted): ap_count (uvarint) followed by that many
{ mac (uvarint), rssi (zigzag varint), has_channel (1 byte), [channel_number
(uvarint) if has_channel] } records, one per scanned access point.

Rs body (24 bytes, fixed): lat, lon, hpe as big-endian IEEE-754 doubles.
*/
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// RqHeaderSize is the exact serialized size of RqHeader. Any buffer
	// of a different length fails to decode.
	RqHeaderSize = 10

	// CryptoInfoSize is the exact serialized size of CryptoInfo.
	CryptoInfoSize = 20

	// RsHeaderSize is the exact serialized size of RsHeader.
	RsHeaderSize = 4

	// RsBodySize is the exact serialized size of Rs (three float64s).
	RsBodySize = 24

	// ivSize is the AES-CBC initialization vector length.
	ivSize = 16

	// MaxAPCount bounds a single request's access-point list so a
	// malicious ap_count varint can't make decodeRq allocate gigabytes
	// before hitting the real end of a short buffer.
	MaxAPCount = 4096
)

var (
	// ErrMalformedMessage is returned when a structured message fails to
	// deserialize: truncated buffer, trailing bytes, or an out-of-range
	// field.
	ErrMalformedMessage = errors.New("malformed message")
)

// RqHeader is the fixed 10-byte header that precedes every client request.
type RqHeader struct {
	PartnerID        uint32
	CryptoInfoLength uint32
	RqLength         uint16
}

// encodeRqHeader serializes h into exactly RqHeaderSize bytes.
func encodeRqHeader(h RqHeader) []byte {
	buf := make([]byte, RqHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.PartnerID)
	binary.BigEndian.PutUint32(buf[4:8], h.CryptoInfoLength)
	binary.BigEndian.PutUint16(buf[8:10], h.RqLength)
	return buf
}

// decodeRqHeader deserializes exactly RqHeaderSize bytes into an RqHeader.
func decodeRqHeader(buf []byte) (RqHeader, error) {
	if len(buf) != RqHeaderSize {
		return RqHeader{}, fmt.Errorf("%w: RqHeader must be %d bytes, got %d", ErrMalformedMessage, RqHeaderSize, len(buf))
	}
	return RqHeader{
		PartnerID:        binary.BigEndian.Uint32(buf[0:4]),
		CryptoInfoLength: binary.BigEndian.Uint32(buf[4:8]),
		RqLength:         binary.BigEndian.Uint16(buf[8:10]),
	}, nil
}

// CryptoInfo is the fixed 20-byte crypto descriptor that precedes every
// encrypted body, in both directions.
type CryptoInfo struct {
	IV                      [ivSize]byte
	AESPaddingLengthPlusOne uint32
}

// encodeCryptoInfo serializes ci into exactly CryptoInfoSize bytes.
func encodeCryptoInfo(ci CryptoInfo) []byte {
	buf := make([]byte, CryptoInfoSize)
	copy(buf[0:ivSize], ci.IV[:])
	binary.BigEndian.PutUint32(buf[ivSize:ivSize+4], ci.AESPaddingLengthPlusOne)
	return buf
}

// decodeCryptoInfo deserializes the first CryptoInfoSize bytes of buf. It
// returns the number of bytes consumed (always CryptoInfoSize on success)
// so callers can assert the consumed prefix length, per the frame-codec
// contract.
func decodeCryptoInfo(buf []byte) (CryptoInfo, int, error) {
	if len(buf) < CryptoInfoSize {
		return CryptoInfo{}, 0, fmt.Errorf("%w: CryptoInfo requires %d bytes, got %d", ErrMalformedMessage, CryptoInfoSize, len(buf))
	}
	var ci CryptoInfo
	copy(ci.IV[:], buf[0:ivSize])
	ci.AESPaddingLengthPlusOne = binary.BigEndian.Uint32(buf[ivSize : ivSize+4])
	if ci.AESPaddingLengthPlusOne < 1 || ci.AESPaddingLengthPlusOne > 16 {
		return CryptoInfo{}, 0, fmt.Errorf("%w: aes_padding_length_plus_one out of range [1,16]: %d", ErrMalformedMessage, ci.AESPaddingLengthPlusOne)
	}
	return ci, CryptoInfoSize, nil
}

// APList is the parallel-array structure describing one request's scanned
// access points. Index i across MAC, RSSI, and Channel describes one scan;
// Channel[i] is nil when the client omitted the channel number for that
// scan.
type APList struct {
	MAC     []uint64
	RSSI    []int32
	Channel []*uint32
}

// Rq is the decoded, decrypted geolocation request body.
type Rq struct {
	APs APList
}

// encodeRq serializes rq using the compact uvarint field encoding.
func encodeRq(rq Rq) ([]byte, error) {
	n := len(rq.APs.MAC)
	if len(rq.APs.RSSI) != n || len(rq.APs.Channel) != n {
		return nil, fmt.Errorf("%w: APList arrays must be the same length", ErrMalformedMessage)
	}

	buf := make([]byte, 0, 10+n*12)
	buf = appendUvarint(buf, uint64(n))
	for i := 0; i < n; i++ {
		buf = appendUvarint(buf, rq.APs.MAC[i])
		buf = appendVarint(buf, int64(rq.APs.RSSI[i]))
		if rq.APs.Channel[i] == nil {
			buf = append(buf, 0)
		} else {
			buf = append(buf, 1)
			buf = appendUvarint(buf, uint64(*rq.APs.Channel[i]))
		}
	}
	return buf, nil
}

// decodeRq deserializes a full Rq from buf; trailing bytes are an error.
func decodeRq(buf []byte) (Rq, error) {
	r := byteReader{buf: buf}

	count, err := r.uvarint()
	if err != nil {
		return Rq{}, fmt.Errorf("%w: ap_count: %v", ErrMalformedMessage, err)
	}
	if count > MaxAPCount {
		return Rq{}, fmt.Errorf("%w: ap_count %d exceeds limit %d", ErrMalformedMessage, count, MaxAPCount)
	}

	aps := APList{
		MAC:     make([]uint64, count),
		RSSI:    make([]int32, count),
		Channel: make([]*uint32, count),
	}
	for i := uint64(0); i < count; i++ {
		mac, err := r.uvarint()
		if err != nil {
			return Rq{}, fmt.Errorf("%w: mac[%d]: %v", ErrMalformedMessage, i, err)
		}
		rssi, err := r.varint()
		if err != nil {
			return Rq{}, fmt.Errorf("%w: rssi[%d]: %v", ErrMalformedMessage, i, err)
		}
		hasChannel, err := r.byte_()
		if err != nil {
			return Rq{}, fmt.Errorf("%w: has_channel[%d]: %v", ErrMalformedMessage, i, err)
		}
		aps.MAC[i] = mac
		aps.RSSI[i] = int32(rssi)
		if hasChannel != 0 {
			ch, err := r.uvarint()
			if err != nil {
				return Rq{}, fmt.Errorf("%w: channel_number[%d]: %v", ErrMalformedMessage, i, err)
			}
			v := uint32(ch)
			aps.Channel[i] = &v
		}
	}
	if !r.atEnd() {
		return Rq{}, fmt.Errorf("%w: %d trailing bytes after Rq body", ErrMalformedMessage, r.remaining())
	}
	return Rq{APs: aps}, nil
}

// RsHeader carries only the remaining byte count of the response frame
// that follows it (CryptoInfo + encrypted Rs).
type RsHeader struct {
	RemainingLength uint32
}

func encodeRsHeader(h RsHeader) []byte {
	buf := make([]byte, RsHeaderSize)
	binary.BigEndian.PutUint32(buf, h.RemainingLength)
	return buf
}

func decodeRsHeader(buf []byte) (RsHeader, error) {
	if len(buf) != RsHeaderSize {
		return RsHeader{}, fmt.Errorf("%w: RsHeader must be %d bytes, got %d", ErrMalformedMessage, RsHeaderSize, len(buf))
	}
	return RsHeader{RemainingLength: binary.BigEndian.Uint32(buf)}, nil
}

// Rs is the decoded geolocation response: a latitude/longitude fix and its
// horizontal positional error in meters.
type Rs struct {
	Lat float64
	Lon float64
	HPE float64
}

func encodeRsBody(rs Rs) []byte {
	buf := make([]byte, RsBodySize)
	binary.BigEndian.PutUint64(buf[0:8], floatBits(rs.Lat))
	binary.BigEndian.PutUint64(buf[8:16], floatBits(rs.Lon))
	binary.BigEndian.PutUint64(buf[16:24], floatBits(rs.HPE))
	return buf
}

func decodeRsBody(buf []byte) (Rs, error) {
	if len(buf) != RsBodySize {
		return Rs{}, fmt.Errorf("%w: Rs must be %d bytes, got %d", ErrMalformedMessage, RsBodySize, len(buf))
	}
	return Rs{
		Lat: floatFromBits(binary.BigEndian.Uint64(buf[0:8])),
		Lon: floatFromBits(binary.BigEndian.Uint64(buf[8:16])),
		HPE: floatFromBits(binary.BigEndian.Uint64(buf[16:24])),
	}, nil
}
