package protocol

import (
	"fmt"

	"elg-gateway/gwerr"
)

var (
	// ErrMalformedFrame covers frame-level length mismatches: a buffer
	// whose size doesn't match the length the header or CryptoInfo
	// declares.
	ErrMalformedFrame = fmt.Errorf("malformed frame")
)

// DecodeRqHeader parses the fixed 10-byte RqHeader that immediately
// follows the 1-byte hdr_len prefix on the wire. len(buf) must be exactly
// RqHeaderSize.
func DecodeRqHeader(buf []byte) (RqHeader, error) {
	if len(buf) != RqHeaderSize {
		return RqHeader{}, gwerr.New(gwerr.KindMalformedFrame,
			fmt.Errorf("%w: RqHeader frame must be %d bytes, got %d", ErrMalformedFrame, RqHeaderSize, len(buf)))
	}
	h, err := decodeRqHeader(buf)
	if err != nil {
		return RqHeader{}, gwerr.New(gwerr.KindMalformedMessage, err)
	}
	return h, nil
}

// DecodeRqBody decodes the CryptoInfo + encrypted body section of a
// request frame. buf must be exactly header.CryptoInfoLength +
// header.RqLength bytes (the caller derives that from the already-decoded
// RqHeader). key is the partner's 16-byte AES key.
func DecodeRqBody(buf []byte, key []byte) (Rq, error) {
	ci, consumed, err := decodeCryptoInfo(buf)
	if err != nil {
		return Rq{}, gwerr.New(gwerr.KindMalformedMessage, err)
	}
	if consumed != CryptoInfoSize {
		return Rq{}, gwerr.New(gwerr.KindMalformedFrame,
			fmt.Errorf("%w: CryptoInfo must consume exactly %d bytes, consumed %d", ErrMalformedFrame, CryptoInfoSize, consumed))
	}

	ciphertext := buf[consumed:]
	if len(ciphertext) == 0 || len(ciphertext)%AESBlockSize != 0 {
		return Rq{}, gwerr.New(gwerr.KindCrypto,
			fmt.Errorf("%w: encrypted body length must be a positive multiple of %d, got %d", ErrCrypto, AESBlockSize, len(ciphertext)))
	}

	plaintext, err := decrypt(key, ci.IV[:], ciphertext)
	if err != nil {
		return Rq{}, err
	}

	pad := int(ci.AESPaddingLengthPlusOne) - 1
	if pad < 0 || pad > len(plaintext) {
		return Rq{}, gwerr.New(gwerr.KindCrypto,
			fmt.Errorf("%w: padding length %d invalid for %d-byte plaintext", ErrCrypto, pad, len(plaintext)))
	}
	significant := plaintext[:len(plaintext)-pad]

	rq, err := decodeRq(significant)
	if err != nil {
		return Rq{}, gwerr.New(gwerr.KindMalformedMessage, err)
	}
	return rq, nil
}

// EncodeRs builds the response frame for (lat, lon, hpe): a fresh IV, fresh
// random padding, RsHeader, CryptoInfo, and the AES-CBC-encrypted body. It
// returns the single header-length prefix byte the caller sends before the
// frame, and the frame bytes themselves (RsHeader || CryptoInfo ||
// ciphertext).
func EncodeRs(key []byte, lat, lon, hpe float64) (byte, []byte, error) {
	rsBuf := encodeRsBody(Rs{Lat: lat, Lon: lon, HPE: hpe})

	pad := (AESBlockSize - len(rsBuf)%AESBlockSize) % AESBlockSize
	padding, err := randomBytes(pad)
	if err != nil {
		return 0, nil, err
	}
	padded := append(append([]byte{}, rsBuf...), padding...)

	iv, err := randomBytes(ivSize)
	if err != nil {
		return 0, nil, err
	}
	var ci CryptoInfo
	copy(ci.IV[:], iv)
	ci.AESPaddingLengthPlusOne = uint32(pad) + 1
	ciBuf := encodeCryptoInfo(ci)

	ciphertext, err := encrypt(key, iv, padded)
	if err != nil {
		return 0, nil, err
	}

	rsHeader := RsHeader{RemainingLength: uint32(len(ciBuf) + len(ciphertext))}
	rsHeaderBuf := encodeRsHeader(rsHeader)

	frame := make([]byte, 0, len(rsHeaderBuf)+len(ciBuf)+len(ciphertext))
	frame = append(frame, rsHeaderBuf...)
	frame = append(frame, ciBuf...)
	frame = append(frame, ciphertext...)

	if len(rsHeaderBuf) > 255 {
		return 0, nil, gwerr.New(gwerr.KindMalformedFrame,
			fmt.Errorf("%w: RsHeader length %d does not fit in the 1-byte hdr_len prefix", ErrMalformedFrame, len(rsHeaderBuf)))
	}
	return byte(len(rsHeaderBuf)), frame, nil
}

// DecodeRs is the client-side mirror of EncodeRs: given the same AES key
// and the frame bytes that followed the hdr_len prefix (RsHeader ||
// CryptoInfo || ciphertext), it recovers (lat, lon, hpe). It exists for tests and the manual test client
// — the server itself never decodes its own responses.
func DecodeRs(key []byte, hdrLen byte, frame []byte) (Rs, error) {
	if len(frame) < int(hdrLen) {
		return Rs{}, gwerr.New(gwerr.KindMalformedFrame,
			fmt.Errorf("%w: frame shorter than declared RsHeader length", ErrMalformedFrame))
	}
	rsHeader, err := decodeRsHeader(frame[:hdrLen])
	if err != nil {
		return Rs{}, gwerr.New(gwerr.KindMalformedMessage, err)
	}
	rest := frame[hdrLen:]
	if uint32(len(rest)) != rsHeader.RemainingLength {
		return Rs{}, gwerr.New(gwerr.KindMalformedFrame,
			fmt.Errorf("%w: RsHeader.remaining_length %d does not match %d remaining bytes", ErrMalformedFrame, rsHeader.RemainingLength, len(rest)))
	}

	ci, consumed, err := decodeCryptoInfo(rest)
	if err != nil {
		return Rs{}, gwerr.New(gwerr.KindMalformedMessage, err)
	}
	ciphertext := rest[consumed:]
	if len(ciphertext) == 0 || len(ciphertext)%AESBlockSize != 0 {
		return Rs{}, gwerr.New(gwerr.KindCrypto,
			fmt.Errorf("%w: encrypted body length must be a positive multiple of %d, got %d", ErrCrypto, AESBlockSize, len(ciphertext)))
	}

	plaintext, err := decrypt(key, ci.IV[:], ciphertext)
	if err != nil {
		return Rs{}, err
	}
	pad := int(ci.AESPaddingLengthPlusOne) - 1
	if pad < 0 || pad > len(plaintext) {
		return Rs{}, gwerr.New(gwerr.KindCrypto,
			fmt.Errorf("%w: padding length %d invalid for %d-byte plaintext", ErrCrypto, pad, len(plaintext)))
	}
	significant := plaintext[:len(plaintext)-pad]
	return decodeRsBody(significant)
}

// EncodeRqFrame builds a full client request frame for (partnerID, key,
// rq): the 1-byte hdr_len prefix, RqHeader, CryptoInfo, and the
// AES-CBC-encrypted, randomly-padded body. It is the inverse of
// DecodeRqHeader + DecodeRqBody and exists for round-trip tests and the
// manual test client; the server never calls it.
func EncodeRqFrame(partnerID uint32, key []byte, rq Rq) ([]byte, error) {
	rqBuf, err := encodeRq(rq)
	if err != nil {
		return nil, gwerr.New(gwerr.KindMalformedMessage, err)
	}

	pad := (AESBlockSize - len(rqBuf)%AESBlockSize) % AESBlockSize
	padding, err := randomBytes(pad)
	if err != nil {
		return nil, err
	}
	padded := append(append([]byte{}, rqBuf...), padding...)

	iv, err := randomBytes(ivSize)
	if err != nil {
		return nil, err
	}
	var ci CryptoInfo
	copy(ci.IV[:], iv)
	ci.AESPaddingLengthPlusOne = uint32(pad) + 1
	ciBuf := encodeCryptoInfo(ci)

	ciphertext, err := encrypt(key, iv, padded)
	if err != nil {
		return nil, err
	}

	header := RqHeader{
		PartnerID:        partnerID,
		CryptoInfoLength: uint32(len(ciBuf)),
		RqLength:         uint16(len(ciphertext)),
	}
	headerBuf := encodeRqHeader(header)

	frame := make([]byte, 0, 1+len(headerBuf)+len(ciBuf)+len(ciphertext))
	frame = append(frame, byte(len(headerBuf)))
	frame = append(frame, headerBuf...)
	frame = append(frame, ciBuf...)
	frame = append(frame, ciphertext...)
	return frame, nil
}
