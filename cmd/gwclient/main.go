/*
gwclient is a manual test client for the gateway, in the same spirit as
the teacher's cmd/client: a small flag-driven program that speaks the wire
protocol directly, useful for poking at a running server by hand.

Usage:

	gwclient -server 127.0.0.1:7000 -partner 7 -key 00112233445566778899aabbccddeeff \
		-ap 0011223344aa:-55 -ap 00aabbccdd11:-70
*/
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"elg-gateway/protocol"
)

type apFlag struct {
	mac  uint64
	rssi int32
}

func parseAPFlag(s string) (apFlag, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return apFlag{}, fmt.Errorf("expected mac:rssi, got %q", s)
	}
	mac, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return apFlag{}, fmt.Errorf("invalid mac %q: %w", parts[0], err)
	}
	rssi, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return apFlag{}, fmt.Errorf("invalid rssi %q: %w", parts[1], err)
	}
	return apFlag{mac: mac, rssi: int32(rssi)}, nil
}

type apFlagList []apFlag

func (l *apFlagList) String() string { return fmt.Sprint(*l) }

func (l *apFlagList) Set(s string) error {
	ap, err := parseAPFlag(s)
	if err != nil {
		return err
	}
	*l = append(*l, ap)
	return nil
}

func main() {
	serverAddr := flag.String("server", "127.0.0.1:7000", "gateway server address")
	partnerID := flag.Uint("partner", 7, "partner_id")
	keyHex := flag.String("key", "", "partner's 32-hex-char AES key")
	var aps apFlagList
	flag.Var(&aps, "ap", "access point scan as mac:rssi (repeatable)")
	flag.Parse()

	key, err := hex.DecodeString(*keyHex)
	if err != nil || len(key) != 16 {
		log.Fatalf("-key must be 32 hex characters decoding to 16 bytes")
	}
	if len(aps) == 0 {
		log.Fatalf("at least one -ap mac:rssi is required")
	}

	rq := protocol.Rq{APs: protocol.APList{
		MAC:     make([]uint64, len(aps)),
		RSSI:    make([]int32, len(aps)),
		Channel: make([]*uint32, len(aps)),
	}}
	for i, ap := range aps {
		rq.APs.MAC[i] = ap.mac
		rq.APs.RSSI[i] = ap.rssi
	}

	frame, err := protocol.EncodeRqFrame(uint32(*partnerID), key, rq)
	if err != nil {
		log.Fatalf("encode request: %v", err)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("dial %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		log.Fatalf("write request: %v", err)
	}

	hdrLenBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, hdrLenBuf); err != nil {
		log.Fatalf("read response header length: %v", err)
	}
	hdrLen := hdrLenBuf[0]

	rsHeaderBuf := make([]byte, hdrLen)
	if _, err := io.ReadFull(conn, rsHeaderBuf); err != nil {
		log.Fatalf("read response header: %v", err)
	}
	remaining := decodeRemainingLength(rsHeaderBuf)

	rest := make([]byte, remaining)
	if _, err := io.ReadFull(conn, rest); err != nil {
		log.Fatalf("read response body: %v", err)
	}

	respFrame := append(append([]byte{}, rsHeaderBuf...), rest...)
	rs, err := protocol.DecodeRs(key, hdrLen, respFrame)
	if err != nil {
		log.Fatalf("decode response: %v", err)
	}

	fmt.Printf("lat=%f lon=%f hpe=%f\n", rs.Lat, rs.Lon, rs.HPE)
}

// decodeRemainingLength reads RsHeader.remaining_length directly so this
// client doesn't need to import the unexported message codec — it only
// needs the one big-endian uint32 field.
func decodeRemainingLength(rsHeaderBuf []byte) uint32 {
	if len(rsHeaderBuf) != 4 {
		log.Fatalf("unexpected RsHeader length %d", len(rsHeaderBuf))
	}
	return uint32(rsHeaderBuf[0])<<24 | uint32(rsHeaderBuf[1])<<16 | uint32(rsHeaderBuf[2])<<8 | uint32(rsHeaderBuf[3])
}
