/*
Package server implements the gateway's connection state machine (C6) and
TCP acceptor (C7).

=== Why one goroutine per connection, no read/write split ===

The teacher's IM server runs a persistent connection with independent
read and write goroutines, because a chat session needs to push messages
to the client at any time. A gateway connection is strictly one framed
request followed by one framed response — the client never pipelines a
second request, and the server never pushes anything unsolicited — so
splitting into readLoop/writeLoop goroutines over a channel would only
add synchronization with no payoff. Each worker here is a single
goroutine running handleConnection to completion: read, decode, look up
keys, translate upstream, encode, write, close.
*/
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"elg-gateway/gwerr"
	"elg-gateway/protocol"
)

// handleConnection runs the AWAITING_HEADER_LEN -> ... -> DONE state
// machine for one accepted connection. Any failure at any state logs its
// kind and message and closes the connection without writing a response —
// the spec requires a failed request to be a silent disconnect, never a
// corrupt or partial reply.
func handleConnection(netConn net.Conn, ctx *Context, connID uint64) {
	defer netConn.Close()

	reader := bufio.NewReader(netConn)

	body, partnerID, err := readRequestFrame(netConn, reader, ctx.ConnTimeout)
	if err != nil {
		logHandlerError(connID, "read request frame", err)
		return
	}

	keys, ok := ctx.Partners.Lookup(partnerID)
	if !ok {
		log.Printf("[Conn-%d] WARNING: unknown partner_id %d, closing connection", connID, partnerID)
		return
	}

	rq, err := protocol.DecodeRqBody(body, keys.AES[:])
	if err != nil {
		logHandlerError(connID, "decode request body", err)
		return
	}

	upstreamCtx, cancel := context.WithTimeout(context.Background(), ctx.ConnTimeout)
	defer cancel()
	lat, lon, hpe, err := ctx.Translator.Locate(upstreamCtx, rq, keys.API)
	if err != nil {
		logHandlerError(connID, "translate upstream request", err)
		return
	}

	hdrLen, respFrame, err := protocol.EncodeRs(keys.AES[:], lat, lon, hpe)
	if err != nil {
		logHandlerError(connID, "encode response", err)
		return
	}

	if err := writeResponse(netConn, ctx.ConnTimeout, hdrLen, respFrame); err != nil {
		logHandlerError(connID, "write response", err)
		return
	}
}

// readRequestFrame reads the 1-byte hdr_len prefix, the RqHeader it
// declares, and the CryptoInfo+body section the decoded header declares —
// each read looping over partial reads via io.ReadFull and resetting the
// connection's read deadline first, so one slow field doesn't spend the
// whole connection's timeout budget before the rest of the frame has even
// arrived. It returns the raw CryptoInfo+body bytes and the partner_id,
// leaving decryption to the caller (the partner's AES key isn't known
// until after the header is decoded).
func readRequestFrame(netConn net.Conn, reader *bufio.Reader, timeout time.Duration) ([]byte, uint32, error) {
	if err := setDeadline(netConn, timeout); err != nil {
		return nil, 0, err
	}
	hdrLenByte, err := reader.ReadByte()
	if err != nil {
		return nil, 0, classifyReadErr(err)
	}

	if err := setDeadline(netConn, timeout); err != nil {
		return nil, 0, err
	}
	headerBuf := make([]byte, hdrLenByte)
	if _, err := io.ReadFull(reader, headerBuf); err != nil {
		return nil, 0, classifyReadErr(err)
	}

	header, err := protocol.DecodeRqHeader(headerBuf)
	if err != nil {
		return nil, 0, err
	}

	bodyLen := int(header.CryptoInfoLength) + int(header.RqLength)
	if err := setDeadline(netConn, timeout); err != nil {
		return nil, 0, err
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, 0, classifyReadErr(err)
	}

	return body, header.PartnerID, nil
}

// writeResponse sends the 1-byte hdr_len prefix plus the response frame
// in a single Write call, per the spec's "single send" requirement.
func writeResponse(netConn net.Conn, timeout time.Duration, hdrLen byte, frame []byte) error {
	if err := setDeadline(netConn, timeout); err != nil {
		return err
	}
	buf := make([]byte, 0, 1+len(frame))
	buf = append(buf, hdrLen)
	buf = append(buf, frame...)
	if _, err := netConn.Write(buf); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func setDeadline(netConn net.Conn, timeout time.Duration) error {
	if err := netConn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return gwerr.New(gwerr.KindIO, fmt.Errorf("set deadline: %w", err))
	}
	return nil
}

func classifyReadErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gwerr.New(gwerr.KindTimeout, err)
	}
	return gwerr.New(gwerr.KindIO, err)
}

func classifyWriteErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gwerr.New(gwerr.KindTimeout, err)
	}
	return gwerr.New(gwerr.KindIO, err)
}

func logHandlerError(connID uint64, step string, err error) {
	kind, ok := gwerr.Of(err)
	if !ok {
		kind = gwerr.KindIO
	}
	log.Printf("[Conn-%d] %s: kind=%s error=%v", connID, step, kind, err)
}
