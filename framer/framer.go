// Package framer converts between JSON-RPC message payloads and their
// LSP-style framed wire form.
//
// It solves the TCP sticky packet problem for framed transports: the
// sender prefixes each payload with an ASCII header block carrying a
// Content-Length, and the receiver scans its accumulated bytes for a
// complete header plus body before emitting one discrete message.
//
// Wire form:
//
//	Content-Length: <n>\r\n
//	Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n
//	\r\n
//	<n bytes of payload>
//
// Additional headers are tolerated on input and ignored; only
// Content-Length is interpreted, matched case-sensitively.
package framer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ContentType is the media type emitted on every framed message.
const ContentType = "application/vscode-jsonrpc; charset=utf-8"

// headerDelimiter separates the header block from the payload.
const headerDelimiter = "\r\n\r\n"

// contentLengthHeader is the one header the deframer interprets.
const contentLengthHeader = "Content-Length:"

// Frame wraps a payload in its framed wire form.
func Frame(payload []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(payload) + 96)
	fmt.Fprintf(&out, "Content-Length: %d\r\n", len(payload))
	fmt.Fprintf(&out, "Content-Type: %s\r\n", ContentType)
	out.WriteString("\r\n")
	out.Write(payload)
	return out.Bytes()
}

// Deframer recovers discrete messages from an arbitrarily chunked byte
// stream. The caller owns the append-only buffer and discards the
// consumed prefix after each emitted message. The zero value is ready
// for use; state resets automatically after each message.
type Deframer struct {
	headerComplete bool
	expectedLength int
	headerSize     int
}

// TryDeframe inspects buf for one complete framed message.
//
// Outcomes:
//   - msg == nil, consumed == 0, err == nil: need more bytes.
//   - msg != nil: one message extracted; the caller discards the first
//     consumed bytes of buf.
//   - err != nil: the header block is syntactically present but invalid
//     (Content-Length missing or non-integer). The caller closes the
//     transport; the deframer is not usable for this stream anymore.
func (d *Deframer) TryDeframe(buf []byte) (msg []byte, consumed int, err error) {
	if !d.headerComplete {
		headerEnd := bytes.Index(buf, []byte(headerDelimiter))
		if headerEnd < 0 {
			return nil, 0, nil
		}

		length, err := parseHeaderBlock(buf[:headerEnd])
		if err != nil {
			return nil, 0, err
		}

		d.headerComplete = true
		d.expectedLength = length
		d.headerSize = headerEnd + len(headerDelimiter)
	}

	if len(buf) < d.headerSize+d.expectedLength {
		return nil, 0, nil
	}

	msg = make([]byte, d.expectedLength)
	copy(msg, buf[d.headerSize:d.headerSize+d.expectedLength])
	consumed = d.headerSize + d.expectedLength

	d.headerComplete = false
	d.expectedLength = 0
	d.headerSize = 0

	return msg, consumed, nil
}

// parseHeaderBlock scans the header lines for Content-Length.
func parseHeaderBlock(block []byte) (int, error) {
	for _, line := range strings.Split(string(block), "\r\n") {
		if !strings.HasPrefix(line, contentLengthHeader) {
			continue
		}
		value := strings.TrimSpace(line[len(contentLengthHeader):])
		length, err := strconv.Atoi(value)
		if err != nil || length < 0 {
			return 0, fmt.Errorf("framer: invalid Content-Length value %q", value)
		}
		return length, nil
	}
	return 0, fmt.Errorf("framer: missing Content-Length header")
}
