package capeproto

import (
	"encoding/binary"
	"io"

	"github.com/marmos91/cape/internal/capeerr"
)

// Response is one outbound response frame: a result code plus optional
// content (file bytes for GET, a newline-delimited listing for LIST).
//
// NewSessionID is written back to the client as the first 4 bytes of the
// response payload, little-endian, present exactly when the request's
// session_id was 0 and authentication succeeded. Any opcode-specific
// content follows immediately after those 4 bytes.
type Response struct {
	Code         capeerr.Code
	NewSessionID *uint32
	Content      []byte
}

// EncodeResponse writes r to w in the response frame format: 1 byte
// result code, 8 bytes little-endian payload_len, then payload_len bytes
// of payload (the new session id, if any, followed by Content).
func EncodeResponse(w io.Writer, r Response) error {
	payload := make([]byte, 0, 4+len(r.Content))
	if r.NewSessionID != nil {
		var idBuf [4]byte
		binary.LittleEndian.PutUint32(idBuf[:], *r.NewSessionID)
		payload = append(payload, idBuf[:]...)
	}
	payload = append(payload, r.Content...)

	var head [9]byte
	head[0] = byte(r.Code)
	binary.LittleEndian.PutUint64(head[1:9], uint64(len(payload)))

	if _, err := w.Write(head[:]); err != nil {
		return capeerr.Wrap(capeerr.SockClosed, err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return capeerr.Wrap(capeerr.SockClosed, err)
		}
	}
	return nil
}

// DecodeResponse reads one response frame from r. It is used by the test
// suite to round-trip encode/decode and by any Go client of the protocol.
func DecodeResponse(r io.Reader) (*Response, error) {
	var head [9]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, capeerr.Wrap(capeerr.SockClosed, err)
	}
	code := capeerr.Code(head[0])
	payloadLen := binary.LittleEndian.Uint64(head[1:9])

	payload, err := readBytes(r, payloadLen)
	if err != nil {
		return nil, err
	}
	return &Response{Code: code, Content: payload}, nil
}

// SplitSessionID extracts a prepended new-session id from resp.Content
// when present. hadSession must be true when the originating request
// carried a nonzero session_id and false when it carried 0 (the only
// time a server ever prepends one), since
// there is no separate tag in the wire format distinguishing "first 4
// content bytes are a session id" from "first 4 content bytes are file
// content that happens to be 4 bytes long".
func SplitSessionID(content []byte, hadSession bool) (sessionID uint32, rest []byte) {
	if hadSession || len(content) < 4 {
		return 0, content
	}
	return binary.LittleEndian.Uint32(content[:4]), content[4:]
}
