package capeproto

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/marmos91/cape/internal/bufpool"
	"github.com/marmos91/cape/internal/capeerr"
)

// headerSize is the fixed-width common request header: opcode, user_flag,
// 2 bytes of padding, username_len, password_len, permission, session_id,
// payload_len.
const headerSize = 20

// Request is one decoded inbound frame. Username and Password are present
// on every request: Cape reauthenticates on each call rather than
// trusting the session id alone for identity.
type Request struct {
	Opcode     Opcode
	UserFlag   UserFlag
	Username   string
	Password   string
	Permission uint8 // new-permission for USER_OP/CREATE; otherwise unused
	SessionID  uint32
	Sub        SubPayload
}

// DecodeRequest reads one full request frame from r, enforcing lim on every
// variable-length field. It performs exactly one frame read per call and
// never partially commits state: either a complete, valid Request comes
// back, or an error does and r's buffered header/body isn't reused.
//
// A truncated read (the peer closed mid-frame) yields capeerr.SockClosed.
// A frame that declares a length over lim's maxima yields capeerr.Failure
// without attempting to read the oversized field, so a hostile peer can't
// force an unbounded allocation.
func DecodeRequest(r io.Reader, lim Limits) (*Request, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, capeerr.Wrap(capeerr.SockClosed, err)
	}

	req := &Request{
		Opcode:     Opcode(header[0]),
		UserFlag:   UserFlag(header[1]),
		Permission: header[7],
		SessionID:  binary.LittleEndian.Uint32(header[8:12]),
	}
	usernameLen := int(binary.LittleEndian.Uint16(header[4:6]))
	passwordLen := int(header[6])
	payloadLen := binary.LittleEndian.Uint64(header[12:20])

	if usernameLen > lim.MaxUsernameLen {
		return nil, capeerr.New(capeerr.Failure)
	}
	if passwordLen > lim.MaxPasswordLen {
		return nil, capeerr.New(capeerr.Failure)
	}

	username, err := readString(r, usernameLen)
	if err != nil {
		return nil, err
	}
	password, err := readString(r, passwordLen)
	if err != nil {
		return nil, err
	}
	req.Username = username
	req.Password = password

	sub, consumed, err := decodeSub(r, req.Opcode, lim)
	if err != nil {
		return nil, err
	}
	if consumed != payloadLen {
		return nil, capeerr.New(capeerr.Failure)
	}
	req.Sub = sub

	return req, nil
}

// decodeSub reads the opcode-specific sub-payload and reports how many
// bytes it consumed, so the caller can check that against the declared
// payload_len.
func decodeSub(r io.Reader, op Opcode, lim Limits) (SubPayload, uint64, error) {
	switch {
	case op.HasStdSub():
		return decodeStdSub(r, op, lim)
	case op.HasUserSub():
		return decodeUserSub(r, lim)
	default:
		return SubPayload{Kind: SubKindNone}, 0, nil
	}
}

func decodeStdSub(r io.Reader, op Opcode, lim Limits) (SubPayload, uint64, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return SubPayload{}, 0, capeerr.Wrap(capeerr.SockClosed, err)
	}
	pathLen := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if pathLen > lim.MaxPathLen {
		return SubPayload{}, 0, capeerr.New(capeerr.Failure)
	}
	path, err := readString(r, pathLen)
	if err != nil {
		return SubPayload{}, 0, err
	}

	consumed := uint64(2 + pathLen)
	std := StdSubPayload{Path: path}

	if op == OpPutFile {
		var streamLenBuf [8]byte
		if _, err := io.ReadFull(r, streamLenBuf[:]); err != nil {
			return SubPayload{}, 0, capeerr.Wrap(capeerr.SockClosed, err)
		}
		streamLen := binary.LittleEndian.Uint64(streamLenBuf[:])
		if streamLen > lim.MaxStreamLen {
			return SubPayload{}, 0, capeerr.New(capeerr.Failure)
		}
		stream, err := readBytes(r, streamLen)
		if err != nil {
			return SubPayload{}, 0, err
		}
		std.Stream = stream
		consumed += 8 + streamLen
	}

	return SubPayload{Kind: SubKindStd, Std: std}, consumed, nil
}

func decodeUserSub(r io.Reader, lim Limits) (SubPayload, uint64, error) {
	var head [3]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return SubPayload{}, 0, capeerr.Wrap(capeerr.SockClosed, err)
	}
	newUsernameLen := int(binary.LittleEndian.Uint16(head[0:2]))
	newPasswordLen := int(head[2])
	if newUsernameLen > lim.MaxUsernameLen || newPasswordLen > lim.MaxPasswordLen {
		return SubPayload{}, 0, capeerr.New(capeerr.Failure)
	}

	newUsername, err := readString(r, newUsernameLen)
	if err != nil {
		return SubPayload{}, 0, err
	}
	newPassword, err := readString(r, newPasswordLen)
	if err != nil {
		return SubPayload{}, 0, err
	}

	consumed := uint64(3 + newUsernameLen + newPasswordLen)
	return SubPayload{
		Kind: SubKindUser,
		User: UserSubPayload{NewUsername: newUsername, NewPassword: newPassword},
	}, consumed, nil
}

func readString(r io.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf, err := readBytes(r, uint64(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// readBytes reads exactly n bytes. A size above math.MaxUint32 is rejected
// with capeerr.Failure. Otherwise it reads into a buffer from bufpool
// (which allocates directly for sizes above its largest class) and copies
// into a right-sized result, so a pooled backing array is returned
// immediately rather than escaping into the request's lifetime.
func readBytes(r io.Reader, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n > math.MaxUint32 {
		return nil, capeerr.New(capeerr.Failure)
	}

	pooled := bufpool.GetUint32(uint32(n))
	defer bufpool.Put(pooled)
	if _, err := io.ReadFull(r, pooled); err != nil {
		return nil, capeerr.Wrap(capeerr.SockClosed, err)
	}
	out := make([]byte, n)
	copy(out, pooled)
	return out, nil
}
