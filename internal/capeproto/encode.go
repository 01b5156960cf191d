package capeproto

import (
	"encoding/binary"
	"io"

	"github.com/marmos91/cape/internal/capeerr"
)

// EncodeRequest writes req to w in the wire format DecodeRequest reads.
// Field lengths are validated against lim before anything is written, so a
// request that would be rejected on decode is never put on the wire.
//
// This is the client half of the codec; the server never calls it, but the
// round-trip property tests and internal/capeclient do.
func EncodeRequest(w io.Writer, req *Request, lim Limits) error {
	if len(req.Username) > lim.MaxUsernameLen || len(req.Password) > lim.MaxPasswordLen {
		return capeerr.New(capeerr.Failure)
	}

	sub, err := encodeSub(req, lim)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, headerSize+len(req.Username)+len(req.Password)+len(sub))
	var header [headerSize]byte
	header[0] = byte(req.Opcode)
	header[1] = byte(req.UserFlag)
	binary.LittleEndian.PutUint16(header[4:6], uint16(len(req.Username)))
	header[6] = byte(len(req.Password))
	header[7] = req.Permission
	binary.LittleEndian.PutUint32(header[8:12], req.SessionID)
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(sub)))

	frame = append(frame, header[:]...)
	frame = append(frame, req.Username...)
	frame = append(frame, req.Password...)
	frame = append(frame, sub...)

	if _, err := w.Write(frame); err != nil {
		return capeerr.Wrap(capeerr.SockClosed, err)
	}
	return nil
}

func encodeSub(req *Request, lim Limits) ([]byte, error) {
	switch {
	case req.Opcode.HasStdSub():
		std := req.Sub.Std
		if len(std.Path) > lim.MaxPathLen || uint64(len(std.Stream)) > lim.MaxStreamLen {
			return nil, capeerr.New(capeerr.Failure)
		}
		buf := make([]byte, 0, 2+len(std.Path)+8+len(std.Stream))
		var pathLen [2]byte
		binary.LittleEndian.PutUint16(pathLen[:], uint16(len(std.Path)))
		buf = append(buf, pathLen[:]...)
		buf = append(buf, std.Path...)
		if req.Opcode == OpPutFile {
			var streamLen [8]byte
			binary.LittleEndian.PutUint64(streamLen[:], uint64(len(std.Stream)))
			buf = append(buf, streamLen[:]...)
			buf = append(buf, std.Stream...)
		}
		return buf, nil

	case req.Opcode.HasUserSub():
		user := req.Sub.User
		if len(user.NewUsername) > lim.MaxUsernameLen || len(user.NewPassword) > lim.MaxPasswordLen {
			return nil, capeerr.New(capeerr.Failure)
		}
		buf := make([]byte, 0, 3+len(user.NewUsername)+len(user.NewPassword))
		var usernameLen [2]byte
		binary.LittleEndian.PutUint16(usernameLen[:], uint16(len(user.NewUsername)))
		buf = append(buf, usernameLen[:]...)
		buf = append(buf, byte(len(user.NewPassword)))
		buf = append(buf, user.NewUsername...)
		buf = append(buf, user.NewPassword...)
		return buf, nil

	default:
		return nil, nil
	}
}
