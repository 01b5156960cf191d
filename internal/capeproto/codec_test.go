package capeproto

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cape/internal/capeerr"
)

func roundTrip(t *testing.T, req *Request) *Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req, DefaultLimits()))
	decoded, err := DecodeRequest(&buf, DefaultLimits())
	require.NoError(t, err)
	return decoded
}

func TestRoundTripLocal(t *testing.T) {
	req := &Request{
		Opcode:    OpLocal,
		Username:  "admin",
		Password:  "password",
		SessionID: 0,
		Sub:       SubPayload{Kind: SubKindNone},
	}
	assert.Equal(t, req, roundTrip(t, req))
}

func TestRoundTripStdSub(t *testing.T) {
	for _, op := range []Opcode{OpDelFile, OpListDir, OpGetFile, OpMkdir} {
		req := &Request{
			Opcode:    op,
			Username:  "bob",
			Password:  "hunter22",
			SessionID: 0xDEADBEEF,
			Sub: SubPayload{
				Kind: SubKindStd,
				Std:  StdSubPayload{Path: "docs/notes.txt"},
			},
		}
		assert.Equal(t, req, roundTrip(t, req), "opcode %#x", op)
	}
}

func TestRoundTripPutCarriesStream(t *testing.T) {
	req := &Request{
		Opcode:    OpPutFile,
		Username:  "bob",
		Password:  "hunter22",
		SessionID: 42,
		Sub: SubPayload{
			Kind: SubKindStd,
			Std:  StdSubPayload{Path: "notes.txt", Stream: []byte("hello")},
		},
	}
	assert.Equal(t, req, roundTrip(t, req))
}

func TestRoundTripUserSub(t *testing.T) {
	req := &Request{
		Opcode:     OpUserOp,
		UserFlag:   UserFlagCreate,
		Username:   "admin",
		Password:   "password",
		Permission: 2,
		SessionID:  7,
		Sub: SubPayload{
			Kind: SubKindUser,
			User: UserSubPayload{NewUsername: "alice", NewPassword: "s3cret"},
		},
	}
	assert.Equal(t, req, roundTrip(t, req))
}

func TestDecodeRejectsOversizedUsername(t *testing.T) {
	var frame [headerSize]byte
	frame[0] = byte(OpLocal)
	binary.LittleEndian.PutUint16(frame[4:6], 200)

	_, err := DecodeRequest(bytes.NewReader(frame[:]), DefaultLimits())
	assert.Equal(t, capeerr.Failure, capeerr.CodeOf(err))
}

func TestDecodeRejectsOversizedPath(t *testing.T) {
	req := &Request{
		Opcode:   OpGetFile,
		Username: "admin",
		Password: "password",
		Sub:      SubPayload{Kind: SubKindStd, Std: StdSubPayload{Path: "x"}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req, DefaultLimits()))

	tight := DefaultLimits()
	tight.MaxPathLen = 0
	_, err := DecodeRequest(&buf, tight)
	assert.Equal(t, capeerr.Failure, capeerr.CodeOf(err))
}

func TestDecodeRejectsOversizedStreamWithoutReadingIt(t *testing.T) {
	req := &Request{
		Opcode:   OpPutFile,
		Username: "admin",
		Password: "password",
		Sub: SubPayload{
			Kind: SubKindStd,
			Std:  StdSubPayload{Path: "big.bin", Stream: bytes.Repeat([]byte{0xAB}, 128)},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req, DefaultLimits()))

	tight := DefaultLimits()
	tight.MaxStreamLen = 64
	_, err := DecodeRequest(&buf, tight)
	assert.Equal(t, capeerr.Failure, capeerr.CodeOf(err))
}

func TestDecodeTruncatedHeaderIsSockClosed(t *testing.T) {
	_, err := DecodeRequest(bytes.NewReader([]byte{0x01, 0x00, 0x00}), DefaultLimits())
	assert.Equal(t, capeerr.SockClosed, capeerr.CodeOf(err))
}

func TestDecodeTruncatedBodyIsSockClosed(t *testing.T) {
	req := &Request{
		Opcode:   OpGetFile,
		Username: "admin",
		Password: "password",
		Sub:      SubPayload{Kind: SubKindStd, Std: StdSubPayload{Path: "notes.txt"}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req, DefaultLimits()))

	frame := buf.Bytes()
	_, err := DecodeRequest(bytes.NewReader(frame[:len(frame)-3]), DefaultLimits())
	assert.Equal(t, capeerr.SockClosed, capeerr.CodeOf(err))
}

func TestDecodeRejectsPayloadLenMismatch(t *testing.T) {
	req := &Request{
		Opcode:   OpGetFile,
		Username: "admin",
		Password: "password",
		Sub:      SubPayload{Kind: SubKindStd, Std: StdSubPayload{Path: "notes.txt"}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRequest(&buf, req, DefaultLimits()))

	frame := buf.Bytes()
	binary.LittleEndian.PutUint64(frame[12:20], 9999)
	_, err := DecodeRequest(bytes.NewReader(frame), DefaultLimits())
	assert.Equal(t, capeerr.Failure, capeerr.CodeOf(err))
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	req := &Request{
		Opcode:   OpLocal,
		Username: string(bytes.Repeat([]byte{'a'}, 21)),
		Password: "password",
	}
	err := EncodeRequest(&bytes.Buffer{}, req, DefaultLimits())
	assert.Equal(t, capeerr.Failure, capeerr.CodeOf(err))
}

func TestResponseRoundTripWithContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, Response{Code: capeerr.Success, Content: []byte("F a.txt\n")}))

	resp, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, capeerr.Success, resp.Code)
	assert.Equal(t, []byte("F a.txt\n"), resp.Content)
}

func TestResponseCarriesNewSessionIDFirst(t *testing.T) {
	id := uint32(0xCAFEBABE)
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, Response{Code: capeerr.Success, NewSessionID: &id}))

	resp, err := DecodeResponse(&buf)
	require.NoError(t, err)

	gotID, rest := SplitSessionID(resp.Content, false)
	assert.Equal(t, id, gotID)
	assert.Empty(t, rest)
}

func TestSplitSessionIDLeavesContentAloneForEstablishedSession(t *testing.T) {
	content := []byte("hello")
	id, rest := SplitSessionID(content, true)
	assert.Zero(t, id)
	assert.Equal(t, content, rest)
}

func TestResponseEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, Response{Code: capeerr.PermissionError}))
	assert.Equal(t, 9, buf.Len())

	resp, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, capeerr.PermissionError, resp.Code)
	assert.Empty(t, resp.Content)
}
