// Package capeclient is a Go client for the Cape wire protocol. Each call
// dials the server, sends one request frame, reads one response frame, and
// closes the connection, matching the server's one-request-per-socket
// rule. The client tracks the session id issued on the first successful
// call and presents it on subsequent ones.
package capeclient

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
)

// DefaultDialTimeout bounds how long a call waits for the TCP connect.
const DefaultDialTimeout = 10 * time.Second

// Client issues Cape requests against a single server with fixed
// credentials. Safe for concurrent use; the session id is shared across
// goroutines.
type Client struct {
	Addr     string
	Username string
	Password string

	// DialTimeout bounds the TCP connect; zero means DefaultDialTimeout.
	DialTimeout time.Duration

	limits capeproto.Limits

	mu        sync.Mutex
	sessionID uint32
}

// New returns a Client for the server at addr ("host:port").
func New(addr, username, password string) *Client {
	return &Client{
		Addr:     addr,
		Username: username,
		Password: password,
		limits:   capeproto.DefaultLimits(),
	}
}

// SessionID returns the session id the server issued, or 0 before the
// first successful call.
func (c *Client) SessionID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID seeds the client with a previously issued session id, e.g.
// one restored from the capectl context file.
func (c *Client) SetSessionID(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// do sends one request and returns the response content with any issued
// session id already stripped and recorded. A non-success code comes back
// as a *capeerr.CapeError carrying that code. A stale session id (the
// server expired it between calls) is cleared and the request retried
// once with a fresh login.
func (c *Client) do(req *capeproto.Request) ([]byte, error) {
	content, err := c.once(req)
	if err != nil && req.SessionID != 0 && capeerr.CodeOf(err) == capeerr.SessionError {
		c.mu.Lock()
		c.sessionID = 0
		c.mu.Unlock()
		return c.once(req)
	}
	return content, err
}

func (c *Client) once(req *capeproto.Request) ([]byte, error) {
	c.mu.Lock()
	req.SessionID = c.sessionID
	c.mu.Unlock()

	dialTimeout := c.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", c.Addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if err := capeproto.EncodeRequest(conn, req, c.limits); err != nil {
		return nil, err
	}
	resp, err := capeproto.DecodeResponse(conn)
	if err != nil {
		return nil, err
	}

	content := resp.Content
	if req.SessionID == 0 && resp.Code != capeerr.UserAuth {
		id, rest := capeproto.SplitSessionID(content, false)
		c.mu.Lock()
		c.sessionID = id
		c.mu.Unlock()
		content = rest
	}

	switch resp.Code {
	case capeerr.Success, capeerr.FileEmpty, capeerr.DirEmpty:
		return content, nil
	default:
		return nil, capeerr.New(resp.Code)
	}
}

// Ping authenticates and establishes or refreshes a session without
// touching the filesystem.
func (c *Client) Ping() error {
	_, err := c.do(c.newRequest(capeproto.OpLocal))
	return err
}

// Entry is one parsed line of a directory listing.
type Entry struct {
	// Type is 'F' for a regular file, 'D' for a directory.
	Type byte
	Name string
}

// List returns the entries of the directory at path. An empty directory
// yields an empty slice, not an error.
func (c *Client) List(path string) ([]Entry, error) {
	req := c.newRequest(capeproto.OpListDir)
	req.Sub = stdSub(path, nil)
	content, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return parseListing(content)
}

// Get returns the contents of the file at path. An empty file yields an
// empty slice, not an error.
func (c *Client) Get(path string) ([]byte, error) {
	req := c.newRequest(capeproto.OpGetFile)
	req.Sub = stdSub(path, nil)
	return c.do(req)
}

// Put uploads data as a new file at path. The server refuses to
// overwrite an existing file.
func (c *Client) Put(path string, data []byte) error {
	req := c.newRequest(capeproto.OpPutFile)
	req.Sub = stdSub(path, data)
	_, err := c.do(req)
	return err
}

// Mkdir creates a directory at path.
func (c *Client) Mkdir(path string) error {
	req := c.newRequest(capeproto.OpMkdir)
	req.Sub = stdSub(path, nil)
	_, err := c.do(req)
	return err
}

// Delete removes the file or empty directory at path.
func (c *Client) Delete(path string) error {
	req := c.newRequest(capeproto.OpDelFile)
	req.Sub = stdSub(path, nil)
	_, err := c.do(req)
	return err
}

// CreateUser creates a new account with the given permission level
// (1 read, 2 read-write, 3 admin).
func (c *Client) CreateUser(username, password string, permission uint8) error {
	req := c.newRequest(capeproto.OpUserOp)
	req.UserFlag = capeproto.UserFlagCreate
	req.Permission = permission
	req.Sub = capeproto.SubPayload{
		Kind: capeproto.SubKindUser,
		User: capeproto.UserSubPayload{NewUsername: username, NewPassword: password},
	}
	_, err := c.do(req)
	return err
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(username string) error {
	req := c.newRequest(capeproto.OpUserOp)
	req.UserFlag = capeproto.UserFlagDelete
	req.Sub = capeproto.SubPayload{
		Kind: capeproto.SubKindUser,
		User: capeproto.UserSubPayload{NewUsername: username},
	}
	_, err := c.do(req)
	return err
}

func (c *Client) newRequest(op capeproto.Opcode) *capeproto.Request {
	return &capeproto.Request{
		Opcode:   op,
		Username: c.Username,
		Password: c.Password,
	}
}

func stdSub(path string, stream []byte) capeproto.SubPayload {
	return capeproto.SubPayload{
		Kind: capeproto.SubKindStd,
		Std:  capeproto.StdSubPayload{Path: path, Stream: stream},
	}
}

func parseListing(content []byte) ([]Entry, error) {
	entries := make([]Entry, 0)
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}
		if len(line) < 3 || line[1] != ' ' || (line[0] != 'F' && line[0] != 'D') {
			return nil, fmt.Errorf("malformed listing line %q", line)
		}
		entries = append(entries, Entry{Type: line[0], Name: line[2:]})
	}
	return entries, nil
}
