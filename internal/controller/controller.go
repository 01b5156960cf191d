// Package controller implements Cape's per-request orchestration: it
// authenticates every request, establishes or refreshes a session,
// checks the caller's permission against the opcode's requirement, and
// dispatches to the credential store or the sandboxed filesystem.
package controller

import (
	"context"
	"time"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
	"github.com/marmos91/cape/internal/credstore"
	"github.com/marmos91/cape/internal/logger"
	"github.com/marmos91/cape/internal/sandbox"
	"github.com/marmos91/cape/internal/session"
)

// Metrics is the subset of internal/metrics.ServerMetrics the controller
// drives. Defined here so this package doesn't import internal/metrics
// directly; a nil Metrics is valid and simply records nothing.
type Metrics interface {
	ObserveRequest(opcode capeproto.Opcode, code capeerr.Code)
	SetActiveSessions(n int)
}

// Controller holds the shared, concurrency-safe state every request is
// handled against.
type Controller struct {
	Creds    *credstore.Store
	Sessions *session.Table
	Sandbox  *sandbox.Sandbox
	Timeout  time.Duration
	Metrics  Metrics
}

// New constructs a Controller over the given shared stores.
func New(creds *credstore.Store, sessions *session.Table, sb *sandbox.Sandbox, timeout time.Duration) *Controller {
	return &Controller{Creds: creds, Sessions: sessions, Sandbox: sb, Timeout: timeout}
}

// Handle runs one request through authentication, session management, and
// dispatch, and always returns a well-formed Response. Request-level
// failures become a populated result code, never a Go error.
func (c *Controller) Handle(ctx context.Context, req *capeproto.Request) *capeproto.Response {
	perm, err := c.Creds.Authenticate(req.Username, req.Password)
	if err != nil {
		c.record(req.Opcode, capeerr.CodeOf(err))
		return &capeproto.Response{Code: capeerr.CodeOf(err)}
	}

	var newSessionID *uint32
	sessionID := req.SessionID
	if sessionID == 0 {
		id, issueErr := c.Sessions.Issue()
		if issueErr != nil {
			code := capeerr.CodeOf(issueErr)
			c.record(req.Opcode, code)
			return &capeproto.Response{Code: code}
		}
		sessionID = id
		newSessionID = &id
	} else if refreshErr := c.Sessions.ValidateAndRefresh(sessionID, c.Timeout); refreshErr != nil {
		code := capeerr.CodeOf(refreshErr)
		c.record(req.Opcode, code)
		return &capeproto.Response{Code: code}
	}

	if c.Metrics != nil {
		c.Metrics.SetActiveSessions(c.Sessions.Len())
	}

	code, content := c.dispatch(req, perm)
	c.record(req.Opcode, code)
	logger.DebugCtx(ctx, "request dispatched",
		logger.Opcode(uint8(req.Opcode)),
		logger.Username(req.Username),
		logger.SessionID(sessionID),
		logger.ResultCode(uint8(code)),
	)

	return &capeproto.Response{Code: code, NewSessionID: newSessionID, Content: content}
}

func (c *Controller) record(op capeproto.Opcode, code capeerr.Code) {
	if c.Metrics != nil {
		c.Metrics.ObserveRequest(op, code)
	}
}
