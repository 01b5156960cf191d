package controller

import (
	"os"
	"sort"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
	"github.com/marmos91/cape/internal/credstore"
	"github.com/marmos91/cape/internal/sandbox"
)

// dispatch applies the opcode's permission gate, then runs the operation.
// It never returns a Go error; every outcome is a result code plus
// optional content.
func (c *Controller) dispatch(req *capeproto.Request, perm credstore.Permission) (capeerr.Code, []byte) {
	switch req.Opcode {
	case capeproto.OpLocal:
		return capeerr.Success, nil

	case capeproto.OpUserOp:
		return c.dispatchUserOp(req, perm)

	case capeproto.OpDelFile:
		if perm < credstore.ReadWrite {
			return capeerr.PermissionError, nil
		}
		return c.delFile(req.Sub.Std.Path)

	case capeproto.OpMkdir:
		if perm < credstore.ReadWrite {
			return capeerr.PermissionError, nil
		}
		return c.mkdir(req.Sub.Std.Path)

	case capeproto.OpPutFile:
		if perm < credstore.ReadWrite {
			return capeerr.PermissionError, nil
		}
		return c.putFile(req.Sub.Std.Path, req.Sub.Std.Stream)

	case capeproto.OpListDir:
		return c.listDir(req.Sub.Std.Path)

	case capeproto.OpGetFile:
		return c.getFile(req.Sub.Std.Path)

	default:
		return capeerr.Failure, nil
	}
}

func (c *Controller) dispatchUserOp(req *capeproto.Request, callerPerm credstore.Permission) (capeerr.Code, []byte) {
	switch req.UserFlag {
	case capeproto.UserFlagCreate:
		newPerm := credstore.Permission(req.Permission)
		if callerPerm < newPerm {
			return capeerr.PermissionError, nil
		}
		err := c.Creds.CreateUser(callerPerm, req.Sub.User.NewUsername, req.Sub.User.NewPassword, newPerm)
		return capeerr.CodeOf(err), nil

	case capeproto.UserFlagDelete:
		if callerPerm != credstore.Admin {
			return capeerr.PermissionError, nil
		}
		err := c.Creds.DeleteUser(callerPerm, req.Sub.User.NewUsername)
		return capeerr.CodeOf(err), nil

	default:
		return capeerr.Failure, nil
	}
}

func (c *Controller) delFile(rel string) (capeerr.Code, []byte) {
	vp, err := c.Sandbox.ResolveExisting(rel)
	if err != nil {
		return capeerr.CodeOf(err), nil
	}

	if sandbox.IsDir(vp) {
		entries, err := os.ReadDir(vp.String())
		if err != nil {
			return capeerr.IOError, nil
		}
		if len(entries) > 0 {
			return capeerr.DirNotEmpty, nil
		}
		if err := os.Remove(vp.String()); err != nil {
			return capeerr.IOError, nil
		}
		return capeerr.Success, nil
	}

	if err := os.Remove(vp.String()); err != nil {
		return capeerr.IOError, nil
	}
	return capeerr.Success, nil
}

func (c *Controller) mkdir(rel string) (capeerr.Code, []byte) {
	vp, err := c.Sandbox.ResolveForCreate(rel)
	if err != nil {
		return capeerr.CodeOf(err), nil
	}
	if sandbox.Exists(vp) {
		return capeerr.DirExists, nil
	}
	if err := os.Mkdir(vp.String(), 0o755); err != nil {
		return capeerr.IOError, nil
	}
	return capeerr.Success, nil
}

func (c *Controller) putFile(rel string, stream []byte) (capeerr.Code, []byte) {
	vp, err := c.Sandbox.ResolveForCreate(rel)
	if err != nil {
		return capeerr.CodeOf(err), nil
	}
	if sandbox.Exists(vp) {
		return capeerr.FileExists, nil
	}
	if err := os.WriteFile(vp.String(), stream, 0o644); err != nil {
		return capeerr.IOError, nil
	}
	return capeerr.Success, nil
}

func (c *Controller) getFile(rel string) (capeerr.Code, []byte) {
	vp, err := c.Sandbox.ResolveExisting(rel)
	if err != nil {
		return capeerr.CodeOf(err), nil
	}
	if sandbox.IsDir(vp) {
		return capeerr.PathNotFile, nil
	}
	data, err := os.ReadFile(vp.String())
	if err != nil {
		return capeerr.IOError, nil
	}
	if len(data) == 0 {
		return capeerr.FileEmpty, nil
	}
	return capeerr.Success, data
}

func (c *Controller) listDir(rel string) (capeerr.Code, []byte) {
	vp, err := c.Sandbox.ResolveExisting(rel)
	if err != nil {
		return capeerr.CodeOf(err), nil
	}
	if !sandbox.IsDir(vp) {
		return capeerr.PathNotDir, nil
	}

	entries, err := os.ReadDir(vp.String())
	if err != nil {
		return capeerr.IOError, nil
	}

	names := make([]string, 0, len(entries))
	lines := make(map[string]string, len(entries))
	for _, e := range entries {
		var tag string
		switch {
		case e.Type().IsRegular():
			tag = "F"
		case e.IsDir():
			tag = "D"
		default:
			// Only regular files and directories are listed.
			continue
		}
		names = append(names, e.Name())
		lines[e.Name()] = tag + " " + e.Name() + "\n"
	}
	if len(names) == 0 {
		return capeerr.DirEmpty, nil
	}

	sort.Strings(names)
	var out []byte
	for _, name := range names {
		out = append(out, lines[name]...)
	}
	return capeerr.Success, out
}
