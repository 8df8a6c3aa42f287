package fusemount

import (
	"context"
	"syscall"

	"github.com/brettbedarf/workspacefs"
	"github.com/brettbedarf/workspacefs/composite"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/brettbedarf/workspacefs/pathutil"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Namespace is what the mount serves; *composite.FileSystem satisfies it
type Namespace interface {
	workspacefs.FileSystem
	Move(source, targetDir string) error
	Rename(path, newName string) error
	MountFor(path string) (composite.Mount, bool)
}

// node is any file or folder. Its namespace path is derived from its place
// in the inode tree, so kernel renames need no bookkeeping here.
type node struct {
	fs.Inode
	ns Namespace
}

var (
	_ Namespace = (*composite.FileSystem)(nil)

	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func (n *node) nsPath() string {
	return pathutil.Normalize("/" + n.Path(nil))
}

func (n *node) child(name string) string {
	return pathutil.Join(n.nsPath(), name)
}

func (n *node) newChild(ctx context.Context, dir bool) *fs.Inode {
	mode := uint32(syscall.S_IFREG)
	if dir {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, &node{ns: n.ns}, fs.StableAttr{Mode: mode})
}

// fill sets out for path p
func fill(ns Namespace, p string, out *fuse.Attr) syscall.Errno {
	writable := true
	if m, ok := ns.MountFor(p); ok && m.ReadOnly {
		writable = false
	}

	if ns.IsDirectory(p) {
		out.Mode = syscall.S_IFDIR | permissions(true, writable)
		out.Nlink = 2
		return 0
	}
	if !ns.IsFile(p) {
		return syscall.ENOENT
	}
	data, err := workspacefs.ReadBinary(ns, p)
	if err != nil {
		return ToErrno(err)
	}
	out.Mode = syscall.S_IFREG | permissions(false, writable)
	out.Nlink = 1
	out.Size = uint64(len(data))
	return 0
}

func permissions(dir, writable bool) uint32 {
	switch {
	case dir && writable:
		return 0o755
	case dir:
		return 0o555
	case writable:
		return 0o644
	default:
		return 0o444
	}
}

func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if h, ok := fh.(*handle); ok {
		if errno := fill(n.ns, n.nsPath(), &out.Attr); errno != 0 {
			return errno
		}
		out.Size = h.size()
		return 0
	}
	return fill(n.ns, n.nsPath(), &out.Attr)
}

// Setattr handles truncation; other attributes are not stored
func (n *node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if h, isOpen := fh.(*handle); isOpen {
			h.truncate(int(size))
		} else {
			p := n.nsPath()
			data, err := workspacefs.ReadBinary(n.ns, p)
			if err != nil {
				return ToErrno(err)
			}
			if errno := ToErrno(n.ns.WriteFile(p, string(resize(data, int(size))))); errno != 0 {
				return errno
			}
		}
	}
	return n.Getattr(ctx, fh, out)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	if errno := fill(n.ns, p, &out.Attr); errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, out.Attr.Mode&syscall.S_IFDIR != 0), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.ns.ListDirectory(n.nsPath())
	if err != nil {
		return nil, ToErrno(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir() {
			mode = syscall.S_IFDIR
		}
		// the root lists mounts by display name; the kernel needs path names
		list = append(list, fuse.DirEntry{Name: pathutil.Leaf(e.Path), Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	p := n.nsPath()
	if n.ns.IsDirectory(p) {
		return nil, 0, syscall.EISDIR
	}
	h := &handle{node: n}
	if flags&syscall.O_TRUNC != 0 {
		h.dirty = true
		return h, 0, 0
	}
	data, err := workspacefs.ReadBinary(n.ns, p)
	if err != nil {
		return nil, 0, ToErrno(err)
	}
	h.data = data
	return h, 0, 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	logger := util.GetLogger("fusemount.Create")

	p := n.child(name)
	if n.ns.Exists(p) {
		return nil, nil, 0, syscall.EEXIST
	}
	if err := n.ns.WriteFile(p, ""); err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Create failed")
		return nil, nil, 0, ToErrno(err)
	}
	if errno := fill(n.ns, p, &out.Attr); errno != 0 {
		return nil, nil, 0, errno
	}
	child := &node{ns: n.ns}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
	return inode, &handle{node: child}, 0, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	if err := n.ns.CreateDirectory(p); err != nil {
		return nil, ToErrno(err)
	}
	if errno := fill(n.ns, p, &out.Attr); errno != 0 {
		return nil, errno
	}
	return n.newChild(ctx, true), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	if n.ns.IsDirectory(p) {
		return syscall.EISDIR
	}
	return ToErrno(n.ns.Delete(p))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	if !n.ns.IsDirectory(p) {
		if n.ns.Exists(p) {
			return syscall.ENOTDIR
		}
		return syscall.ENOENT
	}
	entries, err := n.ns.ListDirectory(p)
	if err != nil {
		return ToErrno(err)
	}
	if len(entries) > 0 {
		return syscall.ENOTEMPTY
	}
	return ToErrno(n.ns.Delete(p))
}

// renameNoReplace is RENAME_NOREPLACE from renameat2(2). Targets are never
// replaced, so it needs no handling beyond being accepted.
const renameNoReplace = 0x1

// Rename moves name into newParent as newName. Replacing an existing
// target is not supported.
func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	logger := util.GetLogger("fusemount.Rename")

	if flags&^renameNoReplace != 0 {
		return syscall.ENOTSUP
	}
	dst, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	src := n.child(name)
	dir := dst.nsPath()

	var err error
	switch {
	case dir == n.nsPath():
		err = n.ns.Rename(src, newName)
	case name == newName:
		err = n.ns.Move(src, dir)
	default:
		if err = n.ns.Move(src, dir); err == nil {
			err = n.ns.Rename(pathutil.Join(dir, name), newName)
		}
	}
	if err != nil {
		logger.Debug().Err(err).Str("from", src).Str("to", pathutil.Join(dir, newName)).Msg("Rename failed")
	}
	return ToErrno(err)
}
