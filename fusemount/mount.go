// Package fusemount serves a workspace namespace as a FUSE filesystem
package fusemount

import (
	"fmt"
	"os"
	"time"

	"github.com/brettbedarf/workspacefs/config"
	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server is a mounted namespace
type Server struct {
	srv        *fuse.Server
	mountpoint string
}

func seconds(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}

// Mount serves ns at mountpoint, creating the directory when missing
func Mount(mountpoint string, ns Namespace, opts config.MountOptions) (*Server, error) {
	logger := util.GetLogger("fusemount.Mount")

	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", mountpoint, err)
	}

	root := &node{ns: ns}
	srv, err := fs.Mount(mountpoint, root, &fs.Options{
		AttrTimeout:  seconds(opts.AttrTimeout),
		EntryTimeout: seconds(opts.EntryTimeout),
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug,
			Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting at %s: %w", mountpoint, err)
	}

	logger.Info().Str("mountpoint", mountpoint).Msg("Mounted")
	return &Server{srv: srv, mountpoint: mountpoint}, nil
}

// Mountpoint returns the directory the namespace is served at
func (s *Server) Mountpoint() string { return s.mountpoint }

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() { s.srv.Wait() }

// Unmount cleanly unmounts the filesystem
func (s *Server) Unmount() error {
	return s.srv.Unmount()
}
