package workspacefs

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per stable error kind. Match with errors.Is.
var (
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidPath    = errors.New("invalid path")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrParentNotFound = errors.New("parent folder not found")
	ErrCannotMove     = errors.New("cannot move a folder into itself")
	ErrReadOnly       = errors.New("read-only filesystem")
	ErrDisconnected   = errors.New("workspace disconnected")
	ErrPartialMove    = errors.New("source copied but not removed")
	ErrNotDirectory   = errors.New("not a directory")
	ErrIsDirectory    = errors.New("is a directory")
)

// Kind is the stable name of an error class
type Kind string

const (
	KindNone           Kind = ""
	KindInvalidName    Kind = "InvalidName"
	KindInvalidPath    Kind = "InvalidPath"
	KindAlreadyExists  Kind = "AlreadyExists"
	KindNotFound       Kind = "NotFound"
	KindParentNotFound Kind = "ParentNotFound"
	KindCannotMove     Kind = "CannotMove"
	KindReadOnly       Kind = "ReadOnly"
	KindDisconnected   Kind = "Disconnected"
	KindPartialMove    Kind = "PartialMove"
	KindNotDirectory   Kind = "NotDirectory"
	KindIsDirectory    Kind = "IsDirectory"
	KindUnknown        Kind = "Unknown"
)

// ordered so that a PartialMove wrapping a Disconnected cause reports PartialMove
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrPartialMove, KindPartialMove},
	{ErrDisconnected, KindDisconnected},
	{ErrReadOnly, KindReadOnly},
	{ErrInvalidName, KindInvalidName},
	{ErrInvalidPath, KindInvalidPath},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrParentNotFound, KindParentNotFound},
	{ErrNotFound, KindNotFound},
	{ErrCannotMove, KindCannotMove},
	{ErrNotDirectory, KindNotDirectory},
	{ErrIsDirectory, KindIsDirectory},
}

// KindOf classifies err. nil yields KindNone, foreign errors KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Op names used in [Error]
const (
	OpValidate   = "validate"
	OpCreate     = "create"
	OpRead       = "read"
	OpWrite      = "write"
	OpRemove     = "remove"
	OpRename     = "rename"
	OpMkdir      = "mkdir"
	OpRmdir      = "rmdir"
	OpMove       = "move"
	OpCopy       = "copy"
	OpList       = "list"
	OpChdir      = "chdir"
	OpFlush      = "flush"
	OpRefresh    = "refresh"
	OpMount      = "mount"
	OpUnmount    = "unmount"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpLoadState  = "load-state"
)

// Error records the operation and path that failed along with the cause
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the op and path it occurred on
func NewError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// Errorf wraps a sentinel with extra detail, keeping errors.Is matching intact
func Errorf(op, path string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}
