package fusemount

import (
	"syscall"

	"github.com/brettbedarf/workspacefs"
)

// ToErrno maps a provider error to the errno reported to the kernel
func ToErrno(err error) syscall.Errno {
	switch workspacefs.KindOf(err) {
	case workspacefs.KindNone:
		return 0
	case workspacefs.KindNotFound, workspacefs.KindParentNotFound:
		return syscall.ENOENT
	case workspacefs.KindAlreadyExists:
		return syscall.EEXIST
	case workspacefs.KindInvalidName, workspacefs.KindInvalidPath, workspacefs.KindCannotMove:
		return syscall.EINVAL
	case workspacefs.KindReadOnly:
		return syscall.EROFS
	case workspacefs.KindDisconnected:
		return syscall.ENOTCONN
	case workspacefs.KindNotDirectory:
		return syscall.ENOTDIR
	case workspacefs.KindIsDirectory:
		return syscall.EISDIR
	default:
		return syscall.EIO
	}
}
