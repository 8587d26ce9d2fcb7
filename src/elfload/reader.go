package elfload

import (
	"io"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/vfs"
)

// fdReaderAt adapts a vfs.FileDesc_t's positioned read to io.ReaderAt, so
// Load can parse a VFS-backed binary straight from a tarfs-opened file
// descriptor without an intermediate in-memory copy.
type fdReaderAt struct {
	fd *vfs.FileDesc_t
}

// FileReaderAt wraps fd as an io.ReaderAt for elf.NewFile / Load.
func FileReaderAt(fd *vfs.FileDesc_t) io.ReaderAt {
	return fdReaderAt{fd: fd}
}

func (r fdReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.fd.Pread(p, off)
	if err != defs.Ok {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
