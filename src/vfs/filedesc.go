package vfs

import (
	"sync/atomic"

	"github.com/farberbrodsky/tinylittleos/src/defs"
)

// FileDesc_t is an open file description: a reference on its inode plus a
// cursor, and the f_read/f_write functions the inode's SetFileMethods
// installed at open time. Several Fd's (in the original kernel, process
// file-descriptor-table slots) may share one FileDesc_t via Dup, so it is
// itself refcounted.
type FileDesc_t struct {
	Inode *Inode_t

	FRead  func(buf []byte, offset int64) (int, defs.Err_t)
	FWrite func(buf []byte, offset int64) (int, defs.Err_t)

	pos    int64
	refcnt int32
}

// Open allocates a FileDesc_t for inode (taking a ref on it) and dispatches
// to the inode's filesystem to install FRead/FWrite, per spec.md's
// inode::open.
func Open(inode *Inode_t) *FileDesc_t {
	inode.Ref()
	fd := &FileDesc_t{Inode: inode, refcnt: 1}
	inode.Fs.Ops.SetFileMethods(inode, fd)
	return fd
}

// Dup takes another reference to fd, for processes that share an open file
// description across a fork-like duplication.
func Dup(fd *FileDesc_t) *FileDesc_t {
	atomic.AddInt32(&fd.refcnt, 1)
	return fd
}

// Read reads into buf at the current cursor and advances it by the
// returned count when non-negative.
func (fd *FileDesc_t) Read(buf []byte) (int, defs.Err_t) {
	n, err := fd.FRead(buf, fd.pos)
	if err == 0 && n >= 0 {
		fd.pos += int64(n)
	}
	return n, err
}

// Write writes buf at the current cursor and advances it by the returned
// count when non-negative.
func (fd *FileDesc_t) Write(buf []byte) (int, defs.Err_t) {
	n, err := fd.FWrite(buf, fd.pos)
	if err == 0 && n >= 0 {
		fd.pos += int64(n)
	}
	return n, err
}

// Pread reads up to len(buf) bytes at offset without disturbing the cursor.
func (fd *FileDesc_t) Pread(buf []byte, offset int64) (int, defs.Err_t) {
	return fd.FRead(buf, offset)
}

// Pwrite writes buf at offset without disturbing the cursor.
func (fd *FileDesc_t) Pwrite(buf []byte, offset int64) (int, defs.Err_t) {
	return fd.FWrite(buf, offset)
}

// Release drops a reference to fd; when the last one goes, the inode
// reference taken at Open is released too.
func (fd *FileDesc_t) Release() {
	c := atomic.AddInt32(&fd.refcnt, -1)
	if c < 0 {
		panic("vfs: file descriptor refcount went negative")
	}
	if c == 0 {
		ReleaseInode(fd.Inode)
	}
}
