// Package tarfs is a read-only filesystem backed by a ustar archive linked
// into the kernel image as the initrd. It implements vfs.FsOps_i by
// scanning the archive header-by-header once at construction time.
package tarfs

import (
	"bytes"
	"strings"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/vfs"
)

const (
	blockSize = 512
	nameOff   = 0
	nameLen   = 100
	sizeOff   = 124
	sizeLen   = 11
	magicOff  = 257
)

type tarEntry struct {
	isDir bool
	data  []byte
}

// Tarfs_t is the in-memory index built by walking a ustar archive once.
// The archive's own implicit root (never itself a recorded header) is
// inode number 2; the first recorded header is inode 3. Every recorded
// entry consumes one inode number for itself plus one more per '/' in its
// path, so intermediate directories are addressable even though nothing
// in the archive records them directly (the first entry to need a given
// directory prefix is the one that gets to name it; a later entry under
// the same prefix still advances the counter, leaving a harmless unused
// inode number behind, exactly as spec.md's inode-numbering rule implies).
type Tarfs_t struct {
	pathToInum map[string]uint64
	inumToPath map[uint64]string
	entries    map[uint64]*tarEntry
}

// New walks archive and builds the inode-number index. It does not copy
// the archive's data; entries reference slices of it directly.
func New(archive []byte) *Tarfs_t {
	t := &Tarfs_t{
		pathToInum: map[string]uint64{"": vfs.RootInum},
		inumToPath: map[uint64]string{vfs.RootInum: ""},
		entries:    map[uint64]*tarEntry{},
	}
	counter := uint64(vfs.RootInum + 1)
	ptr := 0
	for ptr+blockSize <= len(archive) && bytes.Equal(archive[ptr+magicOff:ptr+magicOff+5], []byte("ustar")) {
		name := cstr(archive[ptr+nameOff : ptr+nameOff+nameLen])
		size := parseOctal(archive[ptr+sizeOff : ptr+sizeOff+sizeLen])
		isDir := strings.HasSuffix(name, "/")
		clean := strings.TrimSuffix(name, "/")

		inum := counter
		counter++
		data := archive[ptr+blockSize : ptr+blockSize+size]
		t.register(clean, inum, &tarEntry{isDir: isDir, data: data})

		parts := strings.Split(clean, "/")
		for i := 1; i < len(parts); i++ {
			prefix := strings.Join(parts[:i], "/")
			if _, ok := t.pathToInum[prefix]; !ok {
				t.register(prefix, counter, &tarEntry{isDir: true})
			}
			counter++
		}

		ptr += blockSize * (1 + (size+blockSize-1)/blockSize)
	}
	return t
}

func (t *Tarfs_t) register(path string, inum uint64, e *tarEntry) {
	t.pathToInum[path] = inum
	t.inumToPath[inum] = path
	t.entries[inum] = e
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parseOctal parses the zero-padded octal size field, stopping at the
// first non-digit byte (the field's NUL or space terminator).
func parseOctal(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '7' {
			break
		}
		n = n<<3 + int(c-'0')
	}
	return n
}

func (t *Tarfs_t) ReadInode(fs *vfs.FileSystem_t, inum uint64) (vfs.Meta_t, defs.Err_t) {
	if inum == vfs.RootInum {
		return vfs.Meta_t{Mode: vfs.ModeDir}, 0
	}
	e, ok := t.entries[inum]
	if !ok {
		return vfs.Meta_t{}, defs.NoEntry
	}
	if e.isDir {
		return vfs.Meta_t{Mode: vfs.ModeDir}, 0
	}
	return vfs.Meta_t{Mode: vfs.ModeReg, Size: int64(len(e.data))}, 0
}

// Lookup concatenates the current inode's archive path with name and
// checks for a matching recorded or synthesized directory entry.
func (t *Tarfs_t) Lookup(inode *vfs.Inode_t, name string) (uint64, defs.Err_t) {
	base := t.inumToPath[inode.Inum]
	full := name
	if base != "" {
		full = base + "/" + name
	}
	inum, ok := t.pathToInum[full]
	if !ok {
		return 0, defs.NoEntry
	}
	return inum, 0
}

func (t *Tarfs_t) Create(inode *vfs.Inode_t, name string, mode uint16) (uint64, defs.Err_t) {
	return 0, defs.NotPermitted
}

func (t *Tarfs_t) Unlink(inode *vfs.Inode_t, name string) defs.Err_t {
	return defs.NotPermitted
}

func (t *Tarfs_t) SetFileMethods(inode *vfs.Inode_t, fd *vfs.FileDesc_t) {
	e := t.entries[inode.Inum]
	var data []byte
	if e != nil {
		data = e.data
	}
	fd.FRead = func(buf []byte, offset int64) (int, defs.Err_t) {
		if offset < 0 || offset >= int64(len(data)) {
			return 0, 0
		}
		return copy(buf, data[offset:]), 0
	}
	fd.FWrite = func(buf []byte, offset int64) (int, defs.Err_t) {
		return 0, defs.NotPermitted
	}
}
