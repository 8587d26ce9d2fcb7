// Package vfs is the mount table, per-filesystem inode cache, path
// traversal, and file descriptor layer. It knows nothing about any
// particular on-disk (or in-archive) format; a filesystem plugs in by
// implementing FsOps_i, the same vtable split spec.md's inode describes
// (lookup/create/unlink/set_file_methods) plus the on-disk-read hook
// get_inode_struct needs.
package vfs

import (
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// Inode mode bits, borrowed from the original kernel's S_IF* constants.
const (
	ModeFmt  = 0170000
	ModeReg  = 0100000
	ModeDir  = 0040000
	ModeChr  = 0020000
)

// Meta_t is the subset of on-disk inode metadata a filesystem reports back
// through ReadInode: mode/uid/gid/size/link-count/dev, exactly the fields
// spec.md's inode carries.
type Meta_t struct {
	Mode  uint16
	Uid   uint32
	Gid   uint32
	Nlink uint32
	Size  int64
	Dev   int
}

// FsOps_i is the per-filesystem vtable spec.md's inode describes: lookup,
// create, unlink, and the method that installs a freshly opened file
// descriptor's f_read/f_write. ReadInode is the synchronous on-disk load
// get_inode_struct performs on a cache miss.
type FsOps_i interface {
	ReadInode(fs *FileSystem_t, inum uint64) (Meta_t, defs.Err_t)
	Lookup(inode *Inode_t, name string) (uint64, defs.Err_t)
	Create(inode *Inode_t, name string, mode uint16) (uint64, defs.Err_t)
	Unlink(inode *Inode_t, name string) defs.Err_t
	SetFileMethods(inode *Inode_t, fd *FileDesc_t)
}

// Inode_t is the in-memory representation of one filesystem object:
// refcounted, carrying its owning filesystem, a refcounted back-reference
// to its parent, its inode number, and on-disk metadata. Pinned is set on
// a filesystem's root inode, which is never evicted regardless of its
// refcount reaching zero.
type Inode_t struct {
	Fs     *FileSystem_t
	Parent *Inode_t
	Inum   uint64
	Meta   Meta_t
	Pinned bool

	refcnt int32
}

// Ref increments the inode's reference count.
func (i *Inode_t) Ref() {
	atomic.AddInt32(&i.refcnt, 1)
}

// FileSystem_t is one mounted filesystem: its vtable and its inode cache
// (a 256-bucket hash table keyed by inode number, golden-ratio hashed on
// the low bits, per spec.md §4.5).
type FileSystem_t struct {
	Ops    FsOps_i
	inodes *structs.Hashtable_t[uint64, *Inode_t]
	root   *Inode_t

	// misses coalesces concurrent cache misses on the same inum into one
	// Ops.ReadInode call: the scheduler preempts a task mid-read, and two
	// tasks traversing the same path can both miss the same inode before
	// either has inserted it.
	misses singleflight.Group
}

const inodeCacheBuckets = 256

func inodeHash(inum uint64) uint32 {
	return uint32(inum)
}

// NewFileSystem installs the root inode (number 2, pinned) by reading it
// synchronously through ops, and allocates the filesystem's inode hash
// table. This is the in-memory half of spec.md's mount(): the mount-point
// record itself is VFS_t.Mount's job.
func NewFileSystem(ops FsOps_i) (*FileSystem_t, defs.Err_t) {
	fs := &FileSystem_t{
		Ops:    ops,
		inodes: structs.MkHashtable[uint64, *Inode_t](inodeCacheBuckets, inodeHash),
	}
	meta, err := ops.ReadInode(fs, RootInum)
	if err != 0 {
		return nil, err
	}
	root := &Inode_t{Fs: fs, Inum: RootInum, Meta: meta, Pinned: true, refcnt: 1}
	fs.inodes.Insert(RootInum, root)
	fs.root = root
	return fs, 0
}

// RootInum is every filesystem's root inode number, per spec.md §4.5.
const RootInum = 2

// inodeReadErr wraps a defs.Err_t so it can travel through
// singleflight.Group.Do, which only deals in the error interface.
type inodeReadErr struct{ err defs.Err_t }

func (e inodeReadErr) Error() string { return "vfs: inode read failed" }

// GetInodeStruct implements spec.md's get_inode_struct: a cache hit takes
// a ref and returns it. A miss goes through misses so that concurrent
// misses on the same inum share one Ops.ReadInode call and one freshly
// built Inode_t rather than racing to insert two; the shared builder
// leaves the node's refcount at zero, and every caller - leader or
// follower - takes exactly one Ref() on the way out, so the count ends up
// the same as if misses never overlapped. The persistent Parent
// back-pointer (and its ref) is only installed by whichever call actually
// built the node.
func (fs *FileSystem_t) GetInodeStruct(inum uint64, parent *Inode_t) (*Inode_t, defs.Err_t) {
	if cur, ok := fs.inodes.Get(inum); ok {
		cur.Ref()
		return cur, 0
	}
	key := strconv.FormatUint(inum, 10)
	v, doErr, _ := fs.misses.Do(key, func() (interface{}, error) {
		if cur, ok := fs.inodes.Get(inum); ok {
			return cur, nil
		}
		meta, err := fs.Ops.ReadInode(fs, inum)
		if err != 0 {
			return nil, inodeReadErr{err}
		}
		node := &Inode_t{Fs: fs, Parent: parent, Inum: inum, Meta: meta}
		if parent != nil {
			parent.Ref()
		}
		fs.inodes.Insert(inum, node)
		return node, nil
	})
	if doErr != nil {
		return nil, doErr.(inodeReadErr).err
	}
	node := v.(*Inode_t)
	node.Ref()
	return node, 0
}

// ReleaseInode drops a reference. A pinned inode (a filesystem root) is
// never removed from the cache even if its count reaches zero. Otherwise,
// at zero, the inode is removed from the cache and its parent reference
// released transitively, per spec.md's release_inode.
func ReleaseInode(i *Inode_t) {
	c := atomic.AddInt32(&i.refcnt, -1)
	if c < 0 {
		panic("vfs: inode refcount went negative")
	}
	if c != 0 || i.Pinned {
		return
	}
	i.Fs.inodes.Remove(i.Inum)
	if i.Parent != nil {
		ReleaseInode(i.Parent)
	}
}

// Refcount reports the inode's current reference count, for tests.
func (i *Inode_t) Refcount() int32 {
	return atomic.LoadInt32(&i.refcnt)
}
