package vfs

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/lock"
)

// fakeFs is a tiny in-memory tree used to test the cache/traversal/file
// descriptor machinery independently of any real on-disk format.
type fakeFs struct {
	children map[uint64]map[string]uint64
	meta     map[uint64]Meta_t
	content  map[uint64][]byte
}

func newFakeFs() *fakeFs {
	return &fakeFs{
		children: map[uint64]map[string]uint64{
			2: {"hello.txt": 3, "foo": 4},
			4: {"bar.txt": 5},
		},
		meta: map[uint64]Meta_t{
			2: {Mode: ModeDir},
			3: {Mode: ModeReg, Size: 2},
			4: {Mode: ModeDir},
			5: {Mode: ModeReg, Size: 3},
		},
		content: map[uint64][]byte{
			3: []byte("hi"),
			5: []byte("bar"),
		},
	}
}

func (f *fakeFs) ReadInode(fs *FileSystem_t, inum uint64) (Meta_t, defs.Err_t) {
	m, ok := f.meta[inum]
	if !ok {
		return Meta_t{}, defs.NoEntry
	}
	return m, 0
}

func (f *fakeFs) Lookup(inode *Inode_t, name string) (uint64, defs.Err_t) {
	kids := f.children[inode.Inum]
	if kids == nil {
		return 0, defs.NoEntry
	}
	inum, ok := kids[name]
	if !ok {
		return 0, defs.NoEntry
	}
	return inum, 0
}

func (f *fakeFs) Create(inode *Inode_t, name string, mode uint16) (uint64, defs.Err_t) {
	return 0, defs.NotPermitted
}

func (f *fakeFs) Unlink(inode *Inode_t, name string) defs.Err_t {
	return defs.NotPermitted
}

func (f *fakeFs) SetFileMethods(inode *Inode_t, fd *FileDesc_t) {
	data := f.content[inode.Inum]
	fd.FRead = func(buf []byte, offset int64) (int, defs.Err_t) {
		if offset >= int64(len(data)) {
			return 0, 0
		}
		n := copy(buf, data[offset:])
		return n, 0
	}
	fd.FWrite = func(buf []byte, offset int64) (int, defs.Err_t) {
		return 0, defs.NotPermitted
	}
}

func mustMount(t *testing.T, v *VFS_t, path string, fs *FileSystem_t) {
	t.Helper()
	if err := v.Mount(path, fs); err != 0 {
		t.Fatalf("mount %q: %v", path, err)
	}
}

// S3: traverse the tar-shaped tree, check the documented refcount
// transitions (2 after open, 1 after close, 0 after release).
func TestVFSTraverseAndRefcount(t *testing.T) {
	fs, err := NewFileSystem(newFakeFs())
	if err != 0 {
		t.Fatalf("NewFileSystem: %v", err)
	}
	pcnt := &lock.Preemptcnt_t{}
	v := NewVFS(pcnt)
	mustMount(t, v, "/", fs)

	inode, err := v.Traverse("/hello.txt")
	if err != 0 {
		t.Fatalf("traverse /hello.txt: %v", err)
	}
	if inode.Inum != 3 {
		t.Fatalf("expected inode 3, got %d", inode.Inum)
	}
	if inode.Refcount() != 1 {
		t.Fatalf("expected refcount 1 right after traverse, got %d", inode.Refcount())
	}

	fd := Open(inode)
	if inode.Refcount() != 2 {
		t.Fatalf("expected refcount 2 after open, got %d", inode.Refcount())
	}

	buf := make([]byte, 16)
	n, err := fd.Read(buf)
	if err != 0 || string(buf[:n]) != "hi" {
		t.Fatalf("unexpected read result: n=%d err=%v buf=%q", n, err, buf[:n])
	}

	fd.Release()
	if inode.Refcount() != 1 {
		t.Fatalf("expected refcount 1 after close, got %d", inode.Refcount())
	}

	ReleaseInode(inode)
	if inode.Refcount() != 0 {
		t.Fatalf("expected refcount 0 after release, got %d", inode.Refcount())
	}

	again, err := fs.GetInodeStruct(3, fs.root)
	if err != 0 {
		t.Fatalf("re-fetching inode 3 after release: %v", err)
	}
	if again.Refcount() != 1 {
		t.Fatalf("expected a freshly re-read inode at refcount 1, got %d", again.Refcount())
	}
	ReleaseInode(again)
}

func TestVFSTraverseNestedAndMissing(t *testing.T) {
	fs, _ := NewFileSystem(newFakeFs())
	v := NewVFS(&lock.Preemptcnt_t{})
	mustMount(t, v, "/", fs)

	if inode, err := v.Traverse("/foo/bar.txt"); err != 0 || inode.Inum != 5 {
		t.Fatalf("traverse /foo/bar.txt: inode=%v err=%v", inode, err)
	} else {
		ReleaseInode(inode)
	}

	if inode, err := v.Traverse("/foo"); err != 0 || inode.Inum != 4 {
		t.Fatalf("traverse /foo: inode=%v err=%v", inode, err)
	} else {
		ReleaseInode(inode)
	}

	if _, err := v.Traverse("/does/not/exist"); err != defs.NoEntry {
		t.Fatalf("expected no_entry, got %v", err)
	}
}

func TestVFSTraverseEmptyPathInvalid(t *testing.T) {
	v := NewVFS(&lock.Preemptcnt_t{})
	if _, err := v.Traverse(""); err != defs.Invalid {
		t.Fatalf("expected invalid for empty path, got %v", err)
	}
}

func TestVFSTraverseNoMounts(t *testing.T) {
	v := NewVFS(&lock.Preemptcnt_t{})
	if _, err := v.Traverse("/x"); err != defs.NoEntry {
		t.Fatalf("expected no_entry with no mounts, got %v", err)
	}
}

// Invariant 4: traverse chooses the unique longest whole-segment mount
// prefix, not merely the first mount that matches.
func TestMountMatchingLongestPrefix(t *testing.T) {
	rootFs, _ := NewFileSystem(newFakeFs())
	subFs, _ := NewFileSystem(newFakeFs())

	v := NewVFS(&lock.Preemptcnt_t{})
	mustMount(t, v, "/", rootFs)
	mustMount(t, v, "/mnt", subFs)

	inode, err := v.Traverse("/mnt/hello.txt")
	if err != 0 {
		t.Fatalf("traverse /mnt/hello.txt: %v", err)
	}
	if inode.Fs != subFs {
		t.Fatalf("expected the longer /mnt mount to win, got the root mount's filesystem")
	}
	ReleaseInode(inode)

	inode, err = v.Traverse("/mnting/hello.txt")
	if err == 0 {
		t.Fatalf("expected /mnting (not a whole-segment match of /mnt) to fall through to root and miss, got inode %v", inode)
	}
}

// Traverse("/") - and, equally, traversing any path that names a mount
// point exactly (so the loop body never runs) - must still return a
// referenced inode: repeated traverse+release cycles on a bare mount
// path must not drive the pinned root's refcount negative.
func TestVFSTraverseMountRootRefcounted(t *testing.T) {
	rootFs, _ := NewFileSystem(newFakeFs())
	subFs, _ := NewFileSystem(newFakeFs())

	v := NewVFS(&lock.Preemptcnt_t{})
	mustMount(t, v, "/", rootFs)
	mustMount(t, v, "/initrd", subFs)

	for i := 0; i < 3; i++ {
		inode, err := v.Traverse("/")
		if err != 0 {
			t.Fatalf("traverse /: %v", err)
		}
		if inode != rootFs.root {
			t.Fatalf("expected the root mount's root inode, got %v", inode)
		}
		if inode.Refcount() < 1 {
			t.Fatalf("expected a live reference after traversing /, got refcount %d", inode.Refcount())
		}
		ReleaseInode(inode)
	}

	for i := 0; i < 3; i++ {
		inode, err := v.Traverse("/initrd")
		if err != 0 {
			t.Fatalf("traverse /initrd: %v", err)
		}
		if inode != subFs.root {
			t.Fatalf("expected the /initrd mount's root inode, got %v", inode)
		}
		if inode.Refcount() < 1 {
			t.Fatalf("expected a live reference after traversing /initrd, got refcount %d", inode.Refcount())
		}
		ReleaseInode(inode)
	}
}

// Invariant 3: the inode cache hands back the same struct on repeat
// lookups rather than constructing a second one.
func TestInodeCacheUniqueness(t *testing.T) {
	fs, _ := NewFileSystem(newFakeFs())
	v := NewVFS(&lock.Preemptcnt_t{})
	mustMount(t, v, "/", fs)

	a, err := v.Traverse("/hello.txt")
	if err != 0 {
		t.Fatalf("first traverse: %v", err)
	}
	b, err := v.Traverse("/hello.txt")
	if err != 0 {
		t.Fatalf("second traverse: %v", err)
	}
	if a != b {
		t.Fatalf("expected the same cached inode struct, got distinct pointers")
	}
	if a.Refcount() != 2 {
		t.Fatalf("expected refcount 2 after two traversals, got %d", a.Refcount())
	}
	ReleaseInode(a)
	ReleaseInode(b)
}

// countingFs wraps fakeFs to count ReadInode calls, for the singleflight
// coalescing test below.
type countingFs struct {
	*fakeFs
	reads int32
}

func (f *countingFs) ReadInode(fs *FileSystem_t, inum uint64) (Meta_t, defs.Err_t) {
	atomic.AddInt32(&f.reads, 1)
	return f.fakeFs.ReadInode(fs, inum)
}

// Concurrent misses on the same inum must coalesce into one ReadInode
// call and leave the inode with exactly one reference per caller, not an
// over- or under-count from two callers racing to build it.
func TestGetInodeStructCoalescesConcurrentMisses(t *testing.T) {
	cfs := &countingFs{fakeFs: newFakeFs()}
	fs, err := NewFileSystem(cfs)
	if err != 0 {
		t.Fatalf("NewFileSystem: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	nodes := make([]*Inode_t, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node, err := fs.GetInodeStruct(4, fs.root)
			if err != 0 {
				t.Errorf("GetInodeStruct: %v", err)
				return
			}
			nodes[i] = node
		}(i)
	}
	wg.Wait()

	first := nodes[0]
	for i, node := range nodes {
		if node != first {
			t.Fatalf("goroutine %d got a distinct inode struct, not the shared one", i)
		}
	}
	if got := atomic.LoadInt32(&cfs.reads); got != 1 {
		t.Fatalf("expected exactly one ReadInode call, got %d", got)
	}
	if got := first.Refcount(); got != n {
		t.Fatalf("expected refcount %d after %d concurrent callers, got %d", n, n, got)
	}
}

func TestInodeCacheDoubleInsertPanics(t *testing.T) {
	fs, _ := NewFileSystem(newFakeFs())
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic inserting an already-present inode number")
		}
	}()
	fs.inodes.Insert(RootInum, fs.root)
}
