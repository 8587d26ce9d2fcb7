package vfs

import (
	"strings"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// PathNameMax is the path length limit spec.md's filesystem layout section
// states, including the terminator.
const PathNameMax = 400

// MountPoint_t is one node of the intrusive mount-point list: a canonical
// path (no trailing slash except root) and the filesystem it targets.
type MountPoint_t struct {
	link structs.List_t[MountPoint_t]
	Path string
	Fs   *FileSystem_t
}

// VFS_t is the global mount table and path-traversal entry point. It
// shares its preemption counter with the scheduler: traversal disables
// preemption throughout, exactly as a timer-driven task switch would be
// disabled by any other Preemptlock_t holder.
type VFS_t struct {
	pcnt  *lock.Preemptcnt_t
	first *structs.List_t[MountPoint_t]
}

// NewVFS creates an empty mount table governed by pcnt (typically
// sched.Runqueue_t.Preemptcnt()).
func NewVFS(pcnt *lock.Preemptcnt_t) *VFS_t {
	return &VFS_t{pcnt: pcnt}
}

// Mount appends a mount-point record for fs at path. Re-mounting over an
// existing mount is not specified and not checked for, per spec.md.
func (v *VFS_t) Mount(path string, fs *FileSystem_t) defs.Err_t {
	if len(path) == 0 || len(path) >= PathNameMax {
		return defs.PathTooLong
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		return defs.Invalid
	}
	m := &MountPoint_t{Path: path, Fs: fs}
	m.link.Init(m)
	if v.first == nil {
		v.first = &m.link
	} else {
		v.first.Prev().InsertAfter(&m.link)
	}
	return 0
}

// mountMatches reports whether mnt is a whole-segment prefix of path: the
// match is valid iff mnt.Path is exactly "/" (root), an exact match, or
// path continues with a '/' right after the prefix.
func mountMatches(mnt *MountPoint_t, path string) bool {
	l := len(mnt.Path)
	if len(path) < l || path[:l] != mnt.Path {
		return false
	}
	return l == 1 || l == len(path) || path[l] == '/'
}

// findMount returns the longest-matching mount point for path.
func (v *VFS_t) findMount(path string) *MountPoint_t {
	if v.first == nil {
		return nil
	}
	var best *MountPoint_t
	v.first.Each(func(n *structs.List_t[MountPoint_t]) bool {
		m := n.Owner
		if mountMatches(m, path) && (best == nil || len(m.Path) > len(best.Path)) {
			best = m
		}
		return true
	})
	return best
}

// Traverse resolves path to the inode it names, with preemption disabled
// throughout (spec.md §4.5's fast, non-blocking traversal). The caller
// owns one reference to the returned inode and must release it with
// ReleaseInode.
func (v *VFS_t) Traverse(path string) (*Inode_t, defs.Err_t) {
	if len(path) == 0 {
		return nil, defs.Invalid
	}
	pl := lock.NewPreemptlock(v.pcnt)
	defer pl.Release()

	mnt := v.findMount(path)
	if mnt == nil {
		return nil, defs.NoEntry
	}

	rest := path[len(mnt.Path):]
	if mnt.Path == "/" {
		rest = path[1:]
	}

	curr := mnt.Fs.root
	descended := false
	for len(rest) > 0 {
		for len(rest) > 0 && rest[0] == '/' {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			break
		}
		end := strings.IndexByte(rest, '/')
		var segment string
		if end < 0 {
			segment, rest = rest, ""
		} else {
			segment, rest = rest[:end], rest[end+1:]
		}

		found, err := curr.Fs.Ops.Lookup(curr, segment)
		if err != 0 {
			if descended {
				ReleaseInode(curr)
			}
			return nil, err
		}
		next, err := curr.Fs.GetInodeStruct(found, curr)
		if descended {
			ReleaseInode(curr)
		}
		if err != 0 {
			return nil, err
		}
		curr = next
		descended = true
	}
	if !descended {
		// path named the mount point itself: the loop above never ran,
		// so curr is still mnt.Fs.root and never went through
		// GetInodeStruct's ref. Every other exit takes its ref there;
		// take it explicitly here so the documented "caller owns one
		// ref" contract holds for this path too.
		curr.Ref()
	}
	return curr, 0
}
