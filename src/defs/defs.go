// Package defs holds identifiers shared across kernel packages: error
// codes, id types, and the handful of device numbers the core needs to
// agree on with its thin hardware adapters.
package defs

import "fmt"

/// Err_t is a kernel error code. Zero is success; negative values name a
/// failure kind from the table in the error handling design. Non-negative
/// ssize_t-style return values from read/write are plain ints, not Err_t.
type Err_t int

// Error kinds. Ok is the zero value so a bare `if err != 0` test, in the
// style of biscuit's call sites, reads the same as `if err != nil`.
const (
	Ok           Err_t = 0
	NotPermitted Err_t = -1
	NoEntry      Err_t = -2
	NoAccess     Err_t = -3
	IsDir        Err_t = -4
	NotDir       Err_t = -5
	PathTooLong  Err_t = -6
	Invalid      Err_t = -7
	NoMemory     Err_t = -8
)

var errstrs = map[Err_t]string{
	Ok:           "ok",
	NotPermitted: "operation not permitted",
	NoEntry:      "no such entry",
	NoAccess:     "no access",
	IsDir:        "is a directory",
	NotDir:       "not a directory",
	PathTooLong:  "path too long",
	Invalid:      "invalid argument",
	NoMemory:     "no memory",
}

/// Error implements the error interface so Err_t can be used with normal Go
/// error plumbing while remaining a plain negative-int return value at call
/// sites that prefer the C-kernel convention.
func (e Err_t) Error() string {
	if s, ok := errstrs[e]; ok {
		return s
	}
	return fmt.Sprintf("err_t(%d)", int(e))
}

/// Tid_t identifies a task (what the original kernel calls a thread/process
/// id; this kernel has no separate thread concept, so it doubles as a pid).
type Tid_t int

/// MaxPid bounds task id allocation, per the task lifecycle invariant.
const MaxPid = 16384

// Device numbers for the minimal device set the VFS's file descriptor layer
// needs to distinguish a console device from on-disk files.
const (
	DevConsole int = 1
	DevFirst       = DevConsole
	DevLast        = DevConsole
)
