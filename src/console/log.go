package console

import (
	"fmt"
	"runtime"
)

// Level is a log severity, matching the original kernel's
// TINY_INFO/TINY_WARN/TINY_ERR macros.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelErr
)

func (l Level) tag() string {
	switch l {
	case LevelInfo:
		return "[INFO]"
	case LevelWarn:
		return "[WARN]"
	case LevelErr:
		return "[ERR!]"
	default:
		return "[????]"
	}
}

// Log writes a leveled message tagged with its caller's file and line,
// the Go-runtime equivalent of the original logging macros' __FILE__/
// __LINE__ expansion.
func (c *Console_t) Log(level Level, format string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	msg := fmt.Sprintf(format, args...)
	if !ok {
		c.Printf("%s %s\n", level.tag(), msg)
		return
	}
	c.Printf("%s %s in file %s:%d\n", level.tag(), msg, file, line)
}
