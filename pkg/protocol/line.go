package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SentinelValue marks "no target" on every axis.
const SentinelValue = -1

// ErrBadLine is returned by ParseLine for malformed control lines.
var ErrBadLine = errors.New("protocol: bad control line")

// Command is one actuator control line: two or three integer axes.
type Command struct {
	X, Y, Z int
	Dims    int // 2 or 3
}

// Sentinel returns the no-target command for the given dimensionality.
func Sentinel(dims int) Command {
	return Command{X: SentinelValue, Y: SentinelValue, Z: SentinelValue, Dims: dims}
}

// IsSentinel reports whether c is the no-target command.
func (c Command) IsSentinel() bool {
	if c.X != SentinelValue || c.Y != SentinelValue {
		return false
	}
	return c.Dims != 3 || c.Z == SentinelValue
}

// Line formats c as "x,y\n" or "x,y,z\n".
func (c Command) Line() []byte {
	b := make([]byte, 0, 16)
	b = strconv.AppendInt(b, int64(c.X), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(c.Y), 10)
	if c.Dims == 3 {
		b = append(b, ',')
		b = strconv.AppendInt(b, int64(c.Z), 10)
	}
	return append(b, '\n')
}

func (c Command) String() string {
	return strings.TrimSuffix(string(c.Line()), "\n")
}

// ParseLine parses a control line with or without its trailing newline.
// Used by the bench tool and by device simulators in tests.
func ParseLine(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return Command{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}

	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err)
		}
		vals[i] = v
	}
	return Command{X: vals[0], Y: vals[1], Z: vals[2], Dims: len(parts)}, nil
}
