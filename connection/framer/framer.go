/*
The framer package turns the raw byte stream a transport produces into
discrete IRC protocol lines. Receives arrive in arbitrary chunks, so the
framer keeps whatever trails the last delimiter and resolves it against the
next chunk; no bytes are ever lost or duplicated across chunk boundaries.
*/
package framer

import "bytes"

const delimiter byte = '\n'

// Framer accumulates received bytes and yields complete lines. It is not
// safe for concurrent use; the connection touches it only from its event
// loop.
type Framer struct {
	// Bytes received but not yet resolved into a complete line. The slice is
	// compacted in place after each Push so its capacity is reused instead of
	// reallocating per receive.
	carryover []byte
}

func New() *Framer {
	return &Framer{
		carryover: make([]byte, 0, 512),
	}
}

// Push appends chunk to the carryover and returns every complete line now
// available, in wire order, with the trailing delimiter (and a preceding CR,
// if any) stripped. Returned lines are copies and remain valid after
// subsequent calls. If chunk completes no line, nil is returned and the whole
// buffer is retained.
func (f *Framer) Push(chunk []byte) [][]byte {
	f.carryover = append(f.carryover, chunk...)

	var lines [][]byte
	rest := f.carryover
	for {
		idx := bytes.IndexByte(rest, delimiter)
		if idx < 0 {
			break
		}

		line := rest[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}

		lineCopy := make([]byte, len(line))
		copy(lineCopy, line)
		lines = append(lines, lineCopy)

		rest = rest[idx+1:]
	}

	// Compact the remainder to the front so the backing array keeps being
	// reused
	f.carryover = f.carryover[:copy(f.carryover, rest)]

	return lines
}

// Pending returns how many unresolved bytes are buffered.
func (f *Framer) Pending() int {
	return len(f.carryover)
}

// Reset drops any buffered bytes, keeping the allocation.
func (f *Framer) Reset() {
	f.carryover = f.carryover[:0]
}
