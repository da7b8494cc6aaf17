package docker

import "encoding/binary"

const headerLen = 8

// Demux strips the 8-byte frame headers the engine puts on log streams of
// containers started without a TTY. Input that does not start with a valid
// frame header is returned unchanged, since TTY containers stream raw bytes.
func Demux(stream []byte) []byte {
	if !isFrame(stream) {
		return stream
	}

	out := make([]byte, 0, len(stream))
	for len(stream) >= headerLen {
		if !isFrame(stream) {
			break
		}
		size := int(binary.BigEndian.Uint32(stream[4:headerLen]))
		stream = stream[headerLen:]
		if size > len(stream) {
			size = len(stream)
		}
		out = append(out, stream[:size]...)
		stream = stream[size:]
	}
	return out
}

// isFrame checks for stdin/stdout/stderr stream ids followed by three zero bytes.
func isFrame(b []byte) bool {
	if len(b) < headerLen {
		return false
	}
	return b[0] <= 2 && b[1] == 0 && b[2] == 0 && b[3] == 0
}
