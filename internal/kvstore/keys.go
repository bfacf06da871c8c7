package kvstore

import (
	"encoding/binary"
	"strings"
)

// Uint64Key encodes n as an 8-byte big-endian key so lexicographic byte
// ordering matches numeric ordering — used for the queue's monotonic
// entry keys.
func Uint64Key(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// Uint64FromKey decodes a key produced by Uint64Key.
func Uint64FromKey(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// EscapePathKey turns a relative file path into a key that preserves
// lexicographic order within a directory. The escape is reversible via
// UnescapePathKey.
//
// A literal \x01 byte is first doubled, then each path separator becomes
// the two-byte sequence "/\x01". The key therefore still contains '/'
// and \x01 control bytes, so it is not URL-safe. A prefix scan on an
// escaped directory prefix such as "music/rock/" lists every key under
// that directory, grandchildren included, not only its immediate
// children.
func EscapePathKey(path string) string {
	path = strings.ReplaceAll(path, "\x01", "\x01\x01")
	return strings.ReplaceAll(path, "/", "/\x01")
}

// UnescapePathKey reverses EscapePathKey.
func UnescapePathKey(key string) string {
	key = strings.ReplaceAll(key, "/\x01", "/")
	return strings.ReplaceAll(key, "\x01\x01", "\x01")
}
