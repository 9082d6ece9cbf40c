// Package datasets is the cache of enriched tables. Each entry has a
// metadata record in the Redis hash "files" and a table blob kept in Redis or
// in a bucket.
package datasets

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ID derives the dataset id from the raw contents, the declared file name or
// URL and an optional version token. Each part is length-prefixed so that
// moving bytes between parts changes the id.
func ID(contents []byte, name, version string) string {
	h := sha256.New()
	for _, part := range [][]byte{contents, []byte(name), []byte(version)} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
