// Package peer derives stable peer identities from image paths and groups
// images by peer.
package peer

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

// idHexDigits is the number of leading hex digits of the digest kept as the id.
const idHexDigits = 16

// ID identifies one peer robot. It is derived, never assigned.
type ID uint64

// DeriveID hashes name with SHA-256 and parses the first 16 hex digits of
// the digest as an unsigned integer.
func DeriveID(name string) ID {
	sum := sha256.Sum256([]byte(name))
	digest := hex.EncodeToString(sum[:])
	// 16 hex digits always fit in 64 bits
	v, _ := strconv.ParseUint(digest[:idHexDigits], 16, 64)
	return ID(v)
}

// NameOf returns the name of the directory directly containing path.
// A path without a named parent ("x.jpg", "/x.jpg") yields "".
//
// Directories sharing a final component alias to the same peer name,
// whatever their depth.
func NameOf(path string) string {
	dir := filepath.Dir(path)
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// IDOf returns the peer id for the image at path.
func IDOf(path string) ID {
	return DeriveID(NameOf(path))
}
