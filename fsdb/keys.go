package fsdb

import (
	"fmt"
	"path"
	"strings"
)

// Key namespaces. Every record lives under exactly one prefix, so a path
// maps to three disjoint keys.
//
// Data Type           Prefix   Key Format      Value Type
// ======================================================================
// Attribute record    "a:"     a:<path>        Attr (CBOR)
// Directory listing   "d:"     d:<path>        []string (CBOR)
// Content blob        "c:"     c:<path>        raw bytes
// Filesystem meta     "m:"     m:<name>        raw bytes
// ID sequence         "s:"     s:id            managed by package kv
const (
	prefixAttr    = "a:"
	prefixListing = "d:"
	prefixContent = "c:"
	prefixMeta    = "m:"
)

// Root is the path of the root directory.
const Root = "/"

func attrKey(p string) []byte    { return []byte(prefixAttr + p) }
func listingKey(p string) []byte { return []byte(prefixListing + p) }
func contentKey(p string) []byte { return []byte(prefixContent + p) }
func metaKey(name string) []byte { return []byte(prefixMeta + name) }

// Lock keys name entries in the LockManager and are never written to the
// store. Directory locks guard a listing, path locks guard a record and
// its content.
const (
	lockDir  = "ld:"
	lockPath = "lp:"
)

func DirLock(p string) string  { return lockDir + p }
func PathLock(p string) string { return lockPath + p }

// CleanPath validates p and returns its canonical form.
func CleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return path.Clean(p), nil
}

// Split returns the parent directory and basename of a clean path.
// Split("/") returns ("/", "").
func Split(p string) (dir, name string) {
	if p == Root {
		return Root, ""
	}
	return path.Dir(p), path.Base(p)
}

// Join appends name to dir.
func Join(dir, name string) string {
	return path.Join(dir, name)
}
