package fsdb

import (
	"fmt"
	"time"
)

// FileType is the immutable kind of an entry.
type FileType uint8

const (
	TypeRegular   FileType = 1
	TypeDirectory FileType = 2
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("FileType(%d)", uint8(t))
	}
}

// Mode type bits, as in stat(2).
const (
	ModeRegular   uint32 = 0o100000
	ModeDirectory uint32 = 0o040000
	PermMask      uint32 = 0o7777
)

// DirSize is the size reported for every directory.
const DirSize = 4096

// RootInode is the inode number of "/". Inodes handed out by NextInode
// start above it.
const RootInode = 1

// Attr is the attribute record stored for every path.
type Attr struct {
	Type  FileType  `cbor:"1,keyasint"`
	Perm  uint32    `cbor:"2,keyasint"`
	Size  uint64    `cbor:"3,keyasint"`
	Inode uint64    `cbor:"4,keyasint"`
	Atime time.Time `cbor:"5,keyasint"`
	Mtime time.Time `cbor:"6,keyasint"`
	Ctime time.Time `cbor:"7,keyasint"`
}

// NewAttr returns a record of type t with all timestamps set to now.
func NewAttr(t FileType, perm uint32, inode uint64, now time.Time) *Attr {
	a := &Attr{
		Type:  t,
		Perm:  perm & PermMask,
		Inode: inode,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	if t == TypeDirectory {
		a.Size = DirSize
	}
	return a
}

// Mode combines the type bit with the permission bits.
func (a *Attr) Mode() uint32 {
	switch a.Type {
	case TypeDirectory:
		return ModeDirectory | a.Perm
	case TypeRegular:
		return ModeRegular | a.Perm
	default:
		return a.Perm
	}
}

func (a *Attr) IsDir() bool     { return a.Type == TypeDirectory }
func (a *Attr) IsRegular() bool { return a.Type == TypeRegular }

// Attr returns the record for p.
func (tx *Tx) Attr(p string) (*Attr, error) {
	key := attrKey(p)
	b, err := tx.get(key)
	if err != nil {
		return nil, err
	}
	a, err := decodeAttr(b)
	if err != nil {
		return nil, storeErr("decode", key, err)
	}
	return a, nil
}

// PutAttr stores a for p. The type of an existing record can never change;
// such a write fails with ErrInvalidArgument and stages nothing.
func (tx *Tx) PutAttr(p string, a *Attr) error {
	switch a.Type {
	case TypeRegular, TypeDirectory:
	default:
		return fmt.Errorf("%w: unknown file type %v", ErrInvalidArgument, a.Type)
	}

	prev, err := tx.Attr(p)
	switch {
	case err == nil:
		if prev.Type != a.Type {
			return fmt.Errorf("%w: cannot change %s from %s to %s", ErrInvalidArgument, p, prev.Type, a.Type)
		}
	case !isNotFound(err):
		return err
	}

	key := attrKey(p)
	b, err := encodeAttr(a)
	if err != nil {
		return storeErr("encode", key, err)
	}
	return tx.put(key, b)
}

// DeleteAttr removes the record for p.
func (tx *Tx) DeleteAttr(p string) error {
	return tx.del(attrKey(p))
}
