package fsdb

import (
	"fmt"
	"slices"
)

// List returns the child names of dir in sorted order.
//
// A directory whose listing record is missing is corrupt: the listing is
// created in the same batch as the directory record and is never treated
// as implicitly empty.
func (tx *Tx) List(dir string) ([]string, error) {
	key := listingKey(dir)
	b, err := tx.get(key)
	if isNotFound(err) {
		if a, aerr := tx.Attr(dir); aerr == nil && a.IsDir() {
			return nil, fmt.Errorf("%w: directory %s has no listing", ErrInvalidState, dir)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	names, err := decodeListing(b)
	if err != nil {
		return nil, storeErr("decode", key, err)
	}
	slices.Sort(names)
	return names, nil
}

// PutList replaces the listing of dir.
func (tx *Tx) PutList(dir string, names []string) error {
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	key := listingKey(dir)
	b, err := encodeListing(names)
	if err != nil {
		return storeErr("encode", key, err)
	}
	return tx.put(key, b)
}

// DeleteList removes the listing of dir.
func (tx *Tx) DeleteList(dir string) error {
	return tx.del(listingKey(dir))
}

// AddChild inserts name into the listing of dir.
func (tx *Tx) AddChild(dir, name string) error {
	names, err := tx.List(dir)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(names, name)
	if found {
		return fmt.Errorf("%w: %s already lists %q", ErrAlreadyExists, dir, name)
	}
	return tx.PutList(dir, slices.Insert(names, i, name))
}

// RemoveChild deletes name from the listing of dir.
func (tx *Tx) RemoveChild(dir, name string) error {
	names, err := tx.List(dir)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(names, name)
	if !found {
		return fmt.Errorf("%w: %s does not list %q", ErrNotFound, dir, name)
	}
	return tx.PutList(dir, slices.Delete(names, i, i+1))
}
