package fsdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Stats summarizes the records held by a store.
type Stats struct {
	Files       uint64
	Directories uint64
	Listings    uint64
	Blobs       uint64
	Bytes       uint64 // sum of regular file sizes
}

// Violation describes one broken invariant found by Check.
type Violation struct {
	Path    string
	Problem string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Problem)
}

// snapshot is every record of the store, decoded.
type snapshot struct {
	attrs    map[string]*Attr
	listings map[string][]string
	blobs    map[string]int
}

func (tx *Tx) scan(ctx context.Context) (*snapshot, []Violation, error) {
	s := &snapshot{
		attrs:    make(map[string]*Attr),
		listings: make(map[string][]string),
		blobs:    make(map[string]int),
	}
	var bad []Violation

	err := tx.iterate(prefixAttr, func(key string, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := strings.TrimPrefix(key, prefixAttr)
		a, err := decodeAttr(value)
		if err != nil {
			bad = append(bad, Violation{p, fmt.Sprintf("undecodable attribute record: %v", err)})
			return nil
		}
		s.attrs[p] = a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = tx.iterate(prefixListing, func(key string, value []byte) error {
		p := strings.TrimPrefix(key, prefixListing)
		names, err := decodeListing(value)
		if err != nil {
			bad = append(bad, Violation{p, fmt.Sprintf("undecodable listing: %v", err)})
			return nil
		}
		s.listings[p] = names
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = tx.iterate(prefixContent, func(key string, value []byte) error {
		s.blobs[strings.TrimPrefix(key, prefixContent)] = len(value)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return s, bad, nil
}

// Stats counts records per namespace. Listings and blobs are counted from
// their keys alone, and Bytes comes from attribute sizes, so no content is
// read. On a store that passes Check, Bytes equals the total blob length.
// Undecodable attribute records are skipped here and reported by Check.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := db.View(ctx, func(tx *Tx) error {
		err := tx.iterate(prefixAttr, func(key string, value []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := decodeAttr(value)
			if err != nil {
				return nil
			}
			if a.IsDir() {
				st.Directories++
			} else {
				st.Files++
				st.Bytes += a.Size
			}
			return nil
		})
		if err != nil {
			return err
		}

		err = tx.keys(prefixListing, func(string) error {
			st.Listings++
			return nil
		})
		if err != nil {
			return err
		}

		return tx.keys(prefixContent, func(string) error {
			st.Blobs++
			return nil
		})
	})
	return st, err
}

// Check walks every namespace and reports records that break the
// filesystem invariants: parent linkage, record/listing/blob existence and
// size agreement.
func (db *DB) Check(ctx context.Context) ([]Violation, error) {
	var bad []Violation
	err := db.View(ctx, func(tx *Tx) error {
		s, decodeErrs, err := tx.scan(ctx)
		if err != nil {
			return err
		}
		bad = append(bad, decodeErrs...)

		if a, ok := s.attrs[Root]; !ok {
			bad = append(bad, Violation{Root, "root attribute record missing"})
		} else if !a.IsDir() {
			bad = append(bad, Violation{Root, "root is not a directory"})
		}

		for p, a := range s.attrs {
			if p != Root {
				dir, name := Split(p)
				if names, ok := s.listings[dir]; !ok || !slices.Contains(names, name) {
					bad = append(bad, Violation{p, "not listed in parent directory"})
				}
			}

			_, hasListing := s.listings[p]
			n, hasBlob := s.blobs[p]
			switch a.Type {
			case TypeDirectory:
				if !hasListing {
					bad = append(bad, Violation{p, "directory has no listing"})
				}
				if hasBlob {
					bad = append(bad, Violation{p, "directory has a content blob"})
				}
			case TypeRegular:
				if !hasBlob {
					bad = append(bad, Violation{p, "regular file has no content blob"})
				} else if uint64(n) != a.Size {
					bad = append(bad, Violation{p, fmt.Sprintf("size %d does not match blob length %d", a.Size, n)})
				}
				if hasListing {
					bad = append(bad, Violation{p, "regular file has a listing"})
				}
			default:
				bad = append(bad, Violation{p, fmt.Sprintf("unknown file type %v", a.Type)})
			}
		}

		for dir, names := range s.listings {
			if _, ok := s.attrs[dir]; !ok {
				bad = append(bad, Violation{dir, "listing without attribute record"})
			}
			for _, name := range names {
				if _, ok := s.attrs[Join(dir, name)]; !ok {
					bad = append(bad, Violation{dir, fmt.Sprintf("lists missing entry %q", name)})
				}
			}
		}

		for p := range s.blobs {
			if _, ok := s.attrs[p]; !ok {
				bad = append(bad, Violation{p, "content blob without attribute record"})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(bad, func(a, b Violation) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Problem, b.Problem)
	})
	return bad, nil
}
