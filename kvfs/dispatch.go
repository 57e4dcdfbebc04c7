package kvfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/dendrascience/kvfs/fsdb"
)

const (
	metaFSID    = "fsid"
	metaVersion = "version"

	// formatVersion is bumped whenever the key layout or record encoding
	// changes incompatibly.
	formatVersion = "1"

	rootPerm uint32 = 0o777
)

// Options configures a Dispatcher. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *Metrics
	// Clock supplies timestamps for new and modified records.
	Clock func() time.Time
}

// Dispatcher implements the path-level filesystem calls on top of an
// fsdb.DB. Every call returns either nil or a syscall.Errno.
type Dispatcher struct {
	db      *fsdb.DB
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// DirEntry is one child of a directory together with its attributes.
type DirEntry struct {
	Name string
	Attr *fsdb.Attr
}

// SetAttr selects the attributes changed by Setattr. Nil fields are left
// alone.
type SetAttr struct {
	Size  *uint64
	Perm  *uint32
	Atime *time.Time
	Mtime *time.Time
}

// NewDispatcher creates a dispatcher that owns db.
func NewDispatcher(db *fsdb.DB, opts Options) *Dispatcher {
	d := &Dispatcher{
		db:      db,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Clock,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.metrics != nil {
		db.Locks().OnWait = d.metrics.observeLockWait
	}
	return d
}

// Init makes sure the root directory and its listing exist and stamps a
// new store with a filesystem UUID.
func (d *Dispatcher) Init(ctx context.Context) (err error) {
	defer func(start time.Time) { err = d.done("init", fsdb.Root, start, err) }(time.Now())

	var created, repaired bool
	locks := []string{fsdb.DirLock(fsdb.Root), fsdb.PathLock(fsdb.Root)}
	err = d.db.Update(ctx, locks, func(tx *fsdb.Tx) error {
		now := d.now()
		root, err := tx.Attr(fsdb.Root)
		switch {
		case errors.Is(err, fsdb.ErrNotFound):
			if err := tx.PutAttr(fsdb.Root, fsdb.NewAttr(fsdb.TypeDirectory, rootPerm, fsdb.RootInode, now)); err != nil {
				return err
			}
			if err := tx.PutList(fsdb.Root, nil); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		case !root.IsDir():
			return fmt.Errorf("%w: root is a %s", fsdb.ErrInvalidState, root.Type)
		default:
			_, err := tx.List(fsdb.Root)
			if errors.Is(err, fsdb.ErrInvalidState) {
				if err := tx.PutList(fsdb.Root, nil); err != nil {
					return err
				}
				repaired = true
			} else if err != nil {
				return err
			}
		}

		v, err := tx.Meta(metaVersion)
		switch {
		case errors.Is(err, fsdb.ErrNotFound):
			if err := tx.PutMeta(metaVersion, []byte(formatVersion)); err != nil {
				return err
			}
		case err != nil:
			return err
		case string(v) != formatVersion:
			return fmt.Errorf("%w: unsupported format version %q", fsdb.ErrInvalidState, v)
		}

		if _, err := tx.Meta(metaFSID); errors.Is(err, fsdb.ErrNotFound) {
			return tx.PutMeta(metaFSID, []byte(uuid.NewString()))
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		d.logger.Info("initialized empty filesystem")
	}
	if repaired {
		d.logger.Warn("root directory listing was missing, recreated it empty")
	}
	return nil
}

// Destroy closes the underlying store. Calls after the first return the
// first result.
func (d *Dispatcher) Destroy() (err error) {
	defer func(start time.Time) { err = d.done("destroy", fsdb.Root, start, err) }(time.Now())
	d.closeOnce.Do(func() { d.closeErr = d.db.Close() })
	return d.closeErr
}

// FSID returns the UUID recorded by the first Init.
func (d *Dispatcher) FSID(ctx context.Context) (id uuid.UUID, err error) {
	err = d.db.View(ctx, func(tx *fsdb.Tx) error {
		b, err := tx.Meta(metaFSID)
		if err != nil {
			return err
		}
		id, err = uuid.ParseBytes(b)
		if err != nil {
			return fmt.Errorf("%w: bad filesystem id: %v", fsdb.ErrInvalidState, err)
		}
		return nil
	})
	return id, err
}

// Getattr returns the attribute record of p.
func (d *Dispatcher) Getattr(ctx context.Context, p string) (a *fsdb.Attr, err error) {
	defer func(start time.Time) { err = d.done("getattr", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	err = d.db.View(ctx, func(tx *fsdb.Tx) error {
		a, err = tx.Attr(p)
		return err
	})
	return a, err
}

// Readdir returns the names of the children of directory p, sorted.
func (d *Dispatcher) Readdir(ctx context.Context, p string) (names []string, err error) {
	defer func(start time.Time) { err = d.done("readdir", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	err = d.db.View(ctx, func(tx *fsdb.Tx) error {
		names, err = list(tx, p)
		return err
	})
	return names, err
}

// Entries is Readdir plus the attributes of every child, all read from one
// snapshot.
func (d *Dispatcher) Entries(ctx context.Context, p string) (entries []DirEntry, err error) {
	defer func(start time.Time) { err = d.done("readdir", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	err = d.db.View(ctx, func(tx *fsdb.Tx) error {
		names, err := list(tx, p)
		if err != nil {
			return err
		}
		entries = make([]DirEntry, 0, len(names))
		for _, name := range names {
			child := fsdb.Join(p, name)
			a, err := tx.Attr(child)
			if errors.Is(err, fsdb.ErrNotFound) {
				return fmt.Errorf("%w: %s lists %q which has no attributes", fsdb.ErrInvalidState, p, name)
			}
			if err != nil {
				return err
			}
			entries = append(entries, DirEntry{Name: name, Attr: a})
		}
		return nil
	})
	return entries, err
}

func list(tx *fsdb.Tx, p string) ([]string, error) {
	a, err := tx.Attr(p)
	if err != nil {
		return nil, err
	}
	if !a.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", fsdb.ErrInvalidArgument, p)
	}
	return tx.List(p)
}

// Open checks that p exists. There is no per-open state.
func (d *Dispatcher) Open(ctx context.Context, p string, flags int) (err error) {
	defer func(start time.Time) { err = d.done("open", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return err
	}
	return d.db.View(ctx, func(tx *fsdb.Tx) error {
		_, err := tx.Attr(p)
		return err
	})
}

// Release never fails.
func (d *Dispatcher) Release(ctx context.Context, p string, fh uint64) error {
	d.metrics.observe("release", "ok", 0)
	return nil
}

// Read returns up to n bytes of p starting at off. Short reads happen only
// at end of file.
func (d *Dispatcher) Read(ctx context.Context, p string, off int64, n int) (data []byte, err error) {
	defer func(start time.Time) { err = d.done("read", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	err = d.db.View(ctx, func(tx *fsdb.Tx) error {
		if _, err := regular(tx, p); err != nil {
			return err
		}
		data, err = tx.ReadContent(p, off, n)
		if errors.Is(err, fsdb.ErrNotFound) {
			return fmt.Errorf("%w: %s has no content blob", fsdb.ErrInvalidState, p)
		}
		return err
	})
	return data, err
}

// Write stores data at off in p, extending the file as needed. Content,
// size and timestamps are committed together.
func (d *Dispatcher) Write(ctx context.Context, p string, off int64, data []byte) (n int, err error) {
	defer func(start time.Time) { err = d.done("write", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return 0, err
	}
	err = d.db.Update(ctx, []string{fsdb.PathLock(p)}, func(tx *fsdb.Tx) error {
		a, err := regular(tx, p)
		if err != nil {
			return err
		}
		written, size, err := tx.WriteContent(p, off, data)
		if errors.Is(err, fsdb.ErrNotFound) {
			return fmt.Errorf("%w: %s has no content blob", fsdb.ErrInvalidState, p)
		}
		if err != nil {
			return err
		}
		now := d.now()
		a.Size = size
		a.Mtime = now
		a.Atime = now
		a.Ctime = now
		if err := tx.PutAttr(p, a); err != nil {
			return err
		}
		n = written
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Setattr applies the changes selected in sa to p and returns the updated
// record.
func (d *Dispatcher) Setattr(ctx context.Context, p string, sa SetAttr) (a *fsdb.Attr, err error) {
	defer func(start time.Time) { err = d.done("setattr", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	err = d.db.Update(ctx, []string{fsdb.PathLock(p)}, func(tx *fsdb.Tx) error {
		a, err = tx.Attr(p)
		if err != nil {
			return err
		}
		now := d.now()
		if sa.Size != nil {
			if !a.IsRegular() {
				return fmt.Errorf("%w: cannot truncate %s %s", fsdb.ErrPermission, a.Type, p)
			}
			if err := tx.Truncate(p, *sa.Size); err != nil {
				return err
			}
			a.Size = *sa.Size
			a.Mtime = now
		}
		if sa.Perm != nil {
			a.Perm = *sa.Perm & fsdb.PermMask
		}
		if sa.Atime != nil {
			a.Atime = *sa.Atime
		}
		if sa.Mtime != nil {
			a.Mtime = *sa.Mtime
		}
		a.Ctime = now
		return tx.PutAttr(p, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create makes an empty regular file at p with the permission bits of
// mode.
func (d *Dispatcher) Create(ctx context.Context, p string, mode uint32) (a *fsdb.Attr, err error) {
	defer func(start time.Time) { err = d.done("create", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	if p == fsdb.Root {
		return nil, fmt.Errorf("%w: %s", fsdb.ErrAlreadyExists, p)
	}
	parent, name := fsdb.Split(p)
	err = d.db.Update(ctx, entryLocks(p, false), func(tx *fsdb.Tx) error {
		if _, err := tx.Attr(p); err == nil {
			return fmt.Errorf("%w: %s", fsdb.ErrAlreadyExists, p)
		} else if !errors.Is(err, fsdb.ErrNotFound) {
			return err
		}
		pa, err := parentDir(tx, parent)
		if err != nil {
			return err
		}
		ino, err := tx.NextInode()
		if err != nil {
			return err
		}

		now := d.now()
		a = fsdb.NewAttr(fsdb.TypeRegular, mode, ino, now)
		if err := tx.PutAttr(p, a); err != nil {
			return err
		}
		if err := tx.PutContent(p, nil); err != nil {
			return err
		}
		if err := tx.AddChild(parent, name); err != nil {
			return err
		}
		return touch(tx, parent, pa, now)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Mkdir makes an empty directory at p with the permission bits of mode.
// Unlike Create, an existing p is a permission error.
func (d *Dispatcher) Mkdir(ctx context.Context, p string, mode uint32) (a *fsdb.Attr, err error) {
	defer func(start time.Time) { err = d.done("mkdir", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return nil, err
	}
	if p == fsdb.Root {
		return nil, fmt.Errorf("%w: %s already exists", fsdb.ErrPermission, p)
	}
	parent, name := fsdb.Split(p)
	err = d.db.Update(ctx, entryLocks(p, true), func(tx *fsdb.Tx) error {
		if _, err := tx.Attr(p); err == nil {
			return fmt.Errorf("%w: %s already exists", fsdb.ErrPermission, p)
		} else if !errors.Is(err, fsdb.ErrNotFound) {
			return err
		}
		pa, err := parentDir(tx, parent)
		if err != nil {
			return err
		}
		ino, err := tx.NextInode()
		if err != nil {
			return err
		}

		now := d.now()
		a = fsdb.NewAttr(fsdb.TypeDirectory, mode, ino, now)
		if err := tx.PutAttr(p, a); err != nil {
			return err
		}
		if err := tx.PutList(p, nil); err != nil {
			return err
		}
		if err := tx.AddChild(parent, name); err != nil {
			return err
		}
		return touch(tx, parent, pa, now)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Unlink removes regular file p.
func (d *Dispatcher) Unlink(ctx context.Context, p string) (err error) {
	defer func(start time.Time) { err = d.done("unlink", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return err
	}
	if p == fsdb.Root {
		return fmt.Errorf("%w: cannot unlink %s", fsdb.ErrPermission, p)
	}
	parent, name := fsdb.Split(p)
	return d.db.Update(ctx, entryLocks(p, false), func(tx *fsdb.Tx) error {
		if _, err := regular(tx, p); err != nil {
			return err
		}
		if err := tx.DeleteAttr(p); err != nil {
			return err
		}
		if err := tx.DeleteContent(p); err != nil {
			return err
		}
		return detach(tx, parent, name, d.now())
	})
}

// Rmdir removes empty directory p. The root can never be removed.
func (d *Dispatcher) Rmdir(ctx context.Context, p string) (err error) {
	defer func(start time.Time) { err = d.done("rmdir", p, start, err) }(time.Now())

	if p, err = fsdb.CleanPath(p); err != nil {
		return err
	}
	if p == fsdb.Root {
		return fmt.Errorf("%w: cannot remove %s", fsdb.ErrPermission, p)
	}
	parent, name := fsdb.Split(p)
	return d.db.Update(ctx, entryLocks(p, true), func(tx *fsdb.Tx) error {
		a, err := tx.Attr(p)
		if err != nil {
			return err
		}
		if !a.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", fsdb.ErrPermission, p)
		}
		names, err := tx.List(p)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			return fmt.Errorf("%w: %s has %d entries", fsdb.ErrNotEmpty, p, len(names))
		}
		if err := tx.DeleteAttr(p); err != nil {
			return err
		}
		if err := tx.DeleteList(p); err != nil {
			return err
		}
		return detach(tx, parent, name, d.now())
	})
}

// Statfs counts records and content bytes.
func (d *Dispatcher) Statfs(ctx context.Context) (st fsdb.Stats, err error) {
	defer func(start time.Time) { err = d.done("statfs", fsdb.Root, start, err) }(time.Now())
	return d.db.Stats(ctx)
}

// Check reports every invariant violation found in the store.
func (d *Dispatcher) Check(ctx context.Context) (v []fsdb.Violation, err error) {
	defer func(start time.Time) { err = d.done("check", fsdb.Root, start, err) }(time.Now())
	return d.db.Check(ctx)
}

// entryLocks is the lock set for adding or removing p: the parent's
// listing and record, p's record and, for directories, p's listing.
func entryLocks(p string, dir bool) []string {
	parent, _ := fsdb.Split(p)
	locks := []string{fsdb.DirLock(parent), fsdb.PathLock(parent), fsdb.PathLock(p)}
	if dir {
		locks = append(locks, fsdb.DirLock(p))
	}
	return locks
}

func regular(tx *fsdb.Tx, p string) (*fsdb.Attr, error) {
	a, err := tx.Attr(p)
	if err != nil {
		return nil, err
	}
	if !a.IsRegular() {
		return nil, fmt.Errorf("%w: %s is a %s", fsdb.ErrPermission, p, a.Type)
	}
	return a, nil
}

func parentDir(tx *fsdb.Tx, parent string) (*fsdb.Attr, error) {
	pa, err := tx.Attr(parent)
	if err != nil {
		return nil, err
	}
	if !pa.IsDir() {
		return nil, fmt.Errorf("%w: parent %s is not a directory", fsdb.ErrPermission, parent)
	}
	return pa, nil
}

// detach drops name from the parent listing. The entry being removed was
// found, so a missing listing entry means the store is inconsistent.
func detach(tx *fsdb.Tx, parent, name string, now time.Time) error {
	if err := tx.RemoveChild(parent, name); errors.Is(err, fsdb.ErrNotFound) {
		return fmt.Errorf("%w: %s does not list %q", fsdb.ErrInvalidState, parent, name)
	} else if err != nil {
		return err
	}
	pa, err := tx.Attr(parent)
	if err != nil {
		return err
	}
	return touch(tx, parent, pa, now)
}

func touch(tx *fsdb.Tx, p string, a *fsdb.Attr, now time.Time) error {
	a.Mtime = now
	a.Ctime = now
	return tx.PutAttr(p, a)
}

// done records the outcome of op and converts err to an errno.
func (d *Dispatcher) done(op, p string, start time.Time, err error) error {
	elapsed := time.Since(start)
	if err == nil {
		d.metrics.observe(op, "ok", elapsed)
		return nil
	}

	errno := Errno(err)
	d.metrics.observe(op, errnoName(errno), elapsed)
	if errno == syscall.EIO {
		d.logger.Error("filesystem call failed", "op", op, "path", p, "error", err)
	} else {
		d.logger.Debug("filesystem call failed", "op", op, "path", p, "errno", errnoName(errno), "error", err)
	}
	return errno
}

func errnoName(errno syscall.Errno) string {
	if name := unix.ErrnoName(errno); name != "" {
		return name
	}
	return errno.Error()
}
