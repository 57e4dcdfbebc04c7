// Package kvfs serves a filesystem whose every byte lives in a key-value
// store.
//
// A Dispatcher implements the path-level calls (getattr, readdir, open,
// read, write, release, create, unlink, mkdir, rmdir, setattr, statfs)
// on top of an fsdb.DB and translates every failure into a syscall.Errno.
// FS adapts a Dispatcher to bazil.org/fuse so it can be mounted:
//
//	d := kvfs.NewDispatcher(fsdb.New(store, logger), kvfs.Options{Logger: logger})
//	if err := d.Init(ctx); err != nil {
//		return err
//	}
//	err := fs.Serve(conn, kvfs.NewFS(d))
//
// Mutating calls lock only the paths and directory listings they touch,
// so calls on unrelated paths run in parallel.
package kvfs
