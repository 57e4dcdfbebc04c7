package kvfs

import (
	"context"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/dendrascience/kvfs/fsdb"
)

const (
	// attrValid is how long the kernel may cache attributes and entries.
	attrValid = time.Second
	blockSize = 4096
	maxName   = 255
)

// FS implements the kvfs FUSE filesystem
type FS struct {
	d   *Dispatcher
	uid uint32
	gid uint32
}

var (
	_ fs.FS          = (*FS)(nil)
	_ fs.FSStatfser  = (*FS)(nil)
	_ fs.FSDestroyer = (*FS)(nil)

	_ fs.Node               = (*Dir)(nil)
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)
	_ fs.NodeCreater        = (*Dir)(nil)
	_ fs.NodeMkdirer        = (*Dir)(nil)
	_ fs.NodeRemover        = (*Dir)(nil)
	_ fs.NodeSetattrer      = (*Dir)(nil)

	_ fs.Node           = (*File)(nil)
	_ fs.NodeOpener     = (*File)(nil)
	_ fs.HandleReader   = (*File)(nil)
	_ fs.HandleWriter   = (*File)(nil)
	_ fs.HandleReleaser = (*File)(nil)
	_ fs.NodeSetattrer  = (*File)(nil)
	_ fs.NodeFsyncer    = (*File)(nil)
)

// NewFS creates the FUSE view of d. Files are reported as owned by the
// mounting user.
func NewFS(d *Dispatcher) *FS {
	return &FS{
		d:   d,
		uid: uint32(os.Getuid()),
		gid: uint32(os.Getgid()),
	}
}

// Root returns the root directory node
func (f *FS) Root() (fs.Node, error) {
	return &Dir{
		fs:   f,
		path: fsdb.Root,
	}, nil
}

// Statfs reports usage derived from the record counts
func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	st, err := f.d.Statfs(ctx)
	if err != nil {
		return err
	}

	const totalBlocks = 1 << 28 // 1 TiB in 4 KiB blocks
	used := (st.Bytes + blockSize - 1) / blockSize
	free := uint64(0)
	if used < totalBlocks {
		free = totalBlocks - used
	}
	files := st.Files + st.Directories

	resp.Blocks = totalBlocks
	resp.Bfree = free
	resp.Bavail = free
	resp.Files = files
	resp.Ffree = 1<<32 - files
	resp.Bsize = blockSize
	resp.Frsize = blockSize
	resp.Namelen = maxName
	return nil
}

// Destroy closes the store when the kernel tears the mount down
func (f *FS) Destroy() {
	// Already logged by the dispatcher.
	_ = f.d.Destroy()
}

func (f *FS) fill(a *fsdb.Attr, out *fuse.Attr) {
	out.Valid = attrValid
	out.Inode = a.Inode
	out.Size = a.Size
	out.Blocks = (a.Size + 511) / 512
	out.Atime = a.Atime
	out.Mtime = a.Mtime
	out.Ctime = a.Ctime
	out.Mode = fileMode(a)
	out.Nlink = 1
	if a.IsDir() {
		out.Nlink = 2
	}
	out.Uid = f.uid
	out.Gid = f.gid
	out.BlockSize = blockSize
}

// node returns the node type matching a.
func (f *FS) node(p string, a *fsdb.Attr) fs.Node {
	if a.IsDir() {
		return &Dir{fs: f, path: p}
	}
	return &File{fs: f, path: p}
}

// Dir implements both Node and Handle for directories
type Dir struct {
	fs   *FS
	path string
}

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := d.fs.d.Getattr(ctx, d.path)
	if err != nil {
		return err
	}
	d.fs.fill(attr, a)
	return nil
}

// Lookup resolves a child name to a node
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	p := fsdb.Join(d.path, name)
	a, err := d.fs.d.Getattr(ctx, p)
	if err != nil {
		return nil, err
	}
	return d.fs.node(p, a), nil
}

// ReadDirAll lists directory contents
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.d.Entries(ctx, d.path)
	if err != nil {
		return nil, err
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.Attr.IsDir() {
			typ = fuse.DT_Dir
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: e.Attr.Inode,
			Name:  e.Name,
			Type:  typ,
		})
	}
	return dirents, nil
}

// Create creates a new file
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	p := fsdb.Join(d.path, req.Name)
	a, err := d.fs.d.Create(ctx, p, permBits(req.Mode))
	if err != nil {
		return nil, nil, err
	}
	d.fs.fill(a, &resp.Attr)
	resp.EntryValid = attrValid

	file := &File{fs: d.fs, path: p}
	return file, file, nil
}

// Mkdir creates a new directory
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	p := fsdb.Join(d.path, req.Name)
	if _, err := d.fs.d.Mkdir(ctx, p, permBits(req.Mode)); err != nil {
		return nil, err
	}
	return &Dir{fs: d.fs, path: p}, nil
}

// Remove removes a file or an empty directory
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := fsdb.Join(d.path, req.Name)
	if req.Dir {
		return d.fs.d.Rmdir(ctx, p)
	}
	return d.fs.d.Unlink(ctx, p)
}

// Setattr changes permission bits and timestamps
func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		return syscall.EISDIR
	}
	return setattr(ctx, d.fs, d.path, req, resp)
}

// File implements both Node and Handle for files
type File struct {
	fs   *FS
	path string
}

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := f.fs.d.Getattr(ctx, f.path)
	if err != nil {
		return err
	}
	f.fs.fill(attr, a)
	return nil
}

// Open checks the file still exists; the node doubles as its handle
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if err := f.fs.d.Open(ctx, f.path, int(req.Flags)); err != nil {
		return nil, err
	}
	return f, nil
}

// Read reads a range of the file
func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := f.fs.d.Read(ctx, f.path, req.Offset, req.Size)
	if err != nil {
		return err
	}
	resp.Data = data
	return nil
}

// Write writes data to the file
func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := f.fs.d.Write(ctx, f.path, req.Offset, req.Data)
	if err != nil {
		return err
	}
	resp.Size = n
	return nil
}

// Release closes the handle
func (f *File) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return f.fs.d.Release(ctx, f.path, uint64(req.Handle))
}

// Fsync is a no-op: every write is committed before it returns
func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return nil
}

// Setattr sets file attributes
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return setattr(ctx, f.fs, f.path, req, resp)
}

func setattr(ctx context.Context, f *FS, p string, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	var sa SetAttr
	if req.Valid.Size() {
		sa.Size = &req.Size
	}
	if req.Valid.Mode() {
		perm := permBits(req.Mode)
		sa.Perm = &perm
	}
	if req.Valid.Atime() {
		sa.Atime = &req.Atime
	}
	if req.Valid.AtimeNow() {
		now := time.Now()
		sa.Atime = &now
	}
	if req.Valid.Mtime() {
		sa.Mtime = &req.Mtime
	}
	if req.Valid.MtimeNow() {
		now := time.Now()
		sa.Mtime = &now
	}

	a, err := f.d.Setattr(ctx, p, sa)
	if err != nil {
		return err
	}
	f.fill(a, &resp.Attr)
	return nil
}

// fileMode converts stored mode bits into an os.FileMode.
func fileMode(a *fsdb.Attr) os.FileMode {
	m := os.FileMode(a.Perm & 0o777)
	if a.Perm&0o4000 != 0 {
		m |= os.ModeSetuid
	}
	if a.Perm&0o2000 != 0 {
		m |= os.ModeSetgid
	}
	if a.Perm&0o1000 != 0 {
		m |= os.ModeSticky
	}
	if a.IsDir() {
		m |= os.ModeDir
	}
	return m
}

// permBits is the inverse of fileMode for the permission part.
func permBits(m os.FileMode) uint32 {
	perm := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if m&os.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if m&os.ModeSticky != 0 {
		perm |= 0o1000
	}
	return perm
}
