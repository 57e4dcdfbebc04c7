package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/fsdb"
	"github.com/dendrascience/kvfs/kvfs"
)

// importChunk is the largest single write issued while copying a file.
const importChunk = 1 << 20

// NewImportCmd creates and returns the import subcommand for the kvfs CLI.
// It copies an existing directory tree into a store.
func NewImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import SOURCE_DIR STORE_PATH",
		Short: "Copy a directory tree into a kvfs store",
		Long: `Copy an existing directory tree into a kvfs store.

Directories and regular files are recreated below --dest (default /) with
their permission bits and modification times. Symbolic links, devices and
other special files are skipped. Existing entries are left alone and
reported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dest, "dest", "/", "Directory inside the store to import into")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be done without making changes")

	return cmd
}

type importOptions struct {
	Dest    string
	Verbose bool
	DryRun  bool
}

type importResult struct {
	Dirs    int
	Files   int
	Bytes   int64
	Skipped int
}

func runImport(cmd *cobra.Command, a *app, src, storePath string, opts importOptions) error {
	// Validate input directory exists
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input %s is not a directory", src)
	}
	if pathsOverlap(src, storePath) {
		return fmt.Errorf("input %s and store %s overlap", src, storePath)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.Verbose || opts.DryRun {
		fmt.Fprintf(out, "Importing %s into %s:%s\n", src, storePath, opts.Dest)
		if opts.DryRun {
			fmt.Fprintln(out, "DRY RUN - no changes will be made")
		}
	}

	var d *kvfs.Dispatcher
	if !opts.DryRun {
		d, err = a.open(ctx, storePath, openOptions{init: true})
		if err != nil {
			return err
		}
		defer d.Destroy()
	}

	res, err := importTree(ctx, d, src, opts, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Import complete:\n")
	fmt.Fprintf(out, "  Directories: %d\n", res.Dirs)
	fmt.Fprintf(out, "  Files: %d\n", res.Files)
	fmt.Fprintf(out, "  Bytes: %d\n", res.Bytes)
	fmt.Fprintf(out, "  Skipped: %d\n", res.Skipped)
	return nil
}

// importTree copies src below opts.Dest. With opts.DryRun set d may be nil.
func importTree(ctx context.Context, d *kvfs.Dispatcher, src string, opts importOptions, out io.Writer) (importResult, error) {
	var res importResult

	dest, err := fsdb.CleanPath(opts.Dest)
	if err != nil {
		return res, fmt.Errorf("--dest: %w", err)
	}
	if !opts.DryRun {
		if _, err := mkdirAll(ctx, d, dest); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", dest, err)
		}
	}

	err = filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := fsdb.Join(dest, filepath.ToSlash(rel))

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			if opts.Verbose || opts.DryRun {
				fmt.Fprintf(out, "  mkdir %s\n", target)
			}
			res.Dirs++
			if opts.DryRun {
				return nil
			}
			_, err := d.Mkdir(ctx, target, uint32(info.Mode().Perm()))
			if err != nil && !existingDir(ctx, d, target) {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			return nil

		case info.Mode().IsRegular():
			if opts.Verbose || opts.DryRun {
				fmt.Fprintf(out, "  %s -> %s (%d bytes)\n", path, target, info.Size())
			}
			if opts.DryRun {
				res.Files++
				res.Bytes += info.Size()
				return nil
			}
			n, err := importFile(ctx, d, path, target, info)
			if errors.Is(err, errExists) {
				fmt.Fprintf(out, "  skipping %s: already exists\n", target)
				res.Skipped++
				return nil
			}
			if err != nil {
				return err
			}
			res.Files++
			res.Bytes += n
			return nil

		default:
			if opts.Verbose || opts.DryRun {
				fmt.Fprintf(out, "  skipping %s: not a regular file\n", path)
			}
			res.Skipped++
			return nil
		}
	})
	return res, err
}

var errExists = errors.New("already exists")

func importFile(ctx context.Context, d *kvfs.Dispatcher, path, target string, info fs.FileInfo) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := d.Create(ctx, target, uint32(info.Mode().Perm())); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, errExists
		}
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}

	var off int64
	buf := make([]byte, importChunk)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, err := d.Write(ctx, target, off, buf[:n]); err != nil {
				return off, fmt.Errorf("failed to write %s: %w", target, err)
			}
			off += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return off, fmt.Errorf("failed to read %s: %w", path, rerr)
		}
	}

	mtime := info.ModTime()
	if _, err := d.Setattr(ctx, target, kvfs.SetAttr{Mtime: &mtime}); err != nil {
		return off, fmt.Errorf("failed to set times on %s: %w", target, err)
	}
	return off, nil
}

func existingDir(ctx context.Context, d *kvfs.Dispatcher, p string) bool {
	a, err := d.Getattr(ctx, p)
	return err == nil && a.IsDir()
}
