package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dendrascience/kvfs/fsdb"
	"github.com/dendrascience/kvfs/kvfs"
)

// maxSeedDepth is the number of levels in a YYYY/MM/DD/HH/mm/SS path.
const maxSeedDepth = 6

// NewSeedCmd creates and returns the seed subcommand for the kvfs CLI.
// It fills a store with a randomized tree of small files.
func NewSeedCmd(a *app) *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed STORE_PATH",
		Short: "Fill a store with a randomized tree of test files",
		Long: `Generate a large number of test files in a kvfs store.

Creates files in a YYYY/MM/DD/HH/mm/SS directory structure with randomized
content. Files are distributed across the hierarchy with most files at the
deepest level. Each file contains a single UUID line drawn from a small pool.

Every file and directory is created through the same code paths a mounted
filesystem uses, several at a time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, a, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "c", 10000, "Number of files to generate")
	cmd.Flags().IntVarP(&opts.Depth, "depth", "d", maxSeedDepth, "Deepest directory level (1-6)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 8, "Number of concurrent writers")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

type seedOptions struct {
	Count   int
	Depth   int
	Workers int
	Verbose bool
}

type seedResult struct {
	Files int64
	Dirs  int64
}

func runSeed(cmd *cobra.Command, a *app, storePath string, opts seedOptions) error {
	if opts.Depth < 1 || opts.Depth > maxSeedDepth {
		return fmt.Errorf("--depth must be between 1 and %d", maxSeedDepth)
	}
	if opts.Workers < 1 {
		return errors.New("--workers must be at least 1")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := a.open(ctx, storePath, openOptions{init: true})
	if err != nil {
		return err
	}
	defer d.Destroy()

	if opts.Verbose {
		fmt.Fprintf(out, "Generating %d test files in %s\n", opts.Count, storePath)
	}

	start := time.Now()
	res, err := seedTree(ctx, d, opts, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %d files in %d new directories (%s)\n",
		res.Files, res.Dirs, time.Since(start).Round(time.Millisecond))
	return nil
}

// seedTree creates opts.Count files below the root of d. Paths already
// present in the store are skipped rather than counted.
func seedTree(ctx context.Context, d *kvfs.Dispatcher, opts seedOptions, out io.Writer) (seedResult, error) {
	// Generate pool of 50 UUIDs
	pool := make([]string, 50)
	for i := range pool {
		pool[i] = uuid.NewString() + "\n"
	}

	var (
		res    seedResult
		files  atomic.Int64
		dirs   atomic.Int64
		seen   = make(map[string]bool)
		counts = make(map[string]int)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	// Start from a base time and vary it
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	planned := 0
	for attempts := 0; planned < opts.Count; attempts++ {
		// Shallow trees run out of room under the per-directory cap
		if attempts >= 100*opts.Count {
			break
		}

		fileTime := baseTime.
			AddDate(0, 0, rand.IntN(365)).
			Add(time.Duration(rand.IntN(86400)) * time.Second)
		dir := seedDir(fileTime, min(seedLevel(), opts.Depth))

		// Keep directories to a reasonable size
		if counts[dir] >= 1000 {
			continue
		}

		ext := ".json"
		if rand.IntN(2) == 1 {
			ext = ".txt"
		}
		p := fsdb.Join(dir, fmt.Sprintf("%08x%s", rand.Uint32(), ext))
		if seen[p] {
			continue
		}
		seen[p] = true
		counts[dir]++
		planned++

		content := []byte(pool[rand.IntN(len(pool))])
		g.Go(func() error {
			n, err := mkdirAll(ctx, d, dir)
			dirs.Add(n)
			if err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			_, err = d.Create(ctx, p, 0o644)
			if errors.Is(err, syscall.EEXIST) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", p, err)
			}
			if _, err := d.Write(ctx, p, 0, content); err != nil {
				return fmt.Errorf("failed to write %s: %w", p, err)
			}

			if n := files.Add(1); opts.Verbose && n%1000 == 0 {
				fmt.Fprintf(out, "Created %d/%d files...\n", n, opts.Count)
			}
			return nil
		})
	}

	err := g.Wait()
	res.Files = files.Load()
	res.Dirs = dirs.Load()
	if err != nil {
		return res, err
	}
	if planned < opts.Count {
		return res, fmt.Errorf("only room for %d of %d files at depth %d", planned, opts.Count, opts.Depth)
	}

	if opts.Verbose {
		maxFiles, minFiles := 0, opts.Count
		for _, n := range counts {
			maxFiles = max(maxFiles, n)
			minFiles = min(minFiles, n)
		}
		fmt.Fprintf(out, "Files distributed across %d directories\n", len(counts))
		fmt.Fprintf(out, "Directory file counts: min=%d, max=%d\n", minFiles, maxFiles)
	}
	return res, nil
}

// seedLevel picks how deep a file goes; most files land at the deepest
// level.
func seedLevel() int {
	switch r := rand.IntN(100); {
	case r < 5:
		return 1
	case r < 10:
		return 2
	case r < 15:
		return 3
	case r < 25:
		return 4
	case r < 40:
		return 5
	default:
		return 6
	}
}

// seedDir renders the first level components of t's YYYY/MM/DD/HH/mm/SS
// path.
func seedDir(t time.Time, level int) string {
	parts := []string{
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", t.Hour()),
		fmt.Sprintf("%02d", t.Minute()),
		fmt.Sprintf("%02d", t.Second()),
	}
	p := fsdb.Root
	for _, part := range parts[:level] {
		p = fsdb.Join(p, part)
	}
	return p
}

// mkdirAll creates p and any missing parents, returning how many
// directories it created. Racing creators of the same directory are fine.
func mkdirAll(ctx context.Context, d *kvfs.Dispatcher, p string) (int64, error) {
	if p == fsdb.Root {
		return 0, nil
	}
	a, err := d.Getattr(ctx, p)
	switch {
	case err == nil && a.IsDir():
		return 0, nil
	case err == nil:
		return 0, fmt.Errorf("%s exists and is not a directory", p)
	case !errors.Is(err, syscall.ENOENT):
		return 0, err
	}

	parent, _ := fsdb.Split(p)
	created, err := mkdirAll(ctx, d, parent)
	if err != nil {
		return created, err
	}

	_, err = d.Mkdir(ctx, p, 0o755)
	if err == nil {
		return created + 1, nil
	}
	// Someone else got there first
	if errors.Is(err, syscall.EPERM) {
		if a, gerr := d.Getattr(ctx, p); gerr == nil && a.IsDir() {
			return created, nil
		}
	}
	return created, err
}
