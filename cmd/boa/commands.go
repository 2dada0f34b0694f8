package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boalang/boa-client-go/internal/archive/s3"
	"github.com/boalang/boa-client-go/internal/config"
	"github.com/boalang/boa-client-go/internal/history/postgres"
	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/cache"
	"github.com/boalang/boa-client-go/pkg/client"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/poll"
)

func cmdDatasets(args []string) {
	fs, g := newFlagSet("datasets")
	fs.Parse(args)

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		ds, err := c.Datasets(ctx)
		if err != nil {
			return err
		}
		for _, d := range ds {
			fmt.Println(d)
		}
		if at, ok := c.DatasetsFetchedAt(); ok {
			logging.Info("dataset catalog", logging.Int("datasets", len(ds)), logging.String("fetched_at", at.Format(time.RFC3339)))
		}
		return nil
	})
}

func cmdJobs(args []string) {
	fs, g := newFlagSet("jobs")
	public := fs.Bool("public", false, "Only public jobs")
	offset := fs.Int("offset", 0, "Skip this many jobs (with -length)")
	length := fs.Int("length", 0, "Show at most this many jobs (0 = all)")
	fs.Parse(args)

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		var (
			jobs []*client.JobHandle
			err  error
		)
		if *length > 0 {
			jobs, err = c.JobListRange(ctx, *public, *offset, *length)
		} else {
			jobs, err = c.JobList(ctx, *public)
		}
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Println(j)
		}
		return nil
	})
}

func cmdCount(args []string) {
	fs, g := newFlagSet("count")
	public := fs.Bool("public", false, "Only public jobs")
	fs.Parse(args)

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		n, err := c.JobCount(ctx, *public)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	})
}

func cmdJob(args []string) {
	fs, g := newFlagSet("job")
	fs.Parse(args)
	id := jobID(fs, "job <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		j, err := c.Job(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(j)
		return nil
	})
}

func cmdLast(args []string) {
	fs, g := newFlagSet("last")
	fs.Parse(args)

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		j, err := c.LastJob(ctx)
		if err != nil {
			return err
		}
		if j == nil {
			fmt.Println("No jobs.")
			return nil
		}
		fmt.Println(j)
		return nil
	})
}

func cmdSubmit(args []string) {
	fs, g := newFlagSet("submit")
	file := fs.String("file", "", "Query source file (- for stdin)")
	dataset := fs.String("dataset", "", "Dataset name (default: first dataset)")
	wait := fs.Bool("wait", false, "Wait for the job to finish")
	fs.Parse(args)

	if *file == "" {
		fatalf("Usage: boa submit -file F [-dataset NAME] [-wait]")
	}
	var (
		src []byte
		err error
	)
	if *file == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(*file)
	}
	if err != nil {
		fatalf("Error: %v", err)
	}

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		var j *client.JobHandle
		if *dataset == "" {
			j, err = c.Query(ctx, string(src))
		} else {
			d, ok, lookupErr := c.Dataset(ctx, *dataset)
			if lookupErr != nil {
				return lookupErr
			}
			if !ok {
				names, _ := c.DatasetNames(ctx)
				return fmt.Errorf("unknown dataset %q (available: %s)", *dataset, strings.Join(names, "; "))
			}
			j, err = c.Submit(ctx, string(src), d)
		}
		if err != nil {
			return err
		}
		fmt.Println(j)

		if *wait {
			return waitAndReport(ctx, j)
		}
		return nil
	})
}

func waitAndReport(ctx context.Context, j *client.JobHandle) error {
	if err := j.Wait(ctx, poll.DefaultConfig()); err != nil {
		return err
	}
	fmt.Println(j)

	if j.Snapshot().CompileStatus == models.StatusError {
		errs, err := j.CompilerErrors(ctx)
		if err != nil {
			return err
		}
		for _, e := range errs {
			fmt.Println(e)
		}
	}
	return nil
}

func jobAction(name string, action func(*client.Client, context.Context, int) error) func([]string) {
	return func(args []string) {
		fs, g := newFlagSet(name)
		fs.Parse(args)
		id := jobID(fs, name+" <id>")

		withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
			return action(c, ctx, id)
		})
	}
}

func cmdPublic(args []string) {
	fs, g := newFlagSet("public")
	fs.Parse(args)
	id := jobID(fs, "public <id> [true|false]")

	var (
		set   bool
		value bool
	)
	if fs.NArg() > 1 {
		b, err := strconv.ParseBool(fs.Arg(1))
		if err != nil {
			fatalf("Error: visibility must be true or false, got %q", fs.Arg(1))
		}
		set, value = true, b
	}

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		if set {
			if err := c.SetPublic(ctx, id, value); err != nil {
				return err
			}
		}
		pub, err := c.Public(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(pub)
		return nil
	})
}

func cmdURL(args []string) {
	fs, g := newFlagSet("url")
	public := fs.Bool("public", false, "Show the public URL")
	fs.Parse(args)
	id := jobID(fs, "url [-public] <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		get := c.URL
		if *public {
			get = c.PublicURL
		}
		u, err := get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	})
}

func cmdSource(args []string) {
	fs, g := newFlagSet("source")
	fs.Parse(args)
	id := jobID(fs, "source <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		src, err := c.Source(ctx, id)
		if err != nil {
			return err
		}
		fmt.Print(src)
		return nil
	})
}

func cmdErrors(args []string) {
	fs, g := newFlagSet("errors")
	fs.Parse(args)
	id := jobID(fs, "errors <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		errs, err := c.CompilerErrors(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range errs {
			fmt.Println(e)
		}
		return nil
	})
}

func cmdOutput(args []string) {
	fs, g := newFlagSet("output")
	out := fs.String("o", "", "Write output to this file")
	start := fs.Int64("start", -1, "First byte of a ranged read")
	length := fs.Int64("length", 0, "Bytes to read from -start (0 = to the end)")
	fs.Parse(args)
	id := jobID(fs, "output [-o FILE] [-start N -length N] <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		switch {
		case *start >= 0:
			s, err := c.OutputRange(ctx, id, *start, *length)
			if err != nil {
				return err
			}
			fmt.Print(s)
		case *out != "":
			n, err := c.OutputToFile(ctx, id, *out)
			if err != nil {
				return err
			}
			logging.Info("saved job output", logging.JobID(id), logging.String("path", *out), logging.Int64("bytes", n))
		default:
			j, err := c.Job(ctx, id)
			if err != nil {
				return err
			}
			s, err := j.Output(ctx)
			if err != nil {
				return err
			}
			fmt.Print(s)
		}
		return nil
	})
}

func cmdSize(args []string) {
	fs, g := newFlagSet("size")
	fs.Parse(args)
	id := jobID(fs, "size <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		n, err := c.OutputSize(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	})
}

func cmdWait(args []string) {
	fs, g := newFlagSet("wait")
	fs.Parse(args)
	id := jobID(fs, "wait <id>")

	withSession(g, func(ctx context.Context, _ *config.Config, c *client.Client) error {
		j, err := c.Job(ctx, id)
		if err != nil {
			return err
		}
		return waitAndReport(ctx, j)
	})
}

func cmdArchive(args []string) {
	fs, g := newFlagSet("archive")
	fs.Parse(args)
	id := jobID(fs, "archive <id>")

	withSession(g, func(ctx context.Context, cfg *config.Config, c *client.Client) error {
		if err := cfg.RequireArchive(); err != nil {
			return err
		}
		archiver, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return err
		}

		dir, err := os.MkdirTemp("", "boa-archive-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "output.txt")
		size, err := c.OutputToFile(ctx, id, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		key, err := archiver.Archive(ctx, id, f, size)
		if err != nil {
			return err
		}
		fmt.Printf("s3://%s/%s\n", cfg.S3Bucket, key)
		return nil
	})
}

func cmdHistory(args []string) {
	fs, g := newFlagSet("history")
	limit := fs.Int("limit", 20, "Jobs to show with list")
	fs.Parse(args)

	if fs.NArg() < 1 || (fs.Arg(0) != "sync" && fs.Arg(0) != "list") {
		fatalf("Usage: boa history [-limit N] sync|list")
	}

	if fs.Arg(0) == "list" {
		cfg := load(g)
		defer logging.Sync()
		store := openHistory(cfg)
		defer store.Close()

		jobs, err := store.ListJobs(context.Background(), *limit)
		if err != nil {
			fatalf("Error: %v", err)
		}
		for _, j := range jobs {
			fmt.Println(j)
		}
		return
	}

	withSession(g, func(ctx context.Context, cfg *config.Config, c *client.Client) error {
		store := openHistory(cfg)
		defer store.Close()

		handles, err := c.JobList(ctx, false)
		if err != nil {
			return err
		}
		jobs := make([]models.Job, len(handles))
		for i, h := range handles {
			jobs[i] = h.Snapshot()
		}
		if err := store.RecordJobs(ctx, jobs); err != nil {
			return err
		}
		fmt.Printf("Recorded %d jobs.\n", len(jobs))
		return nil
	})
}

func openHistory(cfg *config.Config) *postgres.Store {
	if err := cfg.RequireHistory(); err != nil {
		fatalf("Error: %v", err)
	}
	store, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		fatalf("Error: %v", err)
	}
	return store
}

func cmdCache(args []string) {
	fs, g := newFlagSet("cache")
	clearAll := fs.Bool("clear", false, "Remove all cached outputs")
	evict := fs.Int("evict", -1, "Remove one job's cached output")
	fs.Parse(args)

	cfg := load(g)
	defer logging.Sync()
	if cfg.CacheDir == "" {
		fatalf("Error: no cache-dir configured (set BOA_CACHE_DIR)")
	}
	c, err := cache.New(cfg.CacheDir, cfg.CacheMaxSize)
	if err != nil {
		fatalf("Error opening cache: %v", err)
	}

	if *clearAll {
		fmt.Printf("Removed %d cached outputs.\n", c.Clear())
		return
	}
	if *evict >= 0 {
		if err := c.Evict(*evict); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("Evicted job %d.\n", *evict)
		return
	}
	size, maxSize, count := c.Stats()
	fmt.Printf("Cache:   %s\n", c.Dir())
	fmt.Printf("Entries: %d\n", count)
	fmt.Printf("Size:    %d / %d MB\n", size/(1<<20), maxSize/(1<<20))
}
