package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"seafile-thumbnail/internal/app"
	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/media"
	"seafile-thumbnail/internal/startup"
	"seafile-thumbnail/internal/thumbnail"
	"seafile-thumbnail/internal/workers"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxWorkers caps parallel generation so a batch does not starve the server
// sharing the same host.
const maxWorkers = 16

type generator interface {
	Generate(ctx context.Context, req thumbnail.Request) (bool, int)
	CachedPath(ctx context.Context, req thumbnail.Request) (string, int)
}

// cli carries what the commands need, so tests can swap the generator.
type cli struct {
	configFile string
	out        io.Writer
	errOut     io.Writer
	open       func(ctx context.Context) (generator, func(), error)
}

func defaultCLI() *cli {
	c := &cli{out: os.Stdout, errOut: os.Stderr}
	c.open = c.openGenerator
	return c
}

func (c *cli) openGenerator(ctx context.Context) (generator, func(), error) {
	if c.configFile != "" {
		if err := os.Setenv("THUMBNAIL_CONFIG_FILE", c.configFile); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := startup.ReadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Generator, func() {
		if err := a.Close(); err != nil {
			logging.Warn("close: %v", err)
		}
		media.ShutdownVips()
	}, nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "thumbnailctl",
		Short:         "Manage the Seafile thumbnail cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetOutput(c.errOut, "console")
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "YAML configuration file (overrides THUMBNAIL_CONFIG_FILE)")

	root.AddCommand(newGenerateCmd(c), newPathCmd(c), newSrcCmd(c), newVersionCmd(c))
	return root
}

type requestFlags struct {
	repo      string
	size      string
	watermark string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repo, "repo", "", "library id")
	cmd.Flags().StringVar(&f.size, "size", "", "thumbnail size in pixels")
	cmd.Flags().StringVar(&f.watermark, "watermark", "", "viewer email to burn into the thumbnail")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("size")
}

func (f *requestFlags) request(filePath string) thumbnail.Request {
	return thumbnail.Request{RepoID: f.repo, Path: filePath, Size: f.size, Watermark: f.watermark}
}

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		flags   requestFlags
		workerN int
	)
	cmd := &cobra.Command{
		Use:   "generate --repo ID --size N PATH...",
		Short: "Generate thumbnails into the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if workerN <= 0 {
				workerN = workers.For(workers.Mixed, maxWorkers)
			}
			return generateAll(cmd.Context(), gen, &flags, args, workerN, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&workerN, "workers", "w", 0, "parallel generations (default from THUMBNAIL_WORKERS or CPU count)")
	return cmd
}

// errFailed reports that at least one thumbnail could not be produced.
var errFailed = errors.New("some thumbnails failed")

// generateAll renders every path and prints one line per file. A failed file
// does not stop the others.
func generateAll(ctx context.Context, gen generator, flags *requestFlags, paths []string, n int, out io.Writer) error {
	var (
		mu     sync.Mutex
		failed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for _, p := range paths {
		g.Go(func() error {
			req := flags.request(p)
			ok, status := gen.Generate(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed++
				fmt.Fprintf(out, "%d\t%s\t%s\n", status, p, http.StatusText(status))
				return nil
			}
			cached, _ := gen.CachedPath(ctx, req)
			fmt.Fprintf(out, "%d\t%s\t%s\n", status, p, cached)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errFailed, failed, len(paths))
	}
	return nil
}

func newPathCmd(c *cli) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "path --repo ID --size N PATH",
		Short: "Print where a thumbnail is cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			cached, status := gen.CachedPath(cmd.Context(), flags.request(args[0]))
			if status != http.StatusOK {
				return fmt.Errorf("cannot resolve %s: %d %s", args[0], status, http.StatusText(status))
			}
			fmt.Fprintln(cmd.OutOrStdout(), cached)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSrcCmd(_ *cli) *cobra.Command {
	var (
		repo  string
		token string
		size  int
	)
	cmd := &cobra.Command{
		Use:   "src (--repo ID | --token TOKEN) --size N PATH",
		Short: "Print the URL path a client uses to fetch a thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				return fmt.Errorf("size must be positive, got %d", size)
			}
			if token != "" {
				fmt.Fprintln(cmd.OutOrStdout(), thumbnail.ShareLinkThumbnailSrc(token, size, args[0]))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), thumbnail.ThumbnailSrc(repo, size, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "library id")
	cmd.Flags().StringVar(&token, "token", "", "share link token")
	cmd.Flags().IntVar(&size, "size", 0, "thumbnail size in pixels")
	cmd.MarkFlagsOneRequired("repo", "token")
	cmd.MarkFlagsMutuallyExclusive("repo", "token")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newVersionCmd(_ *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "thumbnailctl %s (commit %s, %s)\n", info.Version, info.Commit, info.GoVersion)
		},
	}
}
