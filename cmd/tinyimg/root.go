package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tinyimg/internal/compressor"
	"tinyimg/internal/config"
	"tinyimg/internal/export"
	"tinyimg/internal/intake"
	"tinyimg/internal/logctx"
	"tinyimg/internal/session"
	"tinyimg/internal/tui"
)

type flags struct {
	tui     bool
	json    bool
	zip     bool
	dropbox bool

	out          string
	maxFiles     int
	maxFileSize  int64
	maxSize      int64
	maxDimension int
	maxIteration int
	quality      float64
	keepOrient   bool
	concurrency  int
	timeout      time.Duration
	excludes     []string
	maxDepth     int
	followLinks  bool
	logLevel     string
	logFile      string
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "tinyimg [paths...]",
		Short: "tinyimg - shrink png and jpg images",
		Long: "tinyimg compresses images locally and concurrently, then lets you save them one by one,\n" +
			"as a single zip archive, or to Dropbox. Directories are searched for images.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			interactive := f.tui || len(args) == 0
			if !interactive && f.dropbox && !cfg.CloudEnabled() {
				return fmt.Errorf("--dropbox needs TINYIMG_DROPBOX_TOKEN")
			}
			return run(cmd.Context(), cfg, args, interactive, f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&f.tui, "tui", "t", false, "Run the interactive UI (default when no paths are given)")
	fl.BoolVar(&f.json, "json", false, "Print a JSON report instead of a table")
	fl.BoolVar(&f.zip, "zip", false, "Also save every result into one zip archive")
	fl.BoolVar(&f.dropbox, "dropbox", false, "Also save every result to Dropbox")
	fl.StringVarP(&f.out, "out", "o", ".", "Directory compressed files and archives are saved to")
	fl.IntVar(&f.maxFiles, "max-files", intake.DefaultMaxFiles, "Max files accepted in one batch")
	fl.Int64Var(&f.maxFileSize, "max-file-size", intake.DefaultMaxFileSize, "Max size of one input file, in bytes")
	fl.Int64Var(&f.maxSize, "max-size", compressor.DefaultMaxSizeBytes, "Target upper bound of each output, in bytes")
	fl.IntVar(&f.maxDimension, "max-dimension", compressor.DefaultMaxWidthOrHeight, "Longest side of each output, in pixels")
	fl.IntVar(&f.maxIteration, "max-iteration", compressor.DefaultMaxIteration, "Max encode attempts per file")
	fl.Float64VarP(&f.quality, "quality", "q", compressor.DefaultInitialQuality, "Initial JPEG quality, between 0 and 1")
	fl.BoolVar(&f.keepOrient, "keep-orientation", false, "Do not rotate pixels according to EXIF orientation")
	fl.IntVarP(&f.concurrency, "concurrency", "c", 0, "Files compressed at once (0 = number of CPUs)")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-file compression timeout (0 = none)")
	fl.StringSliceVarP(&f.excludes, "exclude", "x", nil, "Gitignore-style pattern to skip inside directories (repeatable)")
	fl.IntVarP(&f.maxDepth, "max-depth", "m", -1, "Max directory depth to search (-1 = unlimited)")
	fl.BoolVarP(&f.followLinks, "follow-symlinks", "L", false, "Follow symlinked directories")
	fl.StringVar(&f.logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	fl.StringVar(&f.logFile, "log-file", "", "Write logs to this file")

	cmd.AddCommand(versionCmd())
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("out") {
		cfg.OutputDir = f.out
	}
	if set("max-files") {
		cfg.MaxFiles = f.maxFiles
	}
	if set("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if set("max-size") {
		cfg.Compression.MaxSizeBytes = f.maxSize
	}
	if set("max-dimension") {
		cfg.Compression.MaxWidthOrHeight = f.maxDimension
	}
	if set("max-iteration") {
		cfg.Compression.MaxIteration = f.maxIteration
	}
	if set("quality") {
		cfg.Compression.InitialQuality = f.quality
	}
	if set("keep-orientation") {
		cfg.Compression.NormalizeOrientation = !f.keepOrient
	}
	if set("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if set("timeout") {
		cfg.CompressTimeout = f.timeout
	}
	if set("exclude") {
		cfg.Excludes = append(cfg.Excludes, f.excludes...)
	}
	if set("max-depth") {
		cfg.MaxDepth = f.maxDepth
	}
	if set("follow-symlinks") {
		cfg.FollowSymlinks = f.followLinks
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("log-file") {
		cfg.LogFile = f.logFile
	}
}

func run(parent context.Context, cfg *config.Config, paths []string, interactive bool, f flags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx = logctx.WithLogger(ctx, logger)

	comp, err := compressor.New(compressor.Options{
		MaxSizeBytes:         cfg.Compression.MaxSizeBytes,
		MaxWidthOrHeight:     cfg.Compression.MaxWidthOrHeight,
		MaxIteration:         cfg.Compression.MaxIteration,
		InitialQuality:       cfg.Compression.InitialQuality,
		NormalizeOrientation: cfg.Compression.NormalizeOrientation,
	})
	if err != nil {
		return fmt.Errorf("invalid compression settings: %w", err)
	}

	var cloud export.CloudSaver
	if cfg.CloudEnabled() {
		cloud = export.NewDropbox(ctx, cfg.Dropbox.Token, cfg.Dropbox.Folder, cfg.Dropbox.BaseURL)
	}

	sess := session.New(ctx, cfg, comp, cloud)
	defer sess.Close()
	logger.Info("session started", "session", sess.ID.String(), "interactive", interactive)

	collect := intake.CollectOptions{
		MaxDepth:      cfg.MaxDepth,
		FollowSymlink: cfg.FollowSymlinks,
		Excludes:      cfg.Excludes,
	}
	if interactive {
		return tui.Run(ctx, sess, paths, tui.Options{Collect: collect, CloudEnabled: cloud != nil})
	}
	return runHeadless(ctx, sess, paths, collect, f)
}

// newLogger logs JSON to stderr, or to a file when the terminal belongs to
// the interactive UI.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if interactive || cfg.LogFile != "" {
		p := cfg.LogPath()
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, nil, err
		}
		lf, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = lf
		closeFn = func() { _ = lf.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
