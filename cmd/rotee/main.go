// Command rotee tees its standard input to standard output and to a rotating
// log file, so console-only programs get log rotation without losing the
// stdout stream their supervisor expects.
//
// Diagnostics go to stderr; stdout carries nothing but the input bytes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roteeio/rotee"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	outputFile    string
	rotationDir   string
	gunzip        bool
	maxHistory    int
	maxSize       int64
	maxAge        time.Duration
	failThreshold int
	rotateEmpty   bool
	verbose       bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "rotee",
		Short:        "Apply log rotation to console output programs",
		Long:         "rotee reads stdin and replicates it byte-for-byte to stdout and to a rotating file.\nSIGHUP rotates the file immediately; SIGINT/SIGTERM drain and exit.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.Flags().StringVar(&f.outputFile, "output-file", "output.log", "active log file path")
	cmd.Flags().StringVar(&f.rotationDir, "rotation-directory", ".", "directory for rotated backups")
	cmd.Flags().BoolVarP(&f.gunzip, "gunzip", "g", false, "gzip rotated backups")
	cmd.Flags().IntVarP(&f.maxHistory, "max-history", "m", 5, "number of rotated backups to keep")
	cmd.Flags().Int64Var(&f.maxSize, "max-size", 0, "rotate when the file would exceed this many bytes (0 disables)")
	cmd.Flags().DurationVar(&f.maxAge, "max-age", 0, "rotate when the file has been open this long (0 disables)")
	cmd.Flags().IntVar(&f.failThreshold, "fail-threshold", rotee.DefaultFailureThreshold, "consecutive file-sink failures before it is disabled")
	cmd.Flags().BoolVar(&f.rotateEmpty, "rotate-empty", false, "rotate on signal even when the file is empty")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug diagnostics on stderr")
	return cmd
}

func run(f flags) error {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var policies []rotee.Policy
	if f.maxSize > 0 {
		policies = append(policies, rotee.SizePolicy(f.maxSize))
	}
	if f.maxAge > 0 {
		policies = append(policies, rotee.AgePolicy(f.maxAge, nil))
	}

	sink, err := rotee.NewSink(f.outputFile,
		rotee.WithMaxBackups(f.maxHistory),
		rotee.WithBackupDir(f.rotationDir),
		rotee.WithPolicy(rotee.CompositePolicy(policies...)),
		rotee.WithCompression(f.gunzip),
		rotee.WithRotateEmpty(f.rotateEmpty),
		rotee.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open file sink: %w", err)
	}

	tee := rotee.NewTee(os.Stdout, sink,
		rotee.WithFailureThreshold(f.failThreshold),
		rotee.WithTeeLogger(logger),
	)
	drv := rotee.NewDriver(os.Stdin, tee, sink, rotee.WithDriverLogger(logger))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				drv.Rotate()
			default:
				drv.Shutdown()
			}
		}
	}()

	return drv.Run(context.Background())
}
