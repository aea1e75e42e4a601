// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command logzip packs log files into ZIP archives and converts DEFLATE
// and zlib streams.
//
// Usage:
//
//	logzip zip [-level n] [-C dir] archive.zip file...
//	logzip unzip [-d dir] archive.zip
//	logzip list archive.zip
//	logzip pack [-level n] file...
//	logzip deflate [-level n] [-raw] < input > output
//	logzip inflate [-raw] < input > output
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lemon4ksan/logzip"
	"github.com/lemon4ksan/logzip/flate"
	"github.com/lemon4ksan/logzip/rotate"
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var errUsage = errors.New("usage")

type command struct {
	name string
	args string
	help string
	run  func(fset *flag.FlagSet, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"zip", "[-level n] [-C dir] archive.zip file...", "create an archive from files and directories", runZip},
		{"unzip", "[-d dir] archive.zip", "extract an archive", runUnzip},
		{"list", "archive.zip", "list the entries of an archive", runList},
		{"pack", "[-level n] file...", "replace each file with file.zip, as done on log rotation", runPack},
		{"deflate", "[-level n] [-raw]", "compress standard input to a zlib (or raw DEFLATE) stream", runDeflate},
		{"inflate", "[-raw]", "decompress a zlib (or raw DEFLATE) stream from standard input", runInflate},
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fatal("%v", err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("logzip", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = usage
	verbose := global.Bool("v", false, "log progress to standard error")
	if err := global.Parse(args); err != nil {
		return errUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if global.NArg() < 1 {
		usage()
		return errUsage
	}

	name := global.Arg(0)
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		fset := flag.NewFlagSet("logzip "+cmd.name, flag.ContinueOnError)
		fset.SetOutput(stderr)
		fset.Usage = func() {
			fmt.Fprintf(stderr, "Usage: logzip %s %s\n\n", cmd.name, cmd.args)
			fset.PrintDefaults()
		}
		return cmd.run(fset, global.Args()[1:])
	}

	fmt.Fprintf(stderr, "logzip: unknown command %q\n", name)
	usage()
	return errUsage
}

func runZip(fset *flag.FlagSet, args []string) error {
	level := fset.Int("level", logzip.DeflateNormal, "compression level, 0-9")
	base := fset.String("C", "", "store names relative to `dir`")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if fset.NArg() < 2 {
		fset.Usage()
		return errUsage
	}

	opts := []logzip.ArchiveOption{
		logzip.WithLevel(*level),
		logzip.WithOnItemProcessed(func(it *logzip.Item, err error) {
			if err == nil {
				fmt.Fprintf(stdout, "  adding: %s (%s)\n", it.Name(), describe(it))
			}
		}),
	}
	if *base != "" {
		opts = append(opts, logzip.WithNamePreprocessor(logzip.TrimPrefix(filepath.Clean(*base)+"/")))
	}

	archive := logzip.NewArchive(opts...)
	defer archive.Close()

	for _, path := range fset.Args()[1:] {
		if err := addPath(archive, path); err != nil {
			return err
		}
	}

	dest := fset.Arg(0)
	if err := archive.SaveFile(dest); err != nil {
		return err
	}
	slog.Debug("saved archive", slog.String("path", dest), slog.Int("entries", archive.Len()))
	return nil
}

// addPath adds a file, or a directory with everything below it.
func addPath(archive *logzip.Archive, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			_, err = archive.AddDirectory(filepath.ToSlash(path), logzip.WithModTime(info.ModTime()))
			if errors.Is(err, logzip.ErrInvalidName) && path == root {
				// "." and similar roots have no entry of their own.
				return nil
			}
			return err
		case d.Type().IsRegular():
			_, err := archive.AddFile(path)
			return err
		default:
			slog.Warn("skipping irregular file", slog.String("path", path))
			return nil
		}
	})
}

func runUnzip(fset *flag.FlagSet, args []string) error {
	dir := fset.String("d", ".", "extract files into `dir`")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return errUsage
	}

	archive, err := logzip.OpenFile(fset.Arg(0), logzip.WithOnItemProcessed(func(it *logzip.Item, err error) {
		if err != nil {
			slog.Error("extract failed", slog.String("name", it.Name()), slog.Any("err", err))
		}
	}))
	if err != nil {
		return err
	}
	defer archive.Close()

	fmt.Fprintf(stdout, "Archive:  %s\n", fset.Arg(0))
	for _, it := range archive.Items() {
		if it.IsDir() {
			fmt.Fprintf(stdout, "   creating: %s/\n", it.Name())
		} else {
			fmt.Fprintf(stdout, "  inflating: %s\n", it.Name())
		}
	}
	return archive.Extract(*dir)
}

func runList(fset *flag.FlagSet, args []string) error {
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return errUsage
	}

	archive, err := logzip.OpenFile(fset.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	fmt.Fprintf(stdout, "Archive:  %s\n", fset.Arg(0))
	fmt.Fprintln(stdout, " Length   Method     Size  Cmpr    Date    Time   CRC-32   Name")
	fmt.Fprintln(stdout, "--------  -------- -------- ---- ---------- ----- --------  ----")

	var total, packed int64
	for _, it := range archive.Items() {
		name := it.Name()
		if it.IsDir() {
			name += "/"
		}
		fmt.Fprintf(stdout, "%8d  %-8s %8d %3d%% %s %08x  %s\n",
			it.UncompressedSize(),
			it.Method(),
			it.CompressedSize(),
			ratio(it.UncompressedSize(), it.CompressedSize()),
			it.ModTime().Format("2006-01-02 15:04"),
			it.CRC32(),
			name)
		total += it.UncompressedSize()
		packed += it.CompressedSize()
	}

	fmt.Fprintln(stdout, "--------           -------- ----                            -------")
	fmt.Fprintf(stdout, "%8d           %8d %3d%%                            %d files\n",
		total, packed, ratio(total, packed), archive.Len())
	return nil
}

func runPack(fset *flag.FlagSet, args []string) error {
	level := fset.Int("level", logzip.DeflateMaximum, "compression level, 0-9")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}
	if fset.NArg() < 1 {
		fset.Usage()
		return errUsage
	}

	for _, path := range fset.Args() {
		dest, err := rotate.CompressFile(path, logzip.WithLevel(*level))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  packed: %s -> %s\n", path, dest)
	}
	return nil
}

func runDeflate(fset *flag.FlagSet, args []string) error {
	level := fset.Int("level", flate.DefaultCompression, "compression level, 0-9")
	raw := fset.Bool("raw", false, "write a raw DEFLATE stream without the zlib wrapper")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}

	opts := []flate.Option{flate.WithLevel(*level)}
	if *raw {
		opts = append(opts, flate.WithRaw())
	}
	w, err := flate.NewWriter(stdout, opts...)
	if err != nil {
		return err
	}

	n, err := io.Copy(w, stdin)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	slog.Debug("compressed input", slog.Int64("size", n), slog.Int("level", *level))
	return nil
}

func runInflate(fset *flag.FlagSet, args []string) error {
	raw := fset.Bool("raw", false, "read a raw DEFLATE stream without the zlib wrapper")
	if err := fset.Parse(args); err != nil {
		return errUsage
	}

	var opts []flate.Option
	if *raw {
		opts = append(opts, flate.WithRaw())
	}
	r, err := flate.NewReader(stdin, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := io.Copy(stdout, r)
	if err != nil {
		return err
	}
	slog.Debug("decompressed input", slog.Int64("size", n))
	return nil
}

func describe(it *logzip.Item) string {
	if it.Method() == logzip.Stored {
		return "stored 0%"
	}
	return fmt.Sprintf("deflated %d%%", ratio(it.UncompressedSize(), it.CompressedSize()))
}

// ratio returns the space saved by compression as a percentage.
func ratio(size, packed int64) int {
	if size <= 0 || packed >= size {
		return 0
	}
	return int(100 - packed*100/size)
}

func usage() {
	fmt.Fprintf(stderr, "Usage: logzip [-v] command [arguments]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(stderr, "  %-8s %s\n", cmd.name, cmd.help)
	}
	fmt.Fprintf(stderr, `
Examples:
  logzip zip logs.zip /var/log/app        Archive a directory
  logzip zip -C /var/log logs.zip /var/log/app
                                          Store names relative to /var/log
  logzip list logs.zip                    List contents
  logzip unzip -d /tmp logs.zip           Extract to /tmp
  logzip pack app-2024-01-02-000.log      Replace a log with its archive
  logzip deflate -raw < in > out          Write raw DEFLATE

`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(stderr, "logzip: "+format+"\n", args...)
	os.Exit(1)
}
