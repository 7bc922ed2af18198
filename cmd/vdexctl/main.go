// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/census-labs/vdexgo"
)

// RunConfig is the full set of caller-facing knobs for one invocation,
// built from cobra flags and read by run and runOne.
type RunConfig struct {
	InputPath        string
	OutputDir        string
	AllowOverwrite   bool
	Unquicken        bool
	DumpDeps         bool
	Disassemble      bool
	NewChecksumsPath string
	LogLevel         string
}

var cfg RunConfig

func resolveLogLevel(level string) (log.Level, error) {
	switch strings.ToLower(level) {
	case "fatal":
		return log.LevelFatal, nil
	case "error":
		return log.LevelError, nil
	case "warn":
		return log.LevelWarn, nil
	case "info":
		return log.LevelInfo, nil
	case "debug":
		return log.LevelDebug, nil
	default:
		return 0, vdex.ErrInvalidLogLevel
	}
}

// looksLikeVdex filters candidate files during the directory walk:
// either the extension says .vdex, or the sniffed content type is
// generic binary data, in which case vdex.Validate does the real
// gatekeeping once the file is opened.
func looksLikeVdex(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".vdex") {
		return true
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return mtype.Is("application/octet-stream")
}

// collectFiles performs a one-level directory walk (no recursion into
// subdirectories) over root, returning every candidate VDEX path. If
// root is itself a file, it is returned unfiltered.
func collectFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if looksLikeVdex(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

func runOne(path string, helper *log.Helper) error {
	var f *vdex.File
	var err error

	if cfg.NewChecksumsPath != "" {
		f, err = vdex.OpenWritable(path, &vdex.Options{Unquicken: cfg.Unquicken})
	} else {
		f, err = vdex.Open(path, &vdex.Options{Unquicken: cfg.Unquicken})
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Validate(); err != nil {
		return err
	}

	sink := vdex.NewDirSink(cfg.OutputDir, cfg.AllowOverwrite)

	// A checksum rewrite is a standalone operation (§6): it never
	// extracts, unquickens, dumps deps, or disassembles.
	if cfg.NewChecksumsPath != "" {
		sidecar, err := os.Open(cfg.NewChecksumsPath)
		if err != nil {
			return err
		}
		defer sidecar.Close()
		checksums, err := vdex.ReadChecksumSidecar(sidecar)
		if err != nil {
			return err
		}
		if _, err := f.Process(vdex.ProcessConfig{NewChecksums: checksums}); err != nil {
			return err
		}
		return sink.Write(path, f.Bytes(), vdex.KindVdex, 0)
	}

	procCfg := vdex.ProcessConfig{
		Unquicken:   cfg.Unquicken,
		DumpDeps:    cfg.DumpDeps,
		Disassemble: cfg.Disassemble,
	}

	result, err := f.Process(procCfg)
	if err != nil {
		return err
	}

	for _, dex := range result.Dexes {
		if err := sink.Write(path, dex.Bytes, vdex.KindDex, len(result.Dexes)); err != nil {
			helper.Warnf("%s: dex %d: %v", path, dex.Index, err)
			continue
		}
		if cfg.DumpDeps && dex.Deps != nil {
			fmt.Printf("=== %s dex %d verifier-deps ===\n%s", path, dex.Index, dex.Deps.Report())
		}
		if cfg.Disassemble && dex.Disassembly != "" {
			fmt.Printf("=== %s dex %d disassembly ===\n%s", path, dex.Index, dex.Disassembly)
		}
	}

	return nil
}

func run(cmd *cobra.Command, args []string) {
	cfg.InputPath = args[0]

	level, err := resolveLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(level)))

	files, err := collectFiles(cfg.InputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	processed := 0
	for _, path := range files {
		if err := runOne(path, logger); err != nil {
			logger.Errorf("%s: %v", path, err)
			continue
		}
		processed++
	}

	fmt.Printf("%d of %d files processed\n", processed, len(files))
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "vdexctl",
		Short: "A VDEX container unquickener",
		Long:  "Recovers pre-quickening DEX bytecode embedded in Android VDEX containers",
	}

	extractCmd := &cobra.Command{
		Use:   "extract <path>",
		Short: "Extract and optionally unquicken DEX files from a VDEX container or directory",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}

	extractCmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", ".", "output directory for extracted DEX files")
	extractCmd.Flags().BoolVarP(&cfg.AllowOverwrite, "force", "f", false, "allow overwriting existing output files")
	extractCmd.Flags().BoolVar(&cfg.Unquicken, "unquicken", true, "revert quickened instructions back to symbolic form")
	extractCmd.Flags().BoolVar(&cfg.DumpDeps, "deps", false, "dump the verifier-dependencies report")
	extractCmd.Flags().BoolVar(&cfg.Disassemble, "disassemble", false, "print per-method disassembly")
	extractCmd.Flags().StringVar(&cfg.NewChecksumsPath, "rewrite-checksums", "", "sidecar file with one checksum per line; rewrites the container in place")
	extractCmd.Flags().StringVar(&cfg.LogLevel, "log-level", "error", "one of: fatal, error, warn, info, debug")

	rootCmd.AddCommand(extractCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
