// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	dirfile "github.com/vinceweaver/dirfile"
)

var (
	jsonOutput bool
	verbose    bool
	workers    int

	wg   sync.WaitGroup
	jobs chan string = make(chan string)
)

type result struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
	Size    uint32 `json:"size,omitempty"`
	Err     string `json:"error,omitempty"`
}

func prettyPrint(v interface{}) string {
	buff, _ := json.Marshal(v)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buff, "", "\t"); err != nil {
		return string(buff)
	}
	return pretty.String()
}

func inspect(fs dirfile.VirtualFileSystem, path string) result {
	res := result{Path: path}

	info, err := dirfile.Detect(fs, path)
	if err != nil {
		res.Kind = "unknown"
		res.Err = err.Error()
		return res
	}
	defer func() {
		if info.DataFork != nil {
			info.DataFork.Close()
		}
		if info.ResourceFork != nil {
			info.ResourceFork.Close()
		}
	}()

	switch info.Kind {
	case dirfile.DetectionKindProjector:
		res.Kind = "projector"
		res.Name = info.Projector.Name
		res.Version = info.Projector.Version.String()
	case dirfile.DetectionKindMovie:
		res.Kind = "movie"
		res.Version = info.Movie.Version.String()
		res.Size = info.Movie.Size
	}
	return res
}

func printResult(log zerolog.Logger, res result) {
	if jsonOutput {
		fmt.Println(prettyPrint(res))
		return
	}
	if res.Err != "" {
		log.Warn().Str("path", res.Path).Str("reason", res.Err).Msg("not a Director file")
		return
	}
	log.Info().
		Str("path", res.Path).
		Str("kind", res.Kind).
		Str("version", res.Version).
		Str("name", res.Name).
		Msg("detected")
}

func worker(fs dirfile.VirtualFileSystem, log zerolog.Logger) {
	for path := range jobs {
		printResult(log, inspect(fs, path))
		wg.Done()
	}
}

func walk(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !f.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func run(cmd *cobra.Command, args []string) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	fs := dirfile.NewHostFileSystem(dirfile.HostOptions{Logger: log})

	for i := 0; i < workers; i++ {
		go worker(fs, log)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			log.Error().Err(err).Str("path", arg).Msg("can't stat path")
			continue
		}
		if !info.IsDir() {
			wg.Add(1)
			jobs <- arg
			continue
		}
		files, err := walk(arg)
		if err != nil {
			log.Error().Err(err).Str("path", arg).Msg("can't walk directory")
			continue
		}
		for _, f := range files {
			wg.Add(1)
			jobs <- f
		}
	}
	wg.Wait()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "dirinfo",
		Short: "Identifies Macromedia/Adobe Director files",
		Long:  "Walks one or more paths and reports which ones are Director projectors or movies",
		Args:  cobra.MinimumNArgs(1),
		Run:   run,
	}

	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit one JSON object per file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of concurrent scan workers")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
