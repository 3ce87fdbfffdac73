package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/tools/txtar"

	"tigercfg/ir"
)

// Unit is one IR file, read from disk or from a txtar archive.
type Unit struct {
	File    string // slash-separated; archive members are <archive>/<member>
	Source  string
	Program *ir.Program
}

// LoadResult holds the output of input loading.
type LoadResult struct {
	Units []*Unit
}

// Functions returns the number of functions across all units.
func (r *LoadResult) Functions() int {
	var n int
	for _, u := range r.Units {
		n += len(u.Program.Functions)
	}
	return n
}

// LoadInputs reads every IR file named by paths. A path may be an IR file, a
// txtar archive bundling several IR files, or a directory which is walked for
// both. The first syntax error aborts loading.
func LoadInputs(paths []string, prog *Progress) (*LoadResult, error) {
	prog.Log("Loading IR from %d inputs...", len(paths))

	res := &LoadResult{}
	seen := make(map[string]bool)
	add := func(file string, data []byte) error {
		file = filepath.ToSlash(file)
		if seen[file] {
			prog.Verbose("  skipping duplicate input %s", file)
			return nil
		}
		seen[file] = true
		p, err := ir.ReadProgram(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		prog.Verbose("  %s: %d functions", file, len(p.Functions))
		res.Units = append(res.Units, &Unit{File: file, Source: string(data), Program: p})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("load input: %w", err)
		}
		if !info.IsDir() {
			if err := loadFile(p, add); err != nil {
				return nil, err
			}
			continue
		}
		files, err := findIRFiles(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := loadFile(f, add); err != nil {
				return nil, err
			}
		}
	}

	prog.Log("Loaded %d files (%d functions)", len(res.Units), res.Functions())
	return res, nil
}

func loadFile(file string, add func(string, []byte) error) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	if !isArchive(file) {
		return add(file, data)
	}
	ar := txtar.Parse(data)
	for _, m := range ar.Files {
		if !strings.HasSuffix(m.Name, ".ir") {
			continue
		}
		if err := add(path.Join(filepath.ToSlash(file), m.Name), m.Data); err != nil {
			return err
		}
	}
	return nil
}

// findIRFiles walks dir for .ir and .txtar files, skipping hidden directories.
func findIRFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".ir") || isArchive(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

func isArchive(file string) bool {
	return strings.HasSuffix(file, ".txtar")
}
