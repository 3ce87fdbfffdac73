package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Config controls one run of the generator. Values come from an optional
// YAML file; flags given on the command line take precedence.
type Config struct {
	Workers       int      `yaml:"workers"`
	Verbose       bool     `yaml:"verbose"`
	Validate      bool     `yaml:"validate"`
	Dump          bool     `yaml:"dump"`
	DB            string   `yaml:"db"`
	SkipFunctions []string `yaml:"skip_functions"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", file, err)
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("config %s: workers must not be negative", file)
	}
	for _, pat := range c.SkipFunctions {
		if _, err := path.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("config %s: skip_functions pattern %q: %w", file, pat, err)
		}
	}
	return c, nil
}

// Skip reports whether the function name matches a skip_functions pattern.
func (c *Config) Skip(name string) bool {
	for _, pat := range c.SkipFunctions {
		if ok, _ := path.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// parseArgs parses the command line. The config file named by -config is
// loaded first and then overridden by every flag the user set explicitly.
func parseArgs(args []string, stderr io.Writer) (*Config, []string, error) {
	fs := flag.NewFlagSet("tigercfg", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var flags Config
	configPath := fs.String("config", "", "YAML config file")
	fs.StringVar(&flags.DB, "db", "", "Write the graph to this SQLite database")
	fs.BoolVar(&flags.Dump, "dump", false, "Print each function's graph to stdout")
	fs.IntVar(&flags.Workers, "workers", 0, "Concurrent graph builds (0 = GOMAXPROCS)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Print detailed progress")
	fs.BoolVar(&flags.Validate, "validate", false, "Run validation queries after write")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tigercfg [flags] <input>...\n\n")
		fmt.Fprintf(stderr, "Builds per-instruction control-flow graphs with def/use sets from Tiger IR.\n")
		fmt.Fprintf(stderr, "Inputs are .ir files, .txtar archives of .ir files, or directories.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errors.New("no inputs")
	}

	conf := &Config{}
	if *configPath != "" {
		var err error
		if conf, err = LoadConfig(*configPath); err != nil {
			return nil, nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			conf.DB = flags.DB
		case "dump":
			conf.Dump = flags.Dump
		case "workers":
			if flags.Workers < 0 {
				err = fmt.Errorf("-workers must not be negative, got %d", flags.Workers)
			}
			conf.Workers = flags.Workers
		case "verbose":
			conf.Verbose = flags.Verbose
		case "validate":
			conf.Validate = flags.Validate
		}
	})
	if err != nil {
		return nil, nil, err
	}
	if conf.DB == "" && !conf.Dump {
		return nil, nil, errors.New("nothing to do: set -db or -dump")
	}
	return conf, fs.Args(), nil
}
