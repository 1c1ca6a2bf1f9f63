// Package config merges command line flags, FASTTREE_* environment variables
// and an optional config file into the settings of one run.
package config

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fasttree/internal/alignment"
	"fasttree/internal/infer"
)

// Setting keys, also used as flag names.
const (
	KeyAlgo     = "algo"
	KeyRefresh  = "refresh"
	KeyTopHits  = "top-hits"
	KeyWorkers  = "workers"
	KeyFormat   = "format"
	KeyLogLevel = "log-level"
	KeyConfig   = "config"
)

const envPrefix = "FASTTREE"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Algorithm       infer.Algorithm
	AlgorithmSet    bool // false when no algorithm was named
	RefreshInterval int
	TopHits         int
	Workers         int
	Format          string
	LogLevel        log.Level
}

// AddFlags registers the settings on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyAlgo, "", "tree construction algorithm: nj or slowtree")
	fs.Int(KeyRefresh, 0, "joins between total profile refreshes for slowtree (0: sqrt(N))")
	fs.Int(KeyTopHits, 0, "candidate partners kept per node for slowtree (0: score every pair)")
	fs.Int(KeyWorkers, 0, "goroutines scoring pairs (0: number of CPUs)")
	fs.String(KeyFormat, alignment.FormatAuto, "alignment format: auto, fasta or nexus")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn or error")
	fs.String(KeyConfig, "", "config file (yaml, toml or json)")
}

// Viper returns a viper instance reading fs, the environment and the config
// file named by the config setting, in that order of precedence.
func Viper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}
	return v, nil
}

// Load reads and validates the settings of fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v, err := Viper(fs)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		RefreshInterval: v.GetInt(KeyRefresh),
		TopHits:         v.GetInt(KeyTopHits),
		Workers:         v.GetInt(KeyWorkers),
		Format:          strings.ToLower(v.GetString(KeyFormat)),
	}
	var err error
	if name := v.GetString(KeyAlgo); name != "" {
		if c.Algorithm, err = infer.ParseAlgorithm(name); err != nil {
			return nil, errors.Wrap(ErrInvalid, err.Error())
		}
		c.AlgorithmSet = true
	}
	switch {
	case c.RefreshInterval < 0:
		return nil, errors.Wrapf(ErrInvalid, "refresh interval %d is negative", c.RefreshInterval)
	case c.TopHits < 0:
		return nil, errors.Wrapf(ErrInvalid, "top hits %d is negative", c.TopHits)
	case c.Workers < 0:
		return nil, errors.Wrapf(ErrInvalid, "workers %d is negative", c.Workers)
	}
	switch c.Format {
	case alignment.FormatAuto, alignment.FormatFasta, alignment.FormatNexus:
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown format %q", c.Format)
	}
	if c.LogLevel, err = log.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	return c, nil
}

// RequireAlgorithm fails unless an algorithm was named.
func (c *Config) RequireAlgorithm() error {
	if !c.AlgorithmSet {
		return errors.Wrap(ErrInvalid, "no algorithm chosen, use --algo nj or --algo slowtree")
	}
	return nil
}

func (c *Config) Options() infer.Options {
	return infer.Options{
		Algorithm:       c.Algorithm,
		RefreshInterval: c.RefreshInterval,
		TopHits:         c.TopHits,
		Workers:         c.Workers,
	}
}
