// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers

package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/cerbtk/registry/ledger"
	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/nonce"
	"github.com/cerbtk/registry/registration"
	"github.com/cerbtk/registry/signing"
)

const (
	defaultDbDirName      = "db"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultChainFilename  = "chain.json"
	defaultIndexDirname   = "devices"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultRESTPort       = 23230
	defaultRPCPort        = 23231

	defaultHealthInterval = 10 * time.Second
)

// Config defines the configuration options for the registry.
//
// See SetupConfig for how paths are derived from RegistryDir.
//
//nolint:lll
type Config struct {
	RegistryDir     string        `long:"registrydir"     description:"The base directory that contains the registry's data, logs, configuration file, etc."`
	ConfigFile      string        `long:"configfile"      description:"Path to configuration file"                                                            short:"c"`
	DataDir         string        `long:"datadir"         description:"The directory to store the chain file within"                                          short:"b"`
	DbDir           string        `long:"dbdir"           description:"The directory to store DBs within"`
	LogDir          string        `long:"logdir"          description:"Directory to log output."`
	DebugLog        bool          `long:"debuglog"        description:"Enable debug logs"`
	JSONLog         bool          `long:"jsonlog"         description:"Whether to log in JSON format"`
	MaxLogFiles     int           `long:"maxlogfiles"     description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize  int           `long:"maxlogfilesize"  description:"Maximum logfile size in MB"`
	RawRPCListener  string        `long:"rpclisten"       description:"The interface/port/socket to listen for gRPC health and reflection"                    short:"r"`
	RawRESTListener string        `long:"restlisten"      description:"The interface/port/socket to listen for REST connections"                              short:"w"`
	MetricsPort     *uint16       `long:"metrics-port"    description:"The port to expose metrics"`
	HealthInterval  time.Duration `long:"health-interval" description:"How often the chain is re-validated for the gRPC health status"`

	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	Profile    string `long:"profile"    description:"Enable HTTP profiling on given port -- must be between 1024 and 65535"`

	Ledger       ledger.Config       `group:"Ledger"`
	Nonce        nonce.Config        `group:"Nonce"`
	Signing      signing.Config      `group:"Signing"`
	Registration registration.Config `group:"Registration"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	registryDir := "./registry"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		registryDir = filepath.Join(cacheDir, "cerbtk-registry")
	}

	return &Config{
		RegistryDir:     registryDir,
		DataDir:         filepath.Join(registryDir, defaultDataDirname),
		DbDir:           filepath.Join(registryDir, defaultDbDirName),
		LogDir:          filepath.Join(registryDir, defaultLogDirname),
		MaxLogFiles:     defaultMaxLogFiles,
		MaxLogFileSize:  defaultMaxLogFileSize,
		RawRPCListener:  fmt.Sprintf("localhost:%d", defaultRPCPort),
		RawRESTListener: fmt.Sprintf("localhost:%d", defaultRESTPort),
		HealthInterval:  defaultHealthInterval,
		Ledger:          ledger.DefaultConfig(),
		Nonce:           nonce.DefaultConfig(),
		Signing:         signing.DefaultConfig(),
		Registration:    registration.DefaultConfig(),
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
// The chain file and the device index default to locations inside DataDir and DbDir.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided registry directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.RegistryDir != defaultCfg.RegistryDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.RegistryDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.RegistryDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.RegistryDir, defaultDbDirName)
		}
	}

	if err := os.MkdirAll(cfg.RegistryDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.RegistryDir, err)
	}

	// As soon as we're done parsing configuration options, ensure all paths
	// to directories and files are cleaned and expanded before attempting
	// to use them later on.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)

	if cfg.Ledger.StoragePath == "" {
		cfg.Ledger.StoragePath = filepath.Join(cfg.DataDir, defaultChainFilename)
	}
	if cfg.Ledger.IndexPath == "" {
		cfg.Ledger.IndexPath = filepath.Join(cfg.DbDir, defaultIndexDirname)
	}
	cfg.Ledger.StoragePath = cleanAndExpandPath(cfg.Ledger.StoragePath)
	cfg.Ledger.IndexPath = cleanAndExpandPath(cfg.Ledger.IndexPath)
	cfg.Signing.TrustedKeysPath = cleanAndExpandPath(cfg.Signing.TrustedKeysPath)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
