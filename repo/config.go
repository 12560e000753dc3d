package repo

import (
	"fmt"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/bundlr/version"
	"github.com/jessevdk/go-flags"
	"github.com/natefinch/lumberjack"
	"github.com/op/go-logging"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultConfigFilename = "bundlr.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "bundlr.log"

	defaultRelayURL    = "https://node1.bundlr.network"
	defaultCurrency    = "bitcoin"
	defaultEsploraURL  = "https://blockstream.info/api"
	defaultTestnetURL  = "https://blockstream.info/testnet/api"
	defaultRateSource  = "https://ticker.openbazaar.org/api"
	defaultFundTimeout = time.Hour
	defaultLogLevel    = "info"
)

var (
	// DefaultHomeDir is the default data directory.
	DefaultHomeDir = btcutil.AppDataDir("bundlr", false)

	fileLogFormat   = logging.MustStringFormatter(`%{time:2006-01-02T15:04:05} [%{level}] [%{module}] %{message}`)
	stdoutLogFormat = logging.MustStringFormatter(`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] [%{module}] %{message}`)
)

// Config defines the configuration options shared by all commands.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion bool          `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile  string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string        `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string        `long:"logdir" description:"Directory to log output"`
	LogLevel    string        `short:"l" long:"loglevel" description:"Set the logging level [debug, info, notice, warning, error, critical] (default: info)"`
	RelayURL    string        `short:"r" long:"relay" description:"URL of the bundlr relay"`
	Currency    string        `short:"c" long:"currency" description:"Currency used to pay the relay [bitcoin, mock] (default: bitcoin)"`
	KeyFile     string        `short:"k" long:"keyfile" description:"File holding a WIF private key, a mnemonic or a hex encoded mock key (default: <datadir>/keyfile)"`
	WIF         string        `long:"wif" description:"WIF encoded bitcoin private key. Overrides the key file."`
	Mnemonic    string        `long:"mnemonic" description:"BIP39 mnemonic for the bitcoin key. Overrides the key file."`
	EsploraURL  string        `long:"esplora" description:"URL of the Esplora API used for bitcoin"`
	Testnet     bool          `short:"t" long:"testnet" description:"Use the test network"`
	Proxy       string        `long:"proxy" description:"Connect through a SOCKS5 proxy at host:port"`
	MaxNotFound int           `long:"maxnotfound" description:"Give up waiting for a transaction after it was not found this many times in a row. Zero uses the currency default, negative waits forever."`
	FundTimeout time.Duration `long:"fundtimeout" description:"Maximum time a fund may take, including confirmation (default: 1h)"`
	RateSources []string      `long:"ratesource" description:"BitcoinAverage compatible exchange rate source. May be repeated."`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultHomeDir,
		ConfigFile:  filepath.Join(DefaultHomeDir, defaultConfigFilename),
		LogDir:      filepath.Join(DefaultHomeDir, defaultLogDirname),
		LogLevel:    defaultLogLevel,
		RelayURL:    defaultRelayURL,
		Currency:    defaultCurrency,
		FundTimeout: defaultFundTimeout,
	}
}

// EsploraEndpoint returns the configured Esplora URL or the default for
// the selected network.
func (c *Config) EsploraEndpoint() string {
	if c.EsploraURL != "" {
		return c.EsploraURL
	}
	if c.Testnet {
		return defaultTestnetURL
	}
	return defaultEsploraURL
}

// KeyFilePath returns the configured key file or the default one in the
// data directory.
func (c *Config) KeyFilePath() string {
	if c.KeyFile != "" {
		return c.KeyFile
	}
	return path.Join(c.DataDir, keyFileName)
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	   or data directory
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
//
// Options belonging to the command being run are ignored here. Command
// line options always take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file, data directory or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if preCfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	if preCfg.DataDir != cfg.DataDir {
		cfg.DataDir = preCfg.DataDir
		cfg.LogDir = filepath.Join(preCfg.DataDir, defaultLogDirname)
		cfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}
	if preCfg.ConfigFile != DefaultConfig().ConfigFile {
		cfg.ConfigFile = preCfg.ConfigFile
	}
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.ConfigFile = cleanAndExpandPath(cfg.ConfigFile)

	// Load additional config from file.
	if _, err := os.Stat(cfg.ConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfigFile(cfg.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a "+
				"default config file: %v\n", err)
		}
	}

	fileParser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	if err := flags.NewIniParser(fileParser).ParseFile(cfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	// Command line options win over the file.
	if _, err := flags.NewParser(&cfg, flags.IgnoreUnknown).ParseArgs(args); err != nil {
		return nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.KeyFile != "" {
		cfg.KeyFile = cleanAndExpandPath(cfg.KeyFile)
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	if len(cfg.RateSources) == 0 {
		cfg.RateSources = []string{defaultRateSource}
	}
	return &cfg, nil
}

const sampleConfig = `[Application Options]

; URL of the bundlr relay.
; relay=https://node1.bundlr.network

; Currency used to pay the relay.
; currency=bitcoin

; Esplora API used for bitcoin chain state.
; esplora=https://blockstream.info/api

; Use the test network.
; testnet=1

; SOCKS5 proxy for all connections, for example Tor.
; proxy=127.0.0.1:9050

; Logging level.
; loglevel=info
`

// createDefaultConfigFile writes a commented sample config to the given
// destination path.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(destinationPath, []byte(sampleConfig), 0600)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// SetupLogging sends log output to stdout and, if logDir is set, to a
// rotating log file in it.
func SetupLogging(logDir, logLevel string) {
	backendStdout := logging.NewLogBackend(os.Stdout, "", 0)
	backendStdoutFormatter := logging.NewBackendFormatter(backendStdout, stdoutLogFormat)

	if logDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   path.Join(logDir, defaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}

		backendFile := logging.NewLogBackend(rotator, "", 0)
		backendFileFormatter := logging.NewBackendFormatter(backendFile, fileLogFormat)
		logging.SetBackend(backendStdoutFormatter, backendFileFormatter)
	} else {
		logging.SetBackend(backendStdoutFormatter)
	}

	logging.SetLevel(ParseLogLevel(logLevel), "")
}

// ParseLogLevel maps a level name to a logging level, defaulting to info.
func ParseLogLevel(logLevel string) logging.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return logging.DEBUG
	case "info":
		return logging.INFO
	case "notice":
		return logging.NOTICE
	case "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "critical":
		return logging.CRITICAL
	default:
		return logging.INFO
	}
}
