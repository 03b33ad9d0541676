package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cosmossdk.io/log"

	"github.com/skalenetwork/ima-agent/config"
)

// AppState is the modifiable state of the application, grounded on the
// teacher's appState pattern: a config and a logger, lazily
// initialized, shared by every subcommand.
type AppState struct {
	Config *config.Config

	ConfigPath string

	Debug bool

	LogLevel string

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState checks if a logger and config are present. If not, it adds them to the AppState.
func (a *AppState) InitAppState() {
	if a.Logger == nil {
		a.InitLogger()
	}
	if a.Config == nil {
		a.loadConfigFile()
	}
}

func (a *AppState) InitLogger() {
	// info level is default
	level := zerolog.InfoLevel
	switch a.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// a.Debug overrides a.LogLevel
	if a.Debug {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(zerolog.DebugLevel))
	} else {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(level))
	}
}

// loadConfigFile loads a configuration into the AppState. It uses the
// AppState ConfigPath to determine the file path to the config.
func (a *AppState) loadConfigFile() {
	if a.Logger == nil {
		a.InitLogger()
	}
	cfg, err := config.Parse(a.ConfigPath)
	if err != nil {
		a.Logger.Error("unable to parse config file", "location", a.ConfigPath, "err", err)
		os.Exit(1)
	}
	a.Logger.Info("successfully parsed config file", "location", a.ConfigPath)
	a.Config = &cfg

	if err := a.validateConfig(); err != nil {
		a.Logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
}

// validateConfig checks the AppState Config for any invalid settings.
func (a *AppState) validateConfig() error {
	if len(a.Config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	for name, chain := range a.Config.Chains {
		if err := a.validateChain(name, chain); err != nil {
			return err
		}
	}

	enabled := 0
	for _, direction := range a.Config.Directions {
		if !direction.Enabled {
			continue
		}
		enabled++
		if _, ok := a.Config.Chains[direction.Source]; !ok {
			return fmt.Errorf("direction %s->%s: unknown source chain", direction.Source, direction.Destination)
		}
		if _, ok := a.Config.Chains[direction.Destination]; !ok {
			return fmt.Errorf("direction %s->%s: unknown destination chain", direction.Source, direction.Destination)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one direction must be enabled in the config")
	}

	if a.Config.Options.TransactionsPerBlock <= 0 {
		return fmt.Errorf("transactionsPerBlock must be greater than zero in the config")
	}

	return nil
}

// validateChain ensures one chain entry carries enough to dial and
// sign with.
func (a *AppState) validateChain(name string, chain config.ChainConfig) error {
	if chain.RPC == "" {
		return fmt.Errorf("rpc must be set in the config (chain: %s)", name)
	}
	if chain.MessageProxy == "" {
		return fmt.Errorf("messageProxy must be set in the config (chain: %s)", name)
	}
	backends := 0
	if chain.Signer.Local != nil {
		backends++
	}
	if chain.Signer.HSM != nil {
		backends++
	}
	if chain.Signer.Queue != nil {
		backends++
	}
	if backends != 1 {
		return fmt.Errorf("exactly one signer backend must be set in the config (chain: %s)", name)
	}
	return nil
}
