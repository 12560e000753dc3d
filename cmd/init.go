package cmd

import (
	"encoding/hex"
	"fmt"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/currency/mock"
	"github.com/cpacia/bundlr/repo"
)

// Init creates the data directory, the funding journal and a new key file
// for the configured currency.
type Init struct {
	repo.Config
	Force bool `long:"force" description:"Overwrite an existing key file (dangerous!)"`
}

// Execute initializes the data directory.
func (x *Init) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return err
	}
	defer r.Close()

	var key string
	switch cfg.Currency {
	case currency.ChainMock.String():
		signer, err := mock.NewSigner()
		if err != nil {
			return err
		}
		key = hex.EncodeToString(signer.PrivateKey())
	default:
		key, err = repo.CreateMnemonic()
		if err != nil {
			return err
		}
	}

	pth := cfg.KeyFilePath()
	if err := repo.WriteKeyFile(pth, key, x.Force); err != nil {
		return err
	}

	backend, err := newBackend(cfg, nil)
	if err != nil {
		return err
	}
	green.Printf("Initialized %s\n", cfg.DataDir)
	fmt.Printf("Key file: %s\n", pth)
	fmt.Printf("%s address: %s\n", backend.Type(), addressOf(backend))
	return nil
}

// addressOf returns the chain address of backends that expose one.
func addressOf(backend currency.Currency) string {
	if a, ok := backend.(interface{ Address() string }); ok {
		return a.Address()
	}
	return "unknown"
}
