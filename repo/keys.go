package repo

import (
	"errors"
	"github.com/tyler-smith/go-bip39"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// ErrKeyFileExists is returned when writing a key file over an existing
// one without force.
var ErrKeyFileExists = errors.New("key file already exists")

// CreateMnemonic returns a new 12 word BIP39 mnemonic.
func CreateMnemonic() (string, error) {
	return createMnemonic(bip39.NewEntropy, bip39.NewMnemonic)
}

func createMnemonic(newEntropy func(int) ([]byte, error), newMnemonic func([]byte) (string, error)) (string, error) {
	entropy, err := newEntropy(128)
	if err != nil {
		return "", err
	}
	mnemonic, err := newMnemonic(entropy)
	if err != nil {
		return "", err
	}
	return mnemonic, nil
}

// WriteKeyFile writes key material readable only by the current user.
func WriteKeyFile(pth, key string, force bool) error {
	if _, err := os.Stat(pth); err == nil && !force {
		return ErrKeyFileExists
	}
	if err := os.MkdirAll(filepath.Dir(pth), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(pth, []byte(strings.TrimSpace(key)+"\n"), 0600)
}

// ReadKeyFile returns the trimmed contents of a key file.
func ReadKeyFile(pth string) (string, error) {
	b, err := ioutil.ReadFile(pth)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", errors.New("key file is empty")
	}
	return key, nil
}
