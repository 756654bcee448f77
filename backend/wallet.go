package backend

import (
	"fmt"
	"github.com/gagliardetto/solana-go"
	"os"
	"path/filepath"
	"strings"
)

type Wallet struct {
	pubkey solana.PublicKey
	prikey solana.PrivateKey
}

func (w *Wallet) PublicKey() solana.PublicKey {
	return w.pubkey
}

// LoadPrivateKey accepts a base58 private key or the path of a
// solana-keygen JSON file. A leading ~ is expanded to the home directory.
func LoadPrivateKey(key string) (solana.PrivateKey, error) {
	path := key
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}
	var pri solana.PrivateKey
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		pri, err = solana.PrivateKeyFromSolanaKeygenFile(path)
	} else {
		pri, err = solana.PrivateKeyFromBase58(key)
	}
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return pri, nil
}

func (backend *Backend) ImportWallet(key string) (solana.PublicKey, error) {
	pri, err := LoadPrivateKey(key)
	if err != nil {
		return solana.PublicKey{}, err
	}
	backend.ImportPrivateKey(pri)
	return pri.PublicKey(), nil
}

func (backend *Backend) ImportPrivateKey(pri solana.PrivateKey) {
	pub := pri.PublicKey()
	for _, wallet := range backend.wallets {
		if wallet.pubkey == pub {
			return
		}
	}
	backend.wallets = append(backend.wallets, &Wallet{
		pubkey: pub,
		prikey: pri,
	})
}

func (backend *Backend) Wallets() []*Wallet {
	return backend.wallets
}

func (backend *Backend) getWallet(key solana.PublicKey) *solana.PrivateKey {
	for _, wallet := range backend.wallets {
		if wallet.pubkey == key {
			return &wallet.prikey
		}
	}
	return nil
}
