package wallet

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrWrongPassphrase is returned when the state file cannot be opened with the passphrase.
var ErrWrongPassphrase = errors.New("wallet: wrong passphrase or corrupted state file")

const (
	storeVersion = 1
	saltSize     = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealedFile is the on-disk layout. []byte fields are base64 in JSON.
type sealedFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Save encrypts s under passphrase and writes it to path with mode 0600.
func Save(path, passphrase string, s *State) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding wallet: %w", err)
	}
	salt := make([]byte, saltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(sealedFile{
		Version:    storeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plain, nil),
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads and decrypts the state at path.
func Load(path, passphrase string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f sealedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wallet: malformed state file: %w", err)
	}
	if f.Version != storeVersion {
		return nil, fmt.Errorf("wallet: unsupported state file version %d", f.Version)
	}
	if len(f.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrWrongPassphrase
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, f.Salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, f.Nonce, f.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	var s State
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("decoding wallet: %w", err)
	}
	return &s, nil
}
