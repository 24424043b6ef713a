package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IdentityFile is the local persistence record written after registration.
//
// EXPERIMENTAL: this filesystem surface is a local-first convenience, not part
// of the signing protocol. Key hex strings are 64 lowercase hex characters.
type IdentityFile struct {
	EntityID   string `json:"entity_id"`
	Alias      string `json:"alias"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Registered bool   `json:"registered"`
}

// DefaultDirectory returns the default identity directory (~/.aieos).
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".aieos"), nil
}

// IdentityPath returns the identity file path for an alias inside dir.
func IdentityPath(dir, alias string) string {
	return filepath.Join(dir, alias+".json")
}

// CheckAlias restricts aliases to filesystem-safe characters.
func CheckAlias(alias string) error {
	if alias == "" {
		return errors.New("alias cannot be empty")
	}
	for _, char := range alias {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in alias", char)
	}
	return nil
}

// SaveIdentity writes id as indented JSON with owner-only permissions.
// Unless overwrite is set, an existing file is an error.
func SaveIdentity(path string, id IdentityFile, overwrite bool) error {
	if _, err := ParsePublicKeyHex(id.PublicKey); err != nil {
		return fmt.Errorf("identity public key: %w", err)
	}
	if _, err := ParseSeedHex(id.PrivateKey); err != nil {
		return fmt.Errorf("identity private key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if _, err := file.Write(append(b, '\n')); err != nil {
		return err
	}
	return file.Close()
}

// LoadIdentity reads and validates an identity file.
func LoadIdentity(path string) (IdentityFile, error) {
	var id IdentityFile
	data, err := os.ReadFile(path)
	if err != nil {
		return id, err
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return id, err
	}
	if _, err := ParsePublicKeyHex(id.PublicKey); err != nil {
		return id, fmt.Errorf("identity public key: %w", err)
	}
	if _, err := ParseSeedHex(id.PrivateKey); err != nil {
		return id, fmt.Errorf("identity private key: %w", err)
	}
	return id, nil
}
