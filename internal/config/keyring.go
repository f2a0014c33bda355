package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name passwords are stored under; the
// profile name is the account.
const keyringService = "lossim"

// ResolvePassword fills in the password of a keyring-backed profile.
// Profiles with an inline password or without keyring are left unchanged.
func ResolvePassword(c *Connection) error {
	if !c.Keyring || c.Password != "" {
		return nil
	}
	pw, err := keyring.Get(keyringService, c.Name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no keyring password for connection %q", c.Name)
		}
		return fmt.Errorf("keyring: %w", err)
	}
	c.Password = pw
	return nil
}

// StorePassword moves the profile password into the keyring and clears it
// from the profile so it is never written to disk.
func StorePassword(c *Connection) error {
	if err := keyring.Set(keyringService, c.Name, c.Password); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	c.Password = ""
	c.Keyring = true
	return nil
}
