package config

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	appLog "tutorcal/internal/log"
)

const (
	keyringService = "tutorcal"
	keyringKey     = "api-token"
)

// TokenStore persists the bearer token outside the config file.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
}

// ErrNoToken means no token is stored.
var ErrNoToken = errors.New("no api token stored")

type keyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the OS credential store used for the API token.
func OpenKeyring() (TokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &keyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) TokenStore {
	return &keyringStore{ring: ring}
}

func (k *keyringStore) Get() (string, error) {
	item, err := k.ring.Get(keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoToken
		}
		return "", err
	}
	return string(item.Data), nil
}

func (k *keyringStore) Set(token string) error {
	return k.ring.Set(keyring.Item{
		Key:         keyringKey,
		Data:        []byte(token),
		Label:       "tutorcal API token",
		Description: "bearer token for the lesson-schedule API",
	})
}

// ResolveToken fills c.API.Token from store when neither the environment
// nor the config file supplied one.
func ResolveToken(c *Config, store TokenStore) {
	if c.API.Token != "" || store == nil {
		return
	}
	tok, err := store.Get()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			appLog.Error("reading api token from keyring failed", err)
		}
		return
	}
	c.API.Token = tok
}
