package infra

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"

	"bitodash/internal/domain"
)

// Obfuscation is XOR + base64 with a fixed key. Explicitly NOT
// cryptographically secure: it protects stored keys against casual
// inspection of the database file, nothing more. Anyone with this source
// can reverse it, which is the accepted trade-off for a personal dashboard.
const obfuscationKey = "bitopro-dashboard-2024"

// Obfuscate XOR-mixes text with the fixed key and base64-encodes the result.
// Empty input yields empty output.
func Obfuscate(text string) string {
	if text == "" {
		return ""
	}
	raw := []byte(text)
	key := []byte(obfuscationKey)
	mixed := make([]byte, len(raw))
	for i := range raw {
		mixed[i] = raw[i] ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(mixed)
}

// Deobfuscate reverses Obfuscate. Corrupt input yields "".
func Deobfuscate(encoded string) string {
	if encoded == "" {
		return ""
	}
	mixed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	key := []byte(obfuscationKey)
	raw := make([]byte, len(mixed))
	for i := range mixed {
		raw[i] = mixed[i] ^ key[i%len(key)]
	}
	return string(raw)
}

// SettingsStore is the persistence behind the credential store.
type SettingsStore interface {
	SaveSetting(key, value string) error
	GetSetting(key string) (string, error)
	DeleteSetting(key string) error
}

const (
	settingKeyExchange = "credentials.bitopro"
	settingKeyNotion   = "credentials.notion"
)

// CredentialStore persists user-entered API credentials across restarts,
// obfuscated at rest. Save overwrites atomically from the caller's view;
// Load returns the zero value (not an error) when absent or corrupt.
type CredentialStore struct {
	store SettingsStore
	mu    sync.RWMutex
}

// NewCredentialStore creates a credential store over the given persistence.
func NewCredentialStore(store SettingsStore) *CredentialStore {
	return &CredentialStore{store: store}
}

// LoadExchange returns the stored exchange credentials, or the zero value
// when nothing usable is stored.
func (c *CredentialStore) LoadExchange() domain.Credentials {
	var creds domain.Credentials
	c.load(settingKeyExchange, &creds)
	return creds
}

// SaveExchange persists exchange credentials.
func (c *CredentialStore) SaveExchange(creds domain.Credentials) error {
	return c.save(settingKeyExchange, creds)
}

// ClearExchange removes stored exchange credentials.
func (c *CredentialStore) ClearExchange() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DeleteSetting(settingKeyExchange)
}

// LoadNotion returns the stored ledger credentials, or the zero value.
func (c *CredentialStore) LoadNotion() domain.NotionCredentials {
	var creds domain.NotionCredentials
	c.load(settingKeyNotion, &creds)
	return creds
}

// SaveNotion persists ledger credentials.
func (c *CredentialStore) SaveNotion(creds domain.NotionCredentials) error {
	return c.save(settingKeyNotion, creds)
}

// ClearNotion removes stored ledger credentials.
func (c *CredentialStore) ClearNotion() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DeleteSetting(settingKeyNotion)
}

func (c *CredentialStore) load(key string, out interface{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blob, err := c.store.GetSetting(key)
	if err != nil {
		slog.Warn("Credential load failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	plain := Deobfuscate(blob)
	if plain == "" {
		return
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		// Corrupt blob behaves like an absent one
		slog.Warn("Stored credentials are corrupt, ignoring", slog.String("key", key))
	}
}

func (c *CredentialStore) save(key string, creds interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	plain, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return c.store.SaveSetting(key, Obfuscate(string(plain)))
}
