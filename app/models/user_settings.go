package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	apiKeyPrefix       = "flw_"
	apiKeyEntropy      = 32
	apiKeyDisplayChars = 12
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// UserSettings holds the account's API credential. At most one key is
// active; only its SHA-256 hash is stored.
type UserSettings struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"uniqueIndex" json:"user_id"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time     `json:"api_key_revoked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// APIKey is freshly generated key material. Raw is handed to the user once.
type APIKey struct {
	Raw    string
	Prefix string
	Hash   string
}

func NewAPIKey() (APIKey, error) {
	b := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(b); err != nil {
		return APIKey{}, err
	}
	raw := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	return APIKey{Raw: raw, Prefix: raw[:apiKeyDisplayChars], Hash: HashAPIKey(raw)}, nil
}

func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey replaces any current key and returns the raw secret.
// The caller persists the settings.
func (us *UserSettings) IssueAPIKey(now time.Time) (string, error) {
	key, err := NewAPIKey()
	if err != nil {
		return "", err
	}
	us.APIKeyHash, us.APIKeyPrefix = key.Hash, key.Prefix
	us.APIKeyCreatedAt = &now
	us.APIKeyLastUsedAt, us.APIKeyRevokedAt = nil, nil
	return key.Raw, nil
}

func (us *UserSettings) RevokeAPIKey(now time.Time) {
	us.APIKeyHash, us.APIKeyPrefix = "", ""
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = &now
}

func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey reports whether raw carries the API key prefix.
func LooksLikeAPIKey(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), apiKeyPrefix)
}
