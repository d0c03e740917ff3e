package contextstore

import "time"

// DefaultNamespace is used when a caller does not scope the slot.
const DefaultNamespace = "default"

// Entry is a shared, mutable value identified by (namespace, key).
type Entry struct {
	Namespace string    `yaml:"namespace" json:"namespace"`
	Key       string    `yaml:"key" json:"key"`
	Value     any       `yaml:"value" json:"value"`
	Version   int       `yaml:"version" json:"version"`
	SetBy     string    `yaml:"set_by" json:"setBy"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty" json:"expiresAt,omitzero"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Expired reports whether the entry is past its expiry. Entries without
// an expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
