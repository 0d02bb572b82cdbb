package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const redacted = "[REDACTED]"

// Credential is an opaque handle to delivery credentials. It never prints or
// marshals its value; use Reveal when handing it to a transport.
type Credential string

func (c Credential) Reveal() string { return string(c) }

func (c Credential) String() string { return redacted }

func (c Credential) GoString() string { return redacted }

func (c Credential) MarshalJSON() ([]byte, error) {
	if c == "" {
		return json.Marshal("")
	}
	return json.Marshal(redacted)
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Credential(s)
	return nil
}

func (c *Credential) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = ""
	case string:
		*c = Credential(v)
	case []byte:
		*c = Credential(v)
	default:
		return fmt.Errorf("cannot scan %T into Credential", value)
	}
	return nil
}

func (c Credential) Value() (driver.Value, error) {
	return string(c), nil
}

// SocialAccount is keyed by (Platform, AccountID); a later registration for
// the same key replaces the earlier one.
type SocialAccount struct {
	Platform   PlatformType `gorm:"primaryKey;size:50" json:"platform"`
	AccountID  string       `gorm:"primaryKey;size:255" json:"account_id"`
	Username   string       `gorm:"size:255" json:"username"`
	Credential Credential   `gorm:"type:text" json:"credential"`
	Active     bool         `gorm:"not null" json:"active"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (SocialAccount) TableName() string { return "social_accounts" }

func (a *SocialAccount) Validate() error {
	if !a.Platform.IsKnown() {
		return fmt.Errorf("%w: unknown platform %q", ErrValidation, a.Platform)
	}
	if a.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrValidation)
	}
	return nil
}
