package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// TenantSettings is stored as JSON in tenants.settings.
// MaxQueues of zero means unlimited.
type TenantSettings struct {
	MaxQueues int `json:"maxQueues,omitempty"`
}

func (s TenantSettings) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *TenantSettings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = TenantSettings{}
		return nil
	case []byte:
		if len(v) == 0 {
			*s = TenantSettings{}
			return nil
		}
		return json.Unmarshal(v, s)
	case string:
		if v == "" {
			*s = TenantSettings{}
			return nil
		}
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported settings type %T", src)
	}
}

type Tenant struct {
	bun.BaseModel `bun:"table:tenants"`

	ID        string         `bun:"id,pk" json:"id"`
	Name      string         `bun:"name,notnull" json:"name"`
	Slug      string         `bun:"slug,unique,notnull" json:"slug"`
	Settings  TenantSettings `bun:"settings,type:text" json:"settings"`
	IsActive  bool           `bun:"is_active" json:"isActive"`
	CreatedAt time.Time      `bun:"created_at,notnull" json:"createdAt"`
}

type Company struct {
	bun.BaseModel `bun:"table:companies"`

	ID        string    `bun:"id,pk" json:"id"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenantId"`
	Name      string    `bun:"name,notnull" json:"name"`
	Address   string    `bun:"address" json:"address,omitempty"`
	Category  string    `bun:"category" json:"category,omitempty"`
	IsActive  bool      `bun:"is_active" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}
