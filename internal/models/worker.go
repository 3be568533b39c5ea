package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Action is an operator action on a ticket. The same values name lifecycle
// operations and the entries of a worker's allowed-actions list.
type Action string

const (
	ActionCall          Action = "call"
	ActionStart         Action = "start"
	ActionFinish        Action = "finish"
	ActionSkip          Action = "skip"
	ActionCancel        Action = "cancel"
	ActionPause         Action = "pause"
	ActionResume        Action = "resume"
	ActionSelectSkipped Action = "select_skipped"
	ActionView          Action = "view"
)

type WorkerRole string

const (
	RoleOperator   WorkerRole = "operator"
	RoleSupervisor WorkerRole = "supervisor"
	RoleAdmin      WorkerRole = "admin"
)

// WorkerPermissions restricts a worker to a set of queues and actions.
// An empty list means no restriction on that dimension.
type WorkerPermissions struct {
	Queues  []string `json:"queues"`
	Actions []Action `json:"actions"`
}

func (p WorkerPermissions) AllowsQueue(queueID string) bool {
	if len(p.Queues) == 0 {
		return true
	}
	for _, q := range p.Queues {
		if q == queueID {
			return true
		}
	}
	return false
}

func (p WorkerPermissions) AllowsAction(action Action) bool {
	if len(p.Actions) == 0 {
		return true
	}
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Value stores the permissions as a JSON document.
func (p WorkerPermissions) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *WorkerPermissions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = WorkerPermissions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported permissions type %T", src)
	}
	if len(raw) == 0 {
		*p = WorkerPermissions{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

type Worker struct {
	bun.BaseModel `bun:"table:workers"`

	ID             string            `bun:"id,pk" json:"id"`
	TenantID       string            `bun:"tenant_id,notnull" json:"tenantId"`
	Name           string            `bun:"name,notnull" json:"name"`
	Username       string            `bun:"username,notnull" json:"username"`
	PasswordHash   string            `bun:"password_hash" json:"-"`
	Role           WorkerRole        `bun:"role,notnull" json:"role"`
	Permissions    WorkerPermissions `bun:"permissions,type:text" json:"permissions"`
	IsActive       bool              `bun:"is_active" json:"isActive"`
	IsPaused       bool              `bun:"is_paused" json:"isPaused"`
	CurrentQueueID string            `bun:"current_queue_id,nullzero" json:"currentQueueId,omitempty"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
}
