package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConfigError reports missing identity fields. It is fatal to agent
// initialization: nothing is started when it is returned.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "authguard: missing required config: " + strings.Join(e.Missing, ", ")
}

// SessionIdentity binds the agent to a merchant credential and a user.
// Immutable once the agent is constructed.
type SessionIdentity struct {
	ClientID string `yaml:"client_id" json:"client_id"`
	UserID   string `yaml:"user_id" json:"user_id"`
}

// Validate returns a *ConfigError naming every empty field, or nil.
func (id SessionIdentity) Validate() error {
	var missing []string
	if strings.TrimSpace(id.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(id.UserID) == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Session tracks one running agent instance for a user.
type Session struct {
	SessionIdentity
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates a session with a generated session ID.
func NewSession(id SessionIdentity) *Session {
	return &Session{
		SessionIdentity: id,
		SessionID:       "sess-" + uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
	}
}
