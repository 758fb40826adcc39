package event

import "time"

type Type string

const (
	TypeUserRegistered Type = "user.registered"
	TypeUserUpdated    Type = "user.updated"
	TypeUserDeleted    Type = "user.deleted"
	TypeLogin          Type = "auth.login"
	TypeLoginDenied    Type = "auth.login_denied"
	TypeTokenRefreshed Type = "auth.token_refreshed"
	TypeRefreshDenied  Type = "auth.refresh_denied"
	TypeLogout         Type = "auth.logout"
	TypeLogoutAll      Type = "auth.logout_all"
)

// Event describes something that happened in the auth domain. Events never
// carry passwords, hashes or token strings.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorEmail string    `json:"actor_email,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
