package gamestate

import (
	"encoding/json"
	"time"
)

// Purpose values derived from the public flag.
const (
	PurposePublic  = "public"
	PurposePrivate = "private"
)

// StateCreated is the state every new session starts in.
const StateCreated = "created"

// JoinParams describes how a client reaches the game server.
type JoinParams struct {
	ServerAddress         string `json:"serverAddress"`
	ServerPort            int    `json:"serverPort,omitempty"`
	ChallengeKey          string `json:"challengeKey,omitempty"`
	SecondaryChallengeKey string `json:"secondaryChallengeKey,omitempty"`
}

// Session is a fabricated match record.
type Session struct {
	ID                    string
	Address               string
	Port                  int
	ChallengeKey          string
	SecondaryChallengeKey string
	ServerProfile         string
	State                 string
	Name                  string
	Region                string
	SlotCount             int
	JoinDisabled          bool
	GameMode              string
	Public                bool
	// Attributes holds the caller's attribute object as sent.
	Attributes    map[string]json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastTouchedAt time.Time
}

// Purpose reports "public" or "private" from the public flag.
func (s *Session) Purpose() string {
	if s.Public {
		return PurposePublic
	}
	return PurposePrivate
}

// JoinParams rebuilds the join parameters stored on the session.
func (s *Session) JoinParams() JoinParams {
	return JoinParams{
		ServerAddress:         s.Address,
		ServerPort:            s.Port,
		ChallengeKey:          s.ChallengeKey,
		SecondaryChallengeKey: s.SecondaryChallengeKey,
	}
}

// Instance is a fabricated compute host.
type Instance struct {
	ID          string
	DisplayName string
	SessionID   string
	UpdatedAt   time.Time
}
