package domain

import "time"

// CreditAccount tracks the consumable staging credits of one owner. Accounts
// are created lazily with a starting grant and are never deleted; an empty
// account simply has Balance == 0.
type CreditAccount struct {
	OwnerID   string
	Balance   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Generation records the boundary of one staging attempt.
type Generation struct {
	ID        string
	OwnerID   string
	Prompt    string
	Room      RoomLabel
	Mode      string
	Engine    string // engine that produced the primary image, empty on failure
	Succeeded bool
	CreatedAt time.Time
}
