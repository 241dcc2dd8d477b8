// Package domain holds the persisted ledger entities.
package domain

import "time"

// User is a tracked subscriber. Username is stored pre-normalized,
// without the leading @.
type User struct {
	ID        int64     `db:"user_id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

// Group is a subscription group. Name is lower-cased on write and lookup.
// PaymentAt is the group's next due date, inherited by newly linked users.
type Group struct {
	ID        int64     `db:"group_id"`
	Name      string    `db:"group_name"`
	PaymentAt time.Time `db:"payment_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Payment links a user to a group. PaymentAt is the user's personal next
// due date, seeded from the group at link time and advanced independently.
type Payment struct {
	GroupID   int64     `db:"group_id"`
	UserID    int64     `db:"user_id"`
	PaymentAt time.Time `db:"payment_at"`
	PaidOn    time.Time `db:"paid_on"`
}
