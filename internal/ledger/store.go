// Package ledger implements the Postgres-backed payment ledger.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"subbot/core/logger"
	"subbot/internal/deadline"
	"subbot/internal/domain"
)

// LinkPolicy decides what happens when a user already linked to a group
// is linked again.
type LinkPolicy int

const (
	// LinkReject refuses the second link with ErrConflict.
	LinkReject LinkPolicy = iota
	// LinkReplace moves the user to the new group.
	LinkReplace
)

// ParseLinkPolicy maps a config token to a LinkPolicy.
func ParseLinkPolicy(s string) (LinkPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return LinkReject, nil
	case "replace":
		return LinkReplace, nil
	default:
		return LinkReject, fmt.Errorf("unknown link policy: %q", s)
	}
}

// Store runs ledger operations against a sqlx pool.
type Store struct {
	db     *sqlx.DB
	policy LinkPolicy
	now    func() time.Time
}

// NewStore wraps the pool. A nil pool is accepted; operations then fail
// with ErrNotConnected.
func NewStore(db *sqlx.DB, policy LinkPolicy) *Store {
	return &Store{db: db, policy: policy, now: time.Now}
}

// NormalizeUsername strips the leading @ and surrounding whitespace.
func NormalizeUsername(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// NormalizeGroupName lower-cases and trims a group name.
func NormalizeGroupName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotConnected
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// AddUser registers a user. Duplicate id or username fails with ErrConflict.
func (s *Store) AddUser(ctx context.Context, userID int64, username string) error {
	if err := s.ready(); err != nil {
		return err
	}
	name := NormalizeUsername(username)
	if name == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username) VALUES ($1, $2)`,
		userID, name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %d/%s", ErrConflict, userID, name)
		}
		return fmt.Errorf("ledger: add user: %w", err)
	}

	logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "user added",
		slog.String("event", "user.add"),
		slog.Int64("user_id", userID),
		slog.String("username", name),
	)
	return nil
}

// UserByID returns the user row or ErrNotFound.
func (s *Store) UserByID(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	if err := s.ready(); err != nil {
		return u, err
	}
	err := s.db.GetContext(ctx, &u,
		`SELECT user_id, username, created_at FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return u, fmt.Errorf("ledger: get user: %w", err)
	}
	return u, nil
}

// UserByName resolves a username, tolerating a leading @.
func (s *Store) UserByName(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	if err := s.ready(); err != nil {
		return u, err
	}
	name := NormalizeUsername(username)
	err := s.db.GetContext(ctx, &u,
		`SELECT user_id, username, created_at FROM users WHERE username = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("%w: user %s", ErrNotFound, name)
	}
	if err != nil {
		return u, fmt.Errorf("ledger: get user: %w", err)
	}
	return u, nil
}

// UpdateUsername renames a user. An empty new name is rejected.
func (s *Store) UpdateUsername(ctx context.Context, userID int64, newUsername string) error {
	if err := s.ready(); err != nil {
		return err
	}
	name := NormalizeUsername(newUsername)
	if name == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $2 WHERE user_id = $1`, userID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s", ErrConflict, name)
		}
		return fmt.Errorf("ledger: update username: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return nil
}

// DeleteUser removes a user by username, cascading the payment row.
// It reports whether a row was actually removed.
func (s *Store) DeleteUser(ctx context.Context, username string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	name := NormalizeUsername(username)

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, name)
	if err != nil {
		return false, fmt.Errorf("ledger: delete user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "user deleted",
			slog.String("event", "user.delete"),
			slog.String("username", name),
		)
	}
	return n > 0, nil
}

// AddGroup registers a group. The due date rolls forward to the future
// before it is stored.
func (s *Store) AddGroup(ctx context.Context, groupID int64, groupName string, paymentAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	name := NormalizeGroupName(groupName)
	if name == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidInput)
	}
	if paymentAt.IsZero() {
		return fmt.Errorf("%w: zero payment date", ErrInvalidInput)
	}
	due := deadline.Rollover(paymentAt, s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (group_id, group_name, payment_at) VALUES ($1, $2, $3)`,
		groupID, name, due,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: group %d/%s", ErrConflict, groupID, name)
		}
		return fmt.Errorf("ledger: add group: %w", err)
	}

	logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "group added",
		slog.String("event", "group.add"),
		slog.Int64("group_id", groupID),
		slog.String("group_name", name),
		slog.Time("payment_at", due),
	)
	return nil
}

// GroupByID returns the group row or ErrNotFound.
func (s *Store) GroupByID(ctx context.Context, groupID int64) (domain.Group, error) {
	var g domain.Group
	if err := s.ready(); err != nil {
		return g, err
	}
	err := s.db.GetContext(ctx, &g,
		`SELECT group_id, group_name, payment_at, created_at FROM groups WHERE group_id = $1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("%w: group %d", ErrNotFound, groupID)
	}
	if err != nil {
		return g, fmt.Errorf("ledger: get group: %w", err)
	}
	return g, nil
}

// GroupByName resolves a group by its normalized name.
func (s *Store) GroupByName(ctx context.Context, groupName string) (domain.Group, error) {
	var g domain.Group
	if err := s.ready(); err != nil {
		return g, err
	}
	name := NormalizeGroupName(groupName)
	err := s.db.GetContext(ctx, &g,
		`SELECT group_id, group_name, payment_at, created_at FROM groups WHERE group_name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("%w: group %s", ErrNotFound, name)
	}
	if err != nil {
		return g, fmt.Errorf("ledger: get group: %w", err)
	}
	return g, nil
}

// Groups lists all groups in creation order.
func (s *Store) Groups(ctx context.Context) ([]domain.Group, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var gs []domain.Group
	err := s.db.SelectContext(ctx, &gs,
		`SELECT group_id, group_name, payment_at, created_at FROM groups ORDER BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list groups: %w", err)
	}
	return gs, nil
}

// UpdateGroupName renames a group.
func (s *Store) UpdateGroupName(ctx context.Context, groupID int64, newName string) error {
	if err := s.ready(); err != nil {
		return err
	}
	name := NormalizeGroupName(newName)
	if name == "" {
		return fmt.Errorf("%w: empty group name", ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET group_name = $2 WHERE group_id = $1`, groupID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: group name %s", ErrConflict, name)
		}
		return fmt.Errorf("ledger: update group name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: group %d", ErrNotFound, groupID)
	}
	return nil
}

// DeleteGroup removes a group by name, cascading its payment rows.
func (s *Store) DeleteGroup(ctx context.Context, groupName string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	name := NormalizeGroupName(groupName)

	res, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE group_name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("ledger: delete group: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "group deleted",
			slog.String("event", "group.delete"),
			slog.String("group_name", name),
		)
	}
	return n > 0, nil
}

// LinkUserToGroup inserts the payment row binding a user to a group.
// The due date rolls forward before it is stored. A user already linked
// elsewhere is rejected or moved depending on the store policy.
func (s *Store) LinkUserToGroup(ctx context.Context, userID, groupID int64, paymentAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if paymentAt.IsZero() {
		return fmt.Errorf("%w: zero payment date", ErrInvalidInput)
	}
	due := deadline.Rollover(paymentAt, s.now())

	var err error
	switch s.policy {
	case LinkReplace:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO payments (group_id, user_id, payment_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id) DO UPDATE
			 SET group_id = EXCLUDED.group_id, payment_at = EXCLUDED.payment_at, paid_on = NOW()`,
			groupID, userID, due,
		)
	default:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO payments (group_id, user_id, payment_at) VALUES ($1, $2, $3)`,
			groupID, userID, due,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %d already linked", ErrConflict, userID)
		}
		return fmt.Errorf("ledger: link user: %w", err)
	}

	logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "user linked",
		slog.String("event", "link.add"),
		slog.Int64("user_id", userID),
		slog.Int64("group_id", groupID),
		slog.Time("payment_at", due),
	)
	return nil
}

// MarkPayment advances the user's due date by whole calendar months and
// stamps the settlement time.
func (s *Store) MarkPayment(ctx context.Context, userID int64, months int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if months <= 0 {
		return fmt.Errorf("%w: months must be positive", ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments
		 SET payment_at = payment_at + make_interval(months => $2), paid_on = NOW()
		 WHERE user_id = $1`,
		userID, months,
	)
	if err != nil {
		return fmt.Errorf("ledger: mark payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d has no subscription", ErrNotFound, userID)
	}

	logger.Ledger.LogAttrs(ctx, slog.LevelInfo, "payment marked",
		slog.String("event", "payment.mark"),
		slog.Int64("user_id", userID),
		slog.Int("months", months),
	)
	return nil
}

// UnpaidGroups builds the unpaid report. Inclusion and paid flags are
// computed by the deadline engine over the joined member rows.
func (s *Store) UnpaidGroups(ctx context.Context) ([]deadline.GroupReport, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []deadline.MemberRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT g.group_name, u.username, p.payment_at
		 FROM payments p
		 JOIN groups g ON g.group_id = p.group_id
		 JOIN users u ON u.user_id = p.user_id
		 ORDER BY g.group_id, p.user_id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: unpaid groups: %w", err)
	}
	return deadline.BuildReport(rows, s.now()), nil
}

// GroupUsers lists the members of a group.
func (s *Store) GroupUsers(ctx context.Context, groupID int64) ([]domain.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var us []domain.User
	err := s.db.SelectContext(ctx, &us,
		`SELECT u.user_id, u.username, u.created_at
		 FROM payments p
		 JOIN users u ON u.user_id = p.user_id
		 WHERE p.group_id = $1
		 ORDER BY u.user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("ledger: group users: %w", err)
	}
	return us, nil
}

// UserGroup returns the group a user is linked to, or ErrNotFound.
func (s *Store) UserGroup(ctx context.Context, userID int64) (domain.Group, error) {
	var g domain.Group
	if err := s.ready(); err != nil {
		return g, err
	}
	err := s.db.GetContext(ctx, &g,
		`SELECT g.group_id, g.group_name, g.payment_at, g.created_at
		 FROM payments p
		 JOIN groups g ON g.group_id = p.group_id
		 WHERE p.user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("%w: user %d has no group", ErrNotFound, userID)
	}
	if err != nil {
		return g, fmt.Errorf("ledger: user group: %w", err)
	}
	return g, nil
}
