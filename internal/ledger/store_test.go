package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T, policy LinkPolicy) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewStore(sqlx.NewDb(db, "sqlmock"), policy)
	return s, mock
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func TestNotConnected(t *testing.T) {
	s := NewStore(nil, LinkReject)
	ctx := context.Background()

	if err := s.AddUser(ctx, 1, "bob_marley"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("AddUser err = %v, want ErrNotConnected", err)
	}
	if _, err := s.UnpaidGroups(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("UnpaidGroups err = %v, want ErrNotConnected", err)
	}
}

func TestAddUserStripsAtPrefix(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(1), "bob_marley").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.AddUser(context.Background(), 1, "@bob_marley"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddUserEmptyUsername(t *testing.T) {
	s, _ := newMockStore(t, LinkReject)

	if err := s.AddUser(context.Background(), 1, "  @ "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAddUserConflict(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(1), "bob_marley").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.AddUser(context.Background(), 1, "bob_marley")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUserByNameNormalizes(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	created := fixedNow()
	for _, input := range []string{"bob_marley", "@bob_marley"} {
		mock.ExpectQuery("SELECT user_id, username, created_at FROM users").
			WithArgs("bob_marley").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "created_at"}).
				AddRow(int64(1), "bob_marley", created))

		u, err := s.UserByName(context.Background(), input)
		if err != nil {
			t.Fatalf("UserByName(%q): %v", input, err)
		}
		if u.ID != 1 || u.Username != "bob_marley" {
			t.Fatalf("UserByName(%q) = %+v", input, u)
		}
	}
}

func TestUserByNameNotFound(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectQuery("SELECT user_id, username, created_at FROM users").
		WithArgs("ghost_user").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "created_at"}))

	_, err := s.UserByName(context.Background(), "ghost_user")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateUsernameEmptyRejected(t *testing.T) {
	s, _ := newMockStore(t, LinkReject)

	if err := s.UpdateUsername(context.Background(), 1, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if err := s.UpdateUsername(context.Background(), 1, "@"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateUsernameMissingUser(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("UPDATE users SET username").
		WithArgs(int64(7), "new_name_here").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateUsername(context.Background(), 7, "new_name_here")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteUserReportsRemoval(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("bob_marley").
		WillReturnResult(sqlmock.NewResult(0, 1))
	removed, err := s.DeleteUser(context.Background(), "@bob_marley")
	if err != nil || !removed {
		t.Fatalf("DeleteUser = %v, %v; want true, nil", removed, err)
	}

	mock.ExpectExec("DELETE FROM users").
		WithArgs("bob_marley").
		WillReturnResult(sqlmock.NewResult(0, 0))
	removed, err = s.DeleteUser(context.Background(), "bob_marley")
	if err != nil || removed {
		t.Fatalf("DeleteUser = %v, %v; want false, nil", removed, err)
	}
}

func TestGroupUsersEmptyAfterGroupDelete(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("DELETE FROM groups").
		WithArgs("netflix").
		WillReturnResult(sqlmock.NewResult(0, 1))
	removed, err := s.DeleteGroup(context.Background(), "Netflix")
	if err != nil || !removed {
		t.Fatalf("DeleteGroup = %v, %v; want true, nil", removed, err)
	}

	// The cascade took the payment rows with the group.
	mock.ExpectQuery("FROM payments p").
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "created_at"}))
	users, err := s.GroupUsers(context.Background(), 77)
	if err != nil {
		t.Fatalf("GroupUsers: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no linked users, got %d", len(users))
	}
}

func TestAddGroupRollsDueDateForward(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)
	s.now = fixedNow

	want := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO groups").
		WithArgs(int64(5), "spotify 005", want).
		WillReturnResult(sqlmock.NewResult(0, 1))

	past := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := s.AddGroup(context.Background(), 5, "Spotify 005", past); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddGroupZeroDate(t *testing.T) {
	s, _ := newMockStore(t, LinkReject)

	err := s.AddGroup(context.Background(), 5, "spotify 005", time.Time{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGroupByNameLowerCases(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	due := fixedNow().AddDate(0, 1, 0)
	mock.ExpectQuery("SELECT group_id, group_name, payment_at, created_at FROM groups").
		WithArgs("spotify 001").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "group_name", "payment_at", "created_at"}).
			AddRow(int64(1), "spotify 001", due, fixedNow()))

	g, err := s.GroupByName(context.Background(), "SPOTIFY 001")
	if err != nil {
		t.Fatalf("GroupByName: %v", err)
	}
	if g.ID != 1 || g.Name != "spotify 001" {
		t.Fatalf("GroupByName = %+v", g)
	}
}

func TestLinkUserRejectPolicy(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)
	s.now = fixedNow

	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.LinkUserToGroup(context.Background(), 1, 5, fixedNow().AddDate(0, 1, 0))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestLinkUserReplacePolicy(t *testing.T) {
	s, mock := newMockStore(t, LinkReplace)
	s.now = fixedNow

	due := fixedNow().AddDate(0, 1, 0)
	mock.ExpectExec("ON CONFLICT \\(user_id\\) DO UPDATE").
		WithArgs(int64(5), int64(1), due).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.LinkUserToGroup(context.Background(), 1, 5, due); err != nil {
		t.Fatalf("LinkUserToGroup: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkPaymentRejectsNonPositive(t *testing.T) {
	s, _ := newMockStore(t, LinkReject)

	for _, months := range []int{0, -3} {
		if err := s.MarkPayment(context.Background(), 1, months); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("MarkPayment(%d) err = %v, want ErrInvalidInput", months, err)
		}
	}
}

func TestMarkPaymentWithoutSubscription(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)

	mock.ExpectExec("UPDATE payments").
		WithArgs(int64(9), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkPayment(context.Background(), 9, 2)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnpaidGroupsAggregation(t *testing.T) {
	s, mock := newMockStore(t, LinkReject)
	s.now = fixedNow

	yesterday := fixedNow().AddDate(0, 0, -1)
	nextMonth := fixedNow().AddDate(0, 1, 0)
	mock.ExpectQuery("FROM payments").
		WillReturnRows(sqlmock.NewRows([]string{"group_name", "username", "payment_at"}).
			AddRow("spotify 001", "alice_smith", yesterday).
			AddRow("spotify 001", "bob_marley", nextMonth).
			AddRow("netflix 001", "carol_jones", nextMonth))

	reports, err := s.UnpaidGroups(context.Background())
	if err != nil {
		t.Fatalf("UnpaidGroups: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	rep := reports[0]
	if rep.GroupName != "spotify 001" || len(rep.Members) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Members[0].Paid || !rep.Members[1].Paid {
		t.Fatalf("paid flags wrong: %+v", rep.Members)
	}
}

func TestParseLinkPolicy(t *testing.T) {
	if p, err := ParseLinkPolicy(""); err != nil || p != LinkReject {
		t.Fatalf("empty policy = %v, %v", p, err)
	}
	if p, err := ParseLinkPolicy("Replace"); err != nil || p != LinkReplace {
		t.Fatalf("replace policy = %v, %v", p, err)
	}
	if _, err := ParseLinkPolicy("upsert"); err == nil {
		t.Fatalf("unknown policy accepted")
	}
}
