package deadline

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRolloverKeepsFutureDates(t *testing.T) {
	now := date(2025, time.June, 15)
	cases := []time.Time{
		date(2025, time.June, 15),
		date(2025, time.June, 16),
		date(2026, time.January, 1),
	}
	for _, d := range cases {
		if got := Rollover(d, now); !got.Equal(d) {
			t.Fatalf("Rollover(%v, %v) = %v, want unchanged", d, now, got)
		}
	}
}

func TestRolloverPastDate(t *testing.T) {
	cases := []struct {
		d, now, want time.Time
	}{
		// 5 whole months elapsed, plus one.
		{date(2025, time.January, 1), date(2025, time.June, 15), date(2025, time.July, 1)},
		// Same month still advances by one.
		{date(2025, time.June, 1), date(2025, time.June, 15), date(2025, time.July, 1)},
		// One day in the past.
		{date(2025, time.June, 14), date(2025, time.June, 15), date(2025, time.July, 14)},
		// Multi-year gap.
		{date(2023, time.March, 10), date(2025, time.June, 15), date(2025, time.July, 10)},
	}
	for _, tc := range cases {
		got := Rollover(tc.d, tc.now)
		if !got.Equal(tc.want) {
			t.Fatalf("Rollover(%v, %v) = %v, want %v", tc.d, tc.now, got, tc.want)
		}
		if !got.After(tc.now) {
			t.Fatalf("Rollover(%v, %v) = %v is not after now", tc.d, tc.now, got)
		}
	}
}

func TestRolloverAlwaysLandsInFuture(t *testing.T) {
	now := date(2025, time.June, 15)
	d := date(2020, time.January, 31)
	for i := 0; i < 70; i++ {
		got := Rollover(d, now)
		if !got.After(now) {
			t.Fatalf("Rollover(%v, %v) = %v, not strictly after now", d, now, got)
		}
		d = AddMonths(d, 1)
		if d.After(now) {
			break
		}
	}
}

func TestAddMonthsClampsEndOfMonth(t *testing.T) {
	cases := []struct {
		t    time.Time
		n    int
		want time.Time
	}{
		{date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{date(2025, time.January, 31), 2, date(2025, time.March, 31)},
		{date(2025, time.March, 31), 1, date(2025, time.April, 30)},
		{date(2025, time.November, 15), 2, date(2026, time.January, 15)},
	}
	for _, tc := range cases {
		if got := AddMonths(tc.t, tc.n); !got.Equal(tc.want) {
			t.Fatalf("AddMonths(%v, %d) = %v, want %v", tc.t, tc.n, got, tc.want)
		}
	}
}

func TestBuildReportIncludesWholeGroup(t *testing.T) {
	now := date(2025, time.June, 15)
	rows := []MemberRow{
		{GroupName: "spotify 001", Username: "alice", PaymentAt: date(2025, time.June, 14)},
		{GroupName: "spotify 001", Username: "bob", PaymentAt: date(2025, time.July, 15)},
	}

	reports := BuildReport(rows, now)
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	rep := reports[0]
	if rep.GroupName != "spotify 001" {
		t.Fatalf("group = %q", rep.GroupName)
	}
	if len(rep.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(rep.Members))
	}
	if rep.Members[0].Username != "alice" || rep.Members[0].Paid {
		t.Fatalf("alice should be listed unpaid, got %+v", rep.Members[0])
	}
	if rep.Members[1].Username != "bob" || !rep.Members[1].Paid {
		t.Fatalf("bob should be listed paid, got %+v", rep.Members[1])
	}
}

func TestBuildReportSkipsFullyPaidGroups(t *testing.T) {
	now := date(2025, time.June, 15)
	rows := []MemberRow{
		{GroupName: "netflix 001", Username: "carol", PaymentAt: date(2025, time.July, 1)},
		{GroupName: "spotify 002", Username: "dave", PaymentAt: date(2025, time.June, 15)},
	}

	reports := BuildReport(rows, now)
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].GroupName != "spotify 002" {
		t.Fatalf("group = %q, want spotify 002", reports[0].GroupName)
	}
	// Due today counts as unpaid.
	if reports[0].Members[0].Paid {
		t.Fatalf("member due today should be unpaid")
	}
}

func TestBuildReportPreservesRowOrder(t *testing.T) {
	now := date(2025, time.June, 15)
	rows := []MemberRow{
		{GroupName: "b", Username: "u1", PaymentAt: date(2025, time.January, 1)},
		{GroupName: "a", Username: "u2", PaymentAt: date(2025, time.January, 1)},
		{GroupName: "b", Username: "u3", PaymentAt: date(2025, time.January, 2)},
	}

	reports := BuildReport(rows, now)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].GroupName != "b" || reports[1].GroupName != "a" {
		t.Fatalf("order = %q, %q; want b, a", reports[0].GroupName, reports[1].GroupName)
	}
	if reports[0].Members[0].Username != "u1" || reports[0].Members[1].Username != "u3" {
		t.Fatalf("member order not preserved: %+v", reports[0].Members)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	if got := BuildReport(nil, date(2025, time.June, 15)); len(got) != 0 {
		t.Fatalf("empty rows produced %d reports", len(got))
	}
}
