// Package deadline holds the pure date arithmetic behind the payment
// ledger: rolling past-due dates forward and aggregating unpaid groups.
package deadline

import "time"

// AddMonths advances t by n calendar months, clamping the day to the last
// day of the target month when the original day does not exist there
// (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Rollover returns d advanced to a due date strictly after now. A date
// already at or past now is returned unchanged. Otherwise d moves forward
// by the number of whole calendar months elapsed plus one, so even a
// same-month past date makes forward progress.
func Rollover(d, now time.Time) time.Time {
	if !d.Before(now) {
		return d
	}

	months := 0
	for !AddMonths(d, months+1).After(now) {
		months++
	}
	return AddMonths(d, months+1)
}

// MemberRow is one joined ledger row feeding the unpaid report.
type MemberRow struct {
	GroupName string    `db:"group_name"`
	Username  string    `db:"username"`
	PaymentAt time.Time `db:"payment_at"`
}

// Member is one rendered row of a group report.
type Member struct {
	Username  string
	PaymentAt time.Time
	Paid      bool
}

// GroupReport lists every member of a group that owes money.
type GroupReport struct {
	GroupName string
	Members   []Member
}

// dayDiff returns now - t in whole days, comparing calendar dates only.
func dayDiff(t, now time.Time) int {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	td0 := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	nd0 := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(nd0.Sub(td0).Hours() / 24)
}

// BuildReport groups member rows preserving their order and keeps only
// groups whose worst member is due (whole-day diff >= 0). Included groups
// list every member, paid and unpaid alike.
func BuildReport(rows []MemberRow, now time.Time) []GroupReport {
	var (
		order   []string
		byGroup = make(map[string][]Member)
		worst   = make(map[string]int)
	)

	for _, row := range rows {
		diff := dayDiff(row.PaymentAt, now)
		if _, seen := byGroup[row.GroupName]; !seen {
			order = append(order, row.GroupName)
			worst[row.GroupName] = diff
		} else if diff > worst[row.GroupName] {
			worst[row.GroupName] = diff
		}
		byGroup[row.GroupName] = append(byGroup[row.GroupName], Member{
			Username:  row.Username,
			PaymentAt: row.PaymentAt,
			Paid:      diff < 0,
		})
	}

	var reports []GroupReport
	for _, name := range order {
		if worst[name] < 0 {
			continue
		}
		reports = append(reports, GroupReport{GroupName: name, Members: byGroup[name]})
	}
	return reports
}
