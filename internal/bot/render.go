package bot

import (
	"fmt"
	"strings"

	"subbot/core/telegram/format"
	"subbot/internal/deadline"
)

const (
	paidMark   = "✅"
	unpaidMark = "❌"
)

// renderUnpaid turns the unpaid report into an HTML message: one bold
// group header per group, every member listed with their due date and a
// paid mark.
func renderUnpaid(reports []deadline.GroupReport) string {
	if len(reports) == 0 {
		return "No unpaid groups. Everyone is up to date."
	}

	var b strings.Builder
	b.WriteString(format.Bold("Unpaid groups"))
	for _, rep := range reports {
		b.WriteString("\n\n")
		b.WriteString(format.Bold(rep.GroupName))
		for _, m := range rep.Members {
			mark := unpaidMark
			if m.Paid {
				mark = paidMark
			}
			b.WriteString(fmt.Sprintf("\n@%s — %s %s",
				format.EscapeHTML(m.Username),
				m.PaymentAt.Format(dateLayout),
				mark,
			))
		}
	}
	return b.String()
}
