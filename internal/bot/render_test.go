package bot

import (
	"strings"
	"testing"
	"time"

	"subbot/internal/deadline"
)

func TestRenderUnpaidEmpty(t *testing.T) {
	got := renderUnpaid(nil)
	if !strings.Contains(got, "No unpaid groups") {
		t.Fatalf("empty report rendered as %q", got)
	}
}

func TestRenderUnpaidReport(t *testing.T) {
	due := time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC)
	reports := []deadline.GroupReport{
		{
			GroupName: "spotify <001>",
			Members: []deadline.Member{
				{Username: "alice_smith", PaymentAt: due, Paid: false},
				{Username: "bob_marley", PaymentAt: due.AddDate(0, 1, 0), Paid: true},
			},
		},
	}

	got := renderUnpaid(reports)
	if !strings.Contains(got, "<b>spotify &lt;001&gt;</b>") {
		t.Fatalf("group header not escaped/bold: %q", got)
	}
	if !strings.Contains(got, "@alice_smith") || !strings.Contains(got, "2025-06-14") {
		t.Fatalf("unpaid member missing: %q", got)
	}
	if !strings.Contains(got, unpaidMark) || !strings.Contains(got, paidMark) {
		t.Fatalf("paid marks missing: %q", got)
	}
}

func TestRenderUnpaidEscapesOnce(t *testing.T) {
	due := time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC)
	reports := []deadline.GroupReport{
		{
			GroupName: "tom & jerry <fans>",
			Members: []deadline.Member{
				{Username: "alice_smith", PaymentAt: due, Paid: false},
			},
		},
	}

	got := renderUnpaid(reports)
	if !strings.Contains(got, "<b>tom &amp; jerry &lt;fans&gt;</b>") {
		t.Fatalf("group header escaped wrong: %q", got)
	}
	if strings.Contains(got, "&amp;amp;") || strings.Contains(got, "&amp;lt;") {
		t.Fatalf("group header escaped twice: %q", got)
	}
}
