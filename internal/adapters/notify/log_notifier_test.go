package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

func TestLogNotifier_ReportReady(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	err := n.ReportReady(context.Background(), &domain.DailyReport{
		Date:           domain.NewDate(2026, 2, 18),
		CategoryTotals: map[string]int64{"development": 13500},
		TopSubjects:    []domain.SubjectTotal{{Subject: "Xcode", DurationSeconds: 8100}},
	})
	if err != nil {
		t.Fatalf("ReportReady: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"daily report ready", "date=2026-02-18", `tracked="3h 45m"`, "top=Xcode"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
