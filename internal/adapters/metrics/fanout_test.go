package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

type recordingExporter struct {
	activities int
	pruned     int64
	reports    int
	runs       int
	closeErr   error
}

func (r *recordingExporter) RecordActivity(ctx context.Context, kind domain.SubjectKind, d int64) {
	r.activities++
}
func (r *recordingExporter) RecordPrune(ctx context.Context, n int64) { r.pruned += n }
func (r *recordingExporter) ExportReportMetrics(ctx context.Context, m *ports.ReportMetrics) error {
	r.reports++
	return nil
}
func (r *recordingExporter) RecordSchedulerRun(ctx context.Context, ok bool, d time.Duration) {
	r.runs++
}
func (r *recordingExporter) Close(ctx context.Context) error { return r.closeErr }

func TestFanout(t *testing.T) {
	a := &recordingExporter{}
	b := &recordingExporter{closeErr: errors.New("flush failed")}
	f := NewFanout(a, nil, b)
	ctx := context.Background()

	f.RecordActivity(ctx, domain.SubjectApp, 300)
	f.RecordPrune(ctx, 4)
	assert.NoError(t, f.ExportReportMetrics(ctx, &ports.ReportMetrics{}))
	f.RecordSchedulerRun(ctx, true, time.Second)

	for _, e := range []*recordingExporter{a, b} {
		assert.Equal(t, 1, e.activities)
		assert.Equal(t, int64(4), e.pruned)
		assert.Equal(t, 1, e.reports)
		assert.Equal(t, 1, e.runs)
	}

	assert.EqualError(t, f.Close(ctx), "flush failed")
}
