package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

func TestSettings_WithAliases(t *testing.T) {
	s := DefaultSettings("/data/reports")

	tests := []struct {
		key   string
		value string
		check func(t *testing.T, s Settings)
	}{
		{"report.time", "7:05", func(t *testing.T, s Settings) { assert.Equal(t, "07:05", s.ReportTime) }},
		{"api.port", "9000", func(t *testing.T, s Settings) { assert.Equal(t, 9000, s.APIPort) }},
		{"retention.days", "30", func(t *testing.T, s Settings) { assert.Equal(t, 30, s.RetentionDays) }},
		{"report.notify", "false", func(t *testing.T, s Settings) { assert.False(t, s.NotifyOnReport) }},
		{"anomaly.threshold", "0.25", func(t *testing.T, s Settings) { assert.Equal(t, 0.25, s.AnomalyThreshold) }},
		{"collector.interval_seconds", "300", func(t *testing.T, s Settings) { assert.Equal(t, 300, s.PollingSeconds) }},
		{"top_n", "3", func(t *testing.T, s Settings) { assert.Equal(t, 3, s.TopN) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			next, err := s.With(tt.key, tt.value)
			require.NoError(t, err)
			tt.check(t, next)
		})
	}
}

func TestSettings_WithRejects(t *testing.T) {
	s := DefaultSettings("/data/reports")

	tests := []struct {
		key   string
		value string
	}{
		{"polling_seconds", "60"},
		{"api_port", "70000"},
		{"retention_days", "0"},
		{"retention_days", "many"},
		{"notify_on_report", "maybe"},
		{"baseline_days", "0"},
		{"anomaly_threshold", "-1"},
		{"unknown_key", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			next, err := s.With(tt.key, tt.value)
			assert.Error(t, err)
			assert.Equal(t, s, next)
		})
	}

	_, err := s.With("report_time", "25:00")
	assert.True(t, errors.Is(err, domain.ErrScheduleMisconfigured))
}

func TestSettings_Get(t *testing.T) {
	s := DefaultSettings("/data/reports")

	v, err := s.Get("report.time")
	require.NoError(t, err)
	assert.Equal(t, "23:30", v)

	v, err = s.Get("polling_seconds")
	require.NoError(t, err)
	assert.Equal(t, "300", v)

	v, err = s.Get("anomaly_threshold")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)

	_, err = s.Get("ai_model")
	assert.Error(t, err)
}

func TestSettings_ExpandsReportDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	next, err := DefaultSettings("/x").With("report.dir", "~/reports")
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/reports", next.ReportDir)
}

func TestDefaultSettingsAreValid(t *testing.T) {
	assert.NoError(t, DefaultSettings("/data/reports").Validate())
}
