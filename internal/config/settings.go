package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

// Settings are the runtime values editable through `config set` and the schedule API.
type Settings struct {
	PollingSeconds   int     `json:"polling_seconds"`
	ReportTime       string  `json:"report_time"`
	ReportDir        string  `json:"report_dir"`
	APIPort          int     `json:"api_port"`
	RetentionDays    int     `json:"retention_days"`
	NotifyOnReport   bool    `json:"notify_on_report"`
	TopN             int     `json:"top_n"`
	BaselineDays     int     `json:"baseline_days"`
	AnomalyThreshold float64 `json:"anomaly_threshold"`
}

// DefaultSettings returns the settings used before a config file exists.
func DefaultSettings(reportDir string) Settings {
	return Settings{
		PollingSeconds:   domain.PollingSeconds,
		ReportTime:       domain.DefaultReportTime,
		ReportDir:        reportDir,
		APIPort:          7890,
		RetentionDays:    90,
		NotifyOnReport:   true,
		TopN:             5,
		BaselineDays:     7,
		AnomalyThreshold: 0.5,
	}
}

// Validate checks every field. An invalid report_time wraps domain.ErrScheduleMisconfigured.
func (s Settings) Validate() error {
	if s.PollingSeconds != domain.PollingSeconds {
		return fmt.Errorf("polling_seconds is fixed to %d seconds (5 minutes)", domain.PollingSeconds)
	}
	if _, err := domain.ParseReportTime(s.ReportTime); err != nil {
		return err
	}
	if strings.TrimSpace(s.ReportDir) == "" {
		return fmt.Errorf("report_dir is required")
	}
	if s.APIPort < 1 || s.APIPort > 65535 {
		return fmt.Errorf("api_port must be between 1 and 65535, got %d", s.APIPort)
	}
	if s.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1, got %d", s.RetentionDays)
	}
	if s.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", s.TopN)
	}
	if s.BaselineDays < 1 {
		return fmt.Errorf("baseline_days must be at least 1, got %d", s.BaselineDays)
	}
	if s.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly_threshold must be positive, got %g", s.AnomalyThreshold)
	}
	return nil
}

var keyAliases = map[string]string{
	"collector.interval_seconds": "polling_seconds",
	"report.time":                "report_time",
	"report.dir":                 "report_dir",
	"api.port":                   "api_port",
	"retention.days":             "retention_days",
	"report.notify":              "notify_on_report",
	"report.top_n":               "top_n",
	"baseline.days":              "baseline_days",
	"anomaly.threshold":          "anomaly_threshold",
}

// Keys lists the canonical setting names in sorted order.
func Keys() []string {
	keys := []string{
		"polling_seconds", "report_time", "report_dir", "api_port", "retention_days",
		"notify_on_report", "top_n", "baseline_days", "anomaly_threshold",
	}
	sort.Strings(keys)
	return keys
}

// NormalizeKey maps a dotted alias to its canonical key.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if canonical, ok := keyAliases[key]; ok {
		return canonical
	}
	return key
}

// Get returns the string form of a setting.
func (s Settings) Get(key string) (string, error) {
	switch NormalizeKey(key) {
	case "polling_seconds":
		return strconv.Itoa(s.PollingSeconds), nil
	case "report_time":
		return s.ReportTime, nil
	case "report_dir":
		return s.ReportDir, nil
	case "api_port":
		return strconv.Itoa(s.APIPort), nil
	case "retention_days":
		return strconv.Itoa(s.RetentionDays), nil
	case "notify_on_report":
		return strconv.FormatBool(s.NotifyOnReport), nil
	case "top_n":
		return strconv.Itoa(s.TopN), nil
	case "baseline_days":
		return strconv.Itoa(s.BaselineDays), nil
	case "anomaly_threshold":
		return strconv.FormatFloat(s.AnomalyThreshold, 'g', -1, 64), nil
	default:
		return "", unsupportedKey(key)
	}
}

// With returns a copy of s with key set to value, validated.
func (s Settings) With(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	next := s
	var err error

	switch NormalizeKey(key) {
	case "polling_seconds":
		next.PollingSeconds, err = parseInt(key, value)
	case "report_time":
		var t domain.ReportTime
		if t, err = domain.ParseReportTime(value); err == nil {
			next.ReportTime = t.String()
		}
	case "report_dir":
		next.ReportDir, err = util.ExpandHome(value)
	case "api_port":
		next.APIPort, err = parseInt(key, value)
	case "retention_days":
		next.RetentionDays, err = parseInt(key, value)
	case "notify_on_report":
		next.NotifyOnReport, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("%s must be true/false", key)
		}
	case "top_n":
		next.TopN, err = parseInt(key, value)
	case "baseline_days":
		next.BaselineDays, err = parseInt(key, value)
	case "anomaly_threshold":
		next.AnomalyThreshold, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("%s must be a number", key)
		}
	default:
		return s, unsupportedKey(key)
	}
	if err != nil {
		return s, err
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

func unsupportedKey(key string) error {
	return fmt.Errorf("unsupported config key: %s (supported: %s)", key, strings.Join(Keys(), ", "))
}
