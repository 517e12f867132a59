package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Gate modes determine the status code served to blocked visitors.
const (
	ModeComingSoon  = "coming_soon" // 200, hides the site without alarming crawlers
	ModeMaintenance = "maintenance" // 503 + Retry-After
)

// Recurring rule frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ScheduleWindow is a one-off activation interval. Start/End are unix seconds
// (UTC); zero means that bound is open.
type ScheduleWindow struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Timezone string `json:"timezone,omitempty"`
}

// RecurringRule activates the gate on a repeating local-time window.
// Day sets use ISO weekday numbering (1=Monday .. 7=Sunday).
type RecurringRule struct {
	Frequency   string `json:"frequency"`
	Timezone    string `json:"timezone,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	DaysOfWeek  []int  `json:"days_of_week,omitempty"`
	DaysOfMonth []int  `json:"days_of_month,omitempty"`
}

// GateSettings is the singleton gate configuration row. List-valued fields are
// stored as JSON text columns and accessed through the typed helpers below.
type GateSettings struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	UUID string `json:"uuid" gorm:"uniqueIndex"`

	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode" gorm:"default:'coming_soon'"`

	ScheduleEnabled  bool   `json:"schedule_enabled"`
	ScheduleWindows  string `json:"schedule_windows" gorm:"type:text"` // JSON []ScheduleWindow
	RecurringEnabled bool   `json:"recurring_enabled"`
	RecurringRules   string `json:"recurring_rules" gorm:"type:text"` // JSON []RecurringRule

	WhitelistIPs   string `json:"whitelist_ips" gorm:"type:text"`   // JSON []string, exact match
	WhitelistPaths string `json:"whitelist_paths" gorm:"type:text"` // JSON []string, prefix match
	AllowedRoles   string `json:"allowed_roles" gorm:"type:text"`   // JSON []string

	AllowAdminAjax bool `json:"allow_admin_ajax"`
	AllowRest      bool `json:"allow_rest"`
	ExcludeAdmin   bool `json:"exclude_admin" gorm:"default:true"`
	EditorBypass   bool `json:"editor_bypass"`

	PrivatePasswordHash string `json:"-" gorm:"type:text"`
	PrivateToken        string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Windows decodes the schedule window list. Malformed JSON yields nil rather
// than an error; Sanitize guarantees stored values decode cleanly.
func (s *GateSettings) Windows() []ScheduleWindow {
	var out []ScheduleWindow
	if s.ScheduleWindows == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.ScheduleWindows), &out); err != nil {
		return nil
	}
	return out
}

// Rules decodes the recurring rule list.
func (s *GateSettings) Rules() []RecurringRule {
	var out []RecurringRule
	if s.RecurringRules == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.RecurringRules), &out); err != nil {
		return nil
	}
	return out
}

// IPList decodes the IP whitelist.
func (s *GateSettings) IPList() []string { return decodeStringList(s.WhitelistIPs) }

// PathList decodes the path whitelist.
func (s *GateSettings) PathList() []string { return decodeStringList(s.WhitelistPaths) }

// RoleList decodes the allowed role list.
func (s *GateSettings) RoleList() []string { return decodeStringList(s.AllowedRoles) }

// Sanitize is the single canonical merge-with-defaults-and-validate step.
// Invalid entries are dropped, never partially stored, so every later read of
// the row can trust the JSON columns without revalidating.
func (s *GateSettings) Sanitize() {
	if s.Mode != ModeMaintenance {
		s.Mode = ModeComingSoon
	}

	var windows []ScheduleWindow
	for _, w := range s.Windows() {
		if w.Start == 0 && w.End == 0 {
			continue
		}
		windows = append(windows, w)
	}
	s.ScheduleWindows = encodeJSONList(windows)

	var rules []RecurringRule
	for _, r := range s.Rules() {
		if sane, ok := sanitizeRule(r); ok {
			rules = append(rules, sane)
		}
	}
	s.RecurringRules = encodeJSONList(rules)

	s.WhitelistIPs = encodeJSONList(cleanStringList(s.IPList()))
	s.WhitelistPaths = encodeJSONList(cleanStringList(s.PathList()))
	s.AllowedRoles = encodeJSONList(cleanStringList(s.RoleList()))
}

func sanitizeRule(r RecurringRule) (RecurringRule, bool) {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return RecurringRule{}, false
	}
	if MinuteOfDay(r.StartTime) < 0 || MinuteOfDay(r.EndTime) < 0 {
		return RecurringRule{}, false
	}

	switch r.Frequency {
	case FrequencyWeekly:
		r.DaysOfWeek = cleanDaySet(r.DaysOfWeek, 7)
		r.DaysOfMonth = nil
		if len(r.DaysOfWeek) == 0 {
			return RecurringRule{}, false
		}
	case FrequencyMonthly:
		r.DaysOfMonth = cleanDaySet(r.DaysOfMonth, 31)
		r.DaysOfWeek = nil
		if len(r.DaysOfMonth) == 0 {
			return RecurringRule{}, false
		}
	default:
		r.DaysOfWeek = nil
		r.DaysOfMonth = nil
	}

	return r, true
}

// MinuteOfDay parses a strict "H:MM" or "HH:MM" clock string into a
// minute-of-day value (0-1439). Anything unparseable returns -1.
func MinuteOfDay(clock string) int {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return -1
	}
	if len(parts[0]) < 1 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return -1
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return -1
	}
	return hour*60 + minute
}

func cleanDaySet(days []int, max int) []int {
	seen := make(map[int]bool, len(days))
	var out []int
	for _, d := range days {
		if d >= 1 && d <= max && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

func cleanStringList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func encodeJSONList(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}
