package scheduling

import (
	"testing"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// 2026-01-05 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

func ymd(t time.Time) string { return t.Format(time.DateOnly) }

func TestOrderDeliveryDate(t *testing.T) {
	s := DefaultSettings()

	tests := []struct {
		name       string
		confirmed  time.Time
		holidays   []string
		supplied   string
		wantDate   string
		wantWindow string
	}{
		{name: "before cutoff on tuesday", confirmed: at(6, 11, 30), wantDate: "2026-01-06", wantWindow: WindowAfternoon},
		{name: "exactly at cutoff", confirmed: at(6, 12, 0), wantDate: "2026-01-06", wantWindow: WindowAfternoon},
		{name: "one minute after cutoff", confirmed: at(6, 12, 1), wantDate: "2026-01-07", wantWindow: WindowMorning},
		{name: "friday afternoon skips weekend", confirmed: at(9, 14, 0), wantDate: "2026-01-12", wantWindow: WindowMorning},
		{name: "holiday friday morning", confirmed: at(9, 10, 0), holidays: []string{"2026-01-09"}, wantDate: "2026-01-12", wantWindow: WindowAfternoon},
		{name: "supplied window kept", confirmed: at(6, 9, 0), supplied: "14:00-16:00", wantDate: "2026-01-06", wantWindow: "14:00-16:00"},
		{name: "supplied label kept", confirmed: at(6, 9, 0), supplied: WindowMorning, wantDate: "2026-01-06", wantWindow: WindowMorning},
		{name: "unconfigured window still kept", confirmed: at(6, 12, 30), supplied: "19:00-21:00", wantDate: "2026-01-07", wantWindow: "19:00-21:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Calendar = NewCalendar(nil, tt.holidays)
			date, window := OrderDeliveryDate(tt.confirmed, s, tt.supplied)
			if ymd(date) != tt.wantDate || window != tt.wantWindow {
				t.Fatalf("got %s/%s want %s/%s", ymd(date), window, tt.wantDate, tt.wantWindow)
			}
		})
	}
}

func TestKnownWindow(t *testing.T) {
	s := DefaultSettings()

	tests := []struct {
		window string
		want   bool
	}{
		{WindowMorning, true},
		{WindowAfternoon, true},
		{"14:00-16:00", true},
		{"08:00-12:00", true},
		{"11:00-14:00", false},
		{"19:00-21:00", false},
		{"evening", false},
		{"16:00-14:00", false},
	}
	for _, tt := range tests {
		if got := s.KnownWindow(tt.window); got != tt.want {
			t.Fatalf("KnownWindow(%q) = %v, want %v", tt.window, got, tt.want)
		}
	}

	s.Windows = nil
	if !s.KnownWindow("evening") {
		t.Fatalf("no configured windows should accept any label")
	}
}

func TestOrderDeliveryDateUsesSettingsLocation(t *testing.T) {
	s := DefaultSettings()
	s.Location = time.FixedZone("BRT", -3*60*60)

	// 14:30 UTC is 11:30 local, before the cutoff.
	date, window := OrderDeliveryDate(at(6, 14, 30), s, "")
	if ymd(date) != "2026-01-06" || window != WindowAfternoon {
		t.Fatalf("got %s/%s", ymd(date), window)
	}

	// 02:00 UTC on the 7th is still the 6th at 23:00 local.
	date, window = OrderDeliveryDate(at(7, 2, 0), s, "")
	if ymd(date) != "2026-01-07" || window != WindowMorning {
		t.Fatalf("got %s/%s", ymd(date), window)
	}
}

func TestNextBusinessDayNeverReturnsWeekendOrHoliday(t *testing.T) {
	holidays := []string{"2026-01-06", "2026-01-20", "2026-02-16", "2026-02-17"}
	cal := NewCalendar(nil, holidays)

	for i := 0; i < 60; i++ {
		start := at(1, 8, 0).AddDate(0, 0, i)
		got := NextBusinessDay(start, cal)
		if got.Weekday() == time.Saturday || got.Weekday() == time.Sunday {
			t.Fatalf("start %s returned weekend %s", ymd(start), ymd(got))
		}
		if cal.IsHoliday(got) {
			t.Fatalf("start %s returned holiday %s", ymd(start), ymd(got))
		}
		if got.Before(Day(start)) {
			t.Fatalf("start %s went backwards to %s", ymd(start), ymd(got))
		}
	}
}

func TestNextBusinessDayExhaustionReturnsInput(t *testing.T) {
	var holidays []string
	for d := at(12, 0, 0); d.Before(at(12, 0, 0).AddDate(0, 0, 56)); d = d.AddDate(0, 0, 7) {
		holidays = append(holidays, ymd(d))
	}
	cal := NewCalendar([]time.Weekday{time.Monday}, holidays)

	got := NextBusinessDay(at(6, 15, 0), cal)
	if ymd(got) != "2026-01-06" {
		t.Fatalf("expected input date on exhaustion, got %s", ymd(got))
	}
}

func TestMonthlyDeliveryDatesSingleWeekday(t *testing.T) {
	dates := MonthlyDeliveryDates(at(5, 9, 0), "segunda", nil, 4)
	want := []string{"2026-01-12", "2026-01-19", "2026-01-26", "2026-02-02"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i, d := range dates {
		if ymd(d) != want[i] {
			t.Fatalf("date %d: got %s want %s", i, ymd(d), want[i])
		}
		if i > 0 && d.Sub(dates[i-1]) != 7*24*time.Hour {
			t.Fatalf("dates should be a week apart")
		}
	}
}

func TestMonthlyDeliveryDatesCustomSet(t *testing.T) {
	weekly := enums.FrequencyWeekly
	custom := []string{"terça", "quinta-feira"}

	count := MonthlyDeliveryCount(&weekly, custom, DefaultCounts())
	if count != 9 {
		t.Fatalf("expected round(2*4.33)=9, got %d", count)
	}

	dates := MonthlyDeliveryDates(at(7, 10, 0), "", custom, count)
	want := []string{
		"2026-01-08", "2026-01-13", "2026-01-15", "2026-01-20", "2026-01-22",
		"2026-01-27", "2026-01-29", "2026-02-03", "2026-02-05",
	}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i, d := range dates {
		if ymd(d) != want[i] {
			t.Fatalf("date %d: got %s want %s", i, ymd(d), want[i])
		}
	}
}

func TestMonthlyDeliveryDatesBounds(t *testing.T) {
	if got := MonthlyDeliveryDates(at(5, 9, 0), "segunda", nil, 0); got != nil {
		t.Fatalf("count 0 should yield nil, got %v", got)
	}
	// Only five Mondays fit in the 35-day horizon.
	if got := MonthlyDeliveryDates(at(5, 9, 0), "segunda", nil, 10); len(got) != 5 {
		t.Fatalf("expected horizon to cap at 5 dates, got %d", len(got))
	}
}

func TestNextSubscriptionDeliveryDate(t *testing.T) {
	if got := NextSubscriptionDeliveryDate(at(5, 9, 0), "segunda", nil); ymd(got) != "2026-01-12" {
		t.Fatalf("same weekday should move a week ahead, got %s", ymd(got))
	}
	if got := NextSubscriptionDeliveryDate(at(5, 9, 0), "sexta-feira", nil); ymd(got) != "2026-01-09" {
		t.Fatalf("expected friday, got %s", ymd(got))
	}
	if got := NextSubscriptionDeliveryDate(at(7, 9, 0), "qualquer", nil); ymd(got) != "2026-01-12" {
		t.Fatalf("unknown weekday should fall back to monday, got %s", ymd(got))
	}
	if got := NextSubscriptionDeliveryDate(at(7, 9, 0), "segunda", []string{"sábado"}); ymd(got) != "2026-01-10" {
		t.Fatalf("custom set should override weekday, got %s", ymd(got))
	}
}

func TestMonthlyDeliveryCount(t *testing.T) {
	daily, weekly, biweekly, monthly := enums.FrequencyDaily, enums.FrequencyWeekly, enums.FrequencyBiweekly, enums.FrequencyMonthly
	counts := DefaultCounts()

	tests := []struct {
		name   string
		freq   *enums.Frequency
		custom []string
		want   int
	}{
		{name: "emergency", want: 1},
		{name: "daily", freq: &daily, want: 20},
		{name: "weekly", freq: &weekly, want: 4},
		{name: "biweekly", freq: &biweekly, want: 2},
		{name: "monthly", freq: &monthly, want: 1},
		{name: "three custom days", freq: &weekly, custom: []string{"seg", "qua", "sex"}, want: 13},
		{name: "unknown custom days ignored", freq: &weekly, custom: []string{"nope"}, want: 4},
	}
	for _, tt := range tests {
		if got := MonthlyDeliveryCount(tt.freq, tt.custom, counts); got != tt.want {
			t.Fatalf("%s: got %d want %d", tt.name, got, tt.want)
		}
	}

	if got := MonthlyDeliveryCount(&weekly, nil, Counts{Weekly: 5}); got != 5 {
		t.Fatalf("configured count should win, got %d", got)
	}
}

func TestCalculatorSubscriptionPlan(t *testing.T) {
	calc := NewCalculator(func() time.Time { return at(5, 9, 0) })
	s := DefaultSettings()

	daily := enums.FrequencyDaily
	plan := calc.SubscriptionPlan(s, PlanInput{Frequency: &daily})
	if plan.Count != 20 || len(plan.Dates) != 20 {
		t.Fatalf("expected 20 daily dates, got count=%d dates=%d", plan.Count, len(plan.Dates))
	}
	if ymd(plan.Dates[0]) != "2026-01-06" || ymd(plan.Dates[19]) != "2026-02-02" {
		t.Fatalf("unexpected daily range %s..%s", ymd(plan.Dates[0]), ymd(plan.Dates[19]))
	}
	for _, d := range plan.Dates {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			t.Fatalf("daily plan should skip weekends, got %s", ymd(d))
		}
	}
	if !plan.Next.Equal(plan.Dates[0]) {
		t.Fatalf("next delivery should be the earliest date")
	}
}

// Recurring deliveries follow the customer's weekdays; holidays only move
// one-time orders.
func TestCalculatorSubscriptionPlanKeepsHolidays(t *testing.T) {
	calc := NewCalculator(func() time.Time { return at(5, 9, 0) })
	s := DefaultSettings()
	s.Calendar = NewCalendar(nil, []string{"2026-01-07", "2026-01-12"})

	weekly := enums.FrequencyWeekly
	plan := calc.SubscriptionPlan(s, PlanInput{Frequency: &weekly, Weekday: "segunda"})
	if len(plan.Dates) != 4 || ymd(plan.Dates[0]) != "2026-01-12" {
		t.Fatalf("weekly plan should keep the holiday monday, got %v", plan.Dates)
	}
	if ymd(plan.Next) != "2026-01-12" {
		t.Fatalf("next delivery should be the holiday monday, got %s", ymd(plan.Next))
	}

	daily := enums.FrequencyDaily
	plan = calc.SubscriptionPlan(s, PlanInput{Frequency: &daily})
	if ymd(plan.Dates[0]) != "2026-01-06" || ymd(plan.Dates[1]) != "2026-01-07" {
		t.Fatalf("daily plan should keep the holiday wednesday, got %s %s", ymd(plan.Dates[0]), ymd(plan.Dates[1]))
	}
	for _, d := range plan.Dates {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			t.Fatalf("daily plan should still skip weekends, got %s", ymd(d))
		}
	}
}

func TestCalculatorEmergencyPlan(t *testing.T) {
	calc := NewCalculator(func() time.Time { return at(6, 15, 0) })
	plan := calc.SubscriptionPlan(DefaultSettings(), PlanInput{ConfirmedAt: at(6, 15, 0)})

	if plan.Count != 1 || len(plan.Dates) != 1 {
		t.Fatalf("emergency plan should have one delivery, got %+v", plan)
	}
	if ymd(plan.Dates[0]) != "2026-01-07" {
		t.Fatalf("after-cutoff emergency should deliver next day, got %s", ymd(plan.Dates[0]))
	}
}

func TestCalculatorNextDelivery(t *testing.T) {
	calc := NewCalculator(func() time.Time { return at(9, 9, 0) })
	weekly := enums.FrequencyWeekly
	got := calc.NextDelivery(DefaultSettings(), PlanInput{Frequency: &weekly, Weekday: "quarta"})
	if ymd(got) != "2026-01-14" {
		t.Fatalf("expected next wednesday, got %s", ymd(got))
	}
}
