package scheduling

import (
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// PlanInput describes the subscription being scheduled.
type PlanInput struct {
	Frequency   *enums.Frequency
	Weekday     string
	Custom      []string
	ConfirmedAt time.Time
}

// Plan is one billing cycle worth of deliveries.
type Plan struct {
	Count int
	Dates []time.Time
	Next  time.Time
}

// Calculator binds the pure functions to a clock and a location. Every
// reconciliation entry point schedules through it.
type Calculator struct {
	now func() time.Time
}

func NewCalculator(now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{now: now}
}

// Now returns the current instant.
func (c *Calculator) Now() time.Time {
	return c.now()
}

// OrderDelivery schedules a one-time order confirmed at confirmedAt.
func (c *Calculator) OrderDelivery(confirmedAt time.Time, s Settings, suppliedWindow string) (time.Time, string) {
	if confirmedAt.IsZero() {
		confirmedAt = c.now()
	}
	return OrderDeliveryDate(confirmedAt, s, suppliedWindow)
}

// NextDelivery returns the next delivery date of a recurring subscription.
func (c *Calculator) NextDelivery(s Settings, in PlanInput) time.Time {
	now := c.now().In(s.location())
	return nextMatching(now, DeliveryTargets(in.Frequency, in.Weekday, in.Custom, s.Calendar))
}

// SubscriptionPlan schedules one cycle. Emergency subscriptions (nil
// frequency and no custom days) get a single delivery dated like an order.
func (c *Calculator) SubscriptionPlan(s Settings, in PlanInput) Plan {
	if in.Frequency == nil && len(ParseWeekdays(in.Custom)) == 0 {
		date, _ := c.OrderDelivery(in.ConfirmedAt, s, "")
		return Plan{Count: 1, Dates: []time.Time{date}, Next: date}
	}

	now := c.now().In(s.location())
	count := MonthlyDeliveryCount(in.Frequency, in.Custom, s.Counts)
	targets := DeliveryTargets(in.Frequency, in.Weekday, in.Custom, s.Calendar)
	dates := datesMatching(now, targets, count)

	plan := Plan{Count: count, Dates: dates, Next: nextMatching(now, targets)}
	if len(dates) > 0 {
		plan.Next = dates[0]
	}
	return plan
}
