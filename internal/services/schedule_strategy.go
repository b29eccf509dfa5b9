// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring invoice schedules.
// Each interval (monthly, quarterly, yearly) has its own strategy that
// advances a generation date by one period.

package services

import (
	"fmt"

	"facturepro/internal/core"
)

// ScheduleStrategy advances the generation date of a recurring invoice.
type ScheduleStrategy interface {
	// Next returns the generation date one period after from. Month overflow
	// normalizes into the following month (Jan 31 + 1 month is Mar 3).
	Next(from core.Date) core.Date
}

type MonthlySchedule struct{}

func (MonthlySchedule) Next(from core.Date) core.Date {
	return from.AddMonths(1)
}

type QuarterlySchedule struct{}

func (QuarterlySchedule) Next(from core.Date) core.Date {
	return from.AddMonths(3)
}

type YearlySchedule struct{}

func (YearlySchedule) Next(from core.Date) core.Date {
	return from.AddMonths(12)
}

// scheduleStrategies maps recurring intervals to their strategies.
var scheduleStrategies = map[core.RecurringInterval]ScheduleStrategy{
	core.IntervalMonthly:   MonthlySchedule{},
	core.IntervalQuarterly: QuarterlySchedule{},
	core.IntervalYearly:    YearlySchedule{},
}

// GetScheduleStrategy returns the strategy for a recurring interval.
// IntervalNone and unknown intervals are errors.
func GetScheduleStrategy(interval core.RecurringInterval) (ScheduleStrategy, error) {
	strategy, ok := scheduleStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return strategy, nil
}

// RegisterScheduleStrategy adds or replaces the strategy of an interval.
func RegisterScheduleStrategy(interval core.RecurringInterval, strategy ScheduleStrategy) {
	scheduleStrategies[interval] = strategy
}

// FirstGenerationDate is the date a newly finalized recurring invoice will
// produce its successor, or the empty date for one-off invoices.
func FirstGenerationDate(issue core.Date, interval core.RecurringInterval) (core.Date, error) {
	if !interval.Recurring() {
		return core.Date{}, nil
	}
	strategy, err := GetScheduleStrategy(interval)
	if err != nil {
		return core.Date{}, err
	}
	return strategy.Next(issue), nil
}
