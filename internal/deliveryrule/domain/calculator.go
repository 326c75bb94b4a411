package domain

import (
	"fmt"
	"time"
)

type cutoff struct {
	minuteOfDay int
	days        int
}

// ComputeDeliveryDate applies the rule's cutoffs in ascending order: the first
// cutoff the email arrives before picks that bucket's day offset; past every
// cutoff, the last bucket's offset plus one extra day applies. The candidate
// date then rolls forward day by day past weekends and holidays per the
// rule's exclusion flags. holidays keys are "2006-01-02" dates.
func ComputeDeliveryDate(receivedAt time.Time, rule DeliveryRule, holidays map[string]bool) (time.Time, error) {
	cutoffs, err := ruleCutoffs(rule)
	if err != nil {
		return time.Time{}, err
	}

	minuteOfDay := receivedAt.Hour()*60 + receivedAt.Minute()
	days := cutoffs[len(cutoffs)-1].days + 1
	for _, c := range cutoffs {
		if minuteOfDay < c.minuteOfDay {
			days = c.days
			break
		}
	}

	date := receivedAt.AddDate(0, 0, days)
	for !businessDay(date, rule, holidays) {
		date = date.AddDate(0, 0, 1)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, receivedAt.Location()), nil
}

func ruleCutoffs(rule DeliveryRule) ([]cutoff, error) {
	morning, err := parseCutoff(rule.MorningCutoff)
	if err != nil {
		return nil, err
	}
	afternoon, err := parseCutoff(rule.AfternoonCutoff)
	if err != nil {
		return nil, err
	}

	cutoffs := []cutoff{{morning, rule.MorningDeliveryDays}}
	if rule.CutoffCount >= 2 && rule.SecondCutoffTime != nil && rule.AfterSecondCutoffDays != nil {
		second, err := parseCutoff(*rule.SecondCutoffTime)
		if err != nil {
			return nil, err
		}
		cutoffs = append(cutoffs, cutoff{second, *rule.AfterSecondCutoffDays})
	}
	return append(cutoffs, cutoff{afternoon, rule.AfternoonDeliveryDays}), nil
}

func parseCutoff(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCutoff, value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

func businessDay(date time.Time, rule DeliveryRule, holidays map[string]bool) bool {
	if rule.ExcludeWeekends {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	if rule.ExcludeHolidays && holidays[date.Format("2006-01-02")] {
		return false
	}
	return true
}
