package domain

import (
	"fmt"
	"time"
)

// CelebrationPreference controls how a due birthday is announced.
type CelebrationPreference string

const (
	CelebrationPublic CelebrationPreference = "PUBLIC"
	CelebrationDM     CelebrationPreference = "DM"
	CelebrationRole   CelebrationPreference = "ROLE"
	CelebrationNone   CelebrationPreference = "NONE"
)

// BirthdaySource records which path created or last changed a record.
type BirthdaySource string

const (
	SourceSelf    BirthdaySource = "SELF"
	SourceStaff   BirthdaySource = "STAFF"
	SourceRequest BirthdaySource = "REQUEST"
)

// nonLeapReferenceYear is used to validate a month/day pair when no birth
// year is supplied, so Feb 29 requires an explicit leap year.
const nonLeapReferenceYear = 2023

// Date is a calendar birthday: month and day, with an optional year.
type Date struct {
	Month int
	Day   int
	Year  *int
}

// Validate checks month range first, then day range against the month.
// Without a year the day is validated against a non-leap reference year.
func (d Date) Validate() error {
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", d.Month)
	}
	year := nonLeapReferenceYear
	if d.Year != nil {
		year = *d.Year
	}
	if d.Day < 1 || d.Day > daysInMonth(d.Month, year) {
		return fmt.Errorf("day %d is not valid for month %d", d.Day, d.Month)
	}
	return nil
}

// Matches reports whether the birthday is due on the given day.
func (d Date) Matches(today time.Time) bool {
	return int(today.Month()) == d.Month && today.Day() == d.Day
}

// Equal compares month, day and (when both present) year.
func (d Date) Equal(other Date) bool {
	if d.Month != other.Month || d.Day != other.Day {
		return false
	}
	if d.Year == nil || other.Year == nil {
		return d.Year == nil && other.Year == nil
	}
	return *d.Year == *other.Year
}

// Age returns the subject's age as of today, or false when no year is known.
func (d Date) Age(today time.Time) (int, bool) {
	if d.Year == nil {
		return 0, false
	}
	age := today.Year() - *d.Year
	if int(today.Month()) < d.Month || (int(today.Month()) == d.Month && today.Day() < d.Day) {
		age--
	}
	return age, true
}

// NextOccurrence returns the next date on or after today with this
// month/day. Feb 29 rolls forward to Mar 1 in non-leap years.
func (d Date) NextOccurrence(today time.Time) time.Time {
	next := time.Date(today.Year(), time.Month(d.Month), d.Day, 0, 0, 0, 0, today.Location())
	if next.Before(today.Truncate(24 * time.Hour)) {
		next = time.Date(today.Year()+1, time.Month(d.Month), d.Day, 0, 0, 0, 0, today.Location())
	}
	return next
}

func (d Date) String() string {
	if d.Year != nil {
		return fmt.Sprintf("%04d-%02d-%02d", *d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("%02d-%02d", d.Month, d.Day)
}

func daysInMonth(month, year int) int {
	switch month {
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// BirthdayRecord is the aggregate for a subject's stored birthday.
// Exactly one record exists per (guild, user).
type BirthdayRecord struct {
	GuildID          string
	UserID           string
	Birthday         Date
	ShowAge          bool
	IsActualBirthday bool
	Preference       CelebrationPreference
	CustomMessage    *string
	Source           BirthdaySource
	SetBy            string
	Verified         bool
	VerifiedBy       *string
	VerifiedAt       *time.Time
	LastCelebrated   *time.Time
	NotificationSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CelebratedOn reports whether the record was already celebrated on the
// given calendar day. This is the idempotency guard shared by the approval
// path and the daily sweep.
func (r *BirthdayRecord) CelebratedOn(day time.Time) bool {
	if r.LastCelebrated == nil {
		return false
	}
	y1, m1, d1 := r.LastCelebrated.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
