package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// TestDateValidate_MonthCheckedFirst verifies an out-of-range month is
// reported even when the day is also invalid.
func TestDateValidate_MonthCheckedFirst(t *testing.T) {
	err := Date{Month: 13, Day: 45}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month")
}

// TestDateValidate_DayAgainstMonth verifies day bounds per month.
func TestDateValidate_DayAgainstMonth(t *testing.T) {
	assert.NoError(t, Date{Month: 1, Day: 31}.Validate())
	assert.NoError(t, Date{Month: 4, Day: 30}.Validate())
	assert.Error(t, Date{Month: 4, Day: 31}.Validate())
	assert.Error(t, Date{Month: 2, Day: 30}.Validate())
	assert.Error(t, Date{Month: 6, Day: 0}.Validate())
}

// TestDateValidate_LeapDay verifies Feb 29 needs an explicit leap year.
func TestDateValidate_LeapDay(t *testing.T) {
	assert.Error(t, Date{Month: 2, Day: 29}.Validate(), "yearless Feb 29 must be rejected")
	assert.NoError(t, Date{Month: 2, Day: 29, Year: intPtr(2000)}.Validate())
	assert.NoError(t, Date{Month: 2, Day: 29, Year: intPtr(2024)}.Validate())
	assert.Error(t, Date{Month: 2, Day: 29, Year: intPtr(2023)}.Validate())
	assert.Error(t, Date{Month: 2, Day: 29, Year: intPtr(1900)}.Validate(), "1900 is not a leap year")
}

// TestDateMatches ignores the year entirely.
func TestDateMatches(t *testing.T) {
	d := Date{Month: 3, Day: 15, Year: intPtr(1990)}
	assert.True(t, d.Matches(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)))
	assert.False(t, d.Matches(time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)))
	assert.False(t, d.Matches(time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)))
}

// TestDateEqual treats a missing year as distinct from any concrete year.
func TestDateEqual(t *testing.T) {
	assert.True(t, Date{Month: 3, Day: 15}.Equal(Date{Month: 3, Day: 15}))
	assert.True(t, Date{Month: 3, Day: 15, Year: intPtr(1990)}.Equal(Date{Month: 3, Day: 15, Year: intPtr(1990)}))
	assert.False(t, Date{Month: 3, Day: 15}.Equal(Date{Month: 3, Day: 15, Year: intPtr(1990)}))
	assert.False(t, Date{Month: 3, Day: 15, Year: intPtr(1990)}.Equal(Date{Month: 3, Day: 15, Year: intPtr(1991)}))
	assert.False(t, Date{Month: 3, Day: 15}.Equal(Date{Month: 3, Day: 16}))
}

// TestDateAge decrements until the birthday has passed this year.
func TestDateAge(t *testing.T) {
	d := Date{Month: 3, Day: 15, Year: intPtr(1990)}

	age, ok := d.Age(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 33, age)

	age, ok = d.Age(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 34, age)

	age, ok = d.Age(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 34, age)

	_, ok = Date{Month: 3, Day: 15}.Age(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok, "age is unknown without a year")
}

// TestDateNextOccurrence rolls to next year once the date has passed.
func TestDateNextOccurrence(t *testing.T) {
	today := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	next := Date{Month: 6, Day: 10}.NextOccurrence(today)
	assert.Equal(t, 2024, next.Year())
	assert.Equal(t, time.June, next.Month())
	assert.Equal(t, 10, next.Day())

	next = Date{Month: 6, Day: 9}.NextOccurrence(today)
	assert.Equal(t, 2025, next.Year())

	next = Date{Month: 12, Day: 25}.NextOccurrence(today)
	assert.Equal(t, 2024, next.Year())
}

// TestDateString formats with or without the year.
func TestDateString(t *testing.T) {
	assert.Equal(t, "1990-03-15", Date{Month: 3, Day: 15, Year: intPtr(1990)}.String())
	assert.Equal(t, "03-15", Date{Month: 3, Day: 15}.String())
}

// TestCelebratedOn compares calendar days, not timestamps.
func TestCelebratedOn(t *testing.T) {
	stamp := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	record := &BirthdayRecord{LastCelebrated: &stamp}

	assert.True(t, record.CelebratedOn(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)))
	assert.False(t, record.CelebratedOn(time.Date(2024, 3, 16, 0, 1, 0, 0, time.UTC)))
	assert.False(t, record.CelebratedOn(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)))

	assert.False(t, (&BirthdayRecord{}).CelebratedOn(stamp))
}

// TestTicketReopenable allows rejected and cancelled, never approved.
func TestTicketReopenable(t *testing.T) {
	assert.True(t, (&TicketRequest{Status: TicketStatusRejected}).Reopenable())
	assert.True(t, (&TicketRequest{Status: TicketStatusCancelled}).Reopenable())
	assert.False(t, (&TicketRequest{Status: TicketStatusApproved}).Reopenable())
	assert.False(t, (&TicketRequest{Status: TicketStatusOpen}).Reopenable())
}
