package valueobject

import (
	"time"

	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

const monthLayout = "2006-01"

// Month расчётный месяц в формате YYYY-MM.
type Month string

func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", apperror.New(apperror.ErrCodeValidation, "месяц должен быть в формате YYYY-MM")
	}
	return Month(s), nil
}

// MonthOf возвращает месяц, в который попадает момент t в заданной зоне.
func MonthOf(t time.Time, loc *time.Location) Month {
	if loc == nil {
		loc = time.UTC
	}
	return Month(t.In(loc).Format(monthLayout))
}

// Window возвращает полуинтервал [from, to) месяца в заданной зоне.
func (m Month) Window(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start, _ := time.ParseInLocation(monthLayout, string(m), loc)
	return start, start.AddDate(0, 1, 0)
}

func (m Month) String() string {
	return string(m)
}
