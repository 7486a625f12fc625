package payroll

import (
	"sort"
	"time"

	"github.com/groundwork-cm/groundwork-backend/internal/employees"
	"github.com/groundwork-cm/groundwork-backend/internal/timetracking"
)

const (
	WeeklyRegularMinutes = 40 * 60
	daysPerYear          = 365
)

// Compute builds one item per paid employee. Hourly employees are paid for the
// entries given; salaried employees are paid for the days of the period they
// were employed whether or not they logged time. Entries of salaried employees
// are claimed but add nothing to gross pay.
func Compute(from, to time.Time, staff []employees.Employee, entries []timetracking.Entry) []Item {
	byID := make(map[string]employees.Employee, len(staff))
	for _, e := range staff {
		byID[e.ID] = e
	}

	weekly := map[string]map[int]int{}
	for _, en := range entries {
		emp, ok := byID[en.EmployeeID]
		if !ok || emp.PayType != employees.PayHourly {
			continue
		}
		if weekly[en.EmployeeID] == nil {
			weekly[en.EmployeeID] = map[int]int{}
		}
		weekly[en.EmployeeID][isoWeek(en.WorkDate)] += en.Minutes
	}

	var items []Item
	for empID, weeks := range weekly {
		emp := byID[empID]
		it := Item{EmployeeID: empID, PayType: employees.PayHourly}
		for _, minutes := range weeks {
			reg := min(minutes, WeeklyRegularMinutes)
			it.RegularMinutes += reg
			it.OvertimeMinutes += minutes - reg
		}
		it.RegularPayCents = hourlyPay(emp.HourlyRateCents, it.RegularMinutes, 2)
		it.OvertimePayCents = hourlyPay(emp.HourlyRateCents, it.OvertimeMinutes, 3)
		it.GrossCents = it.RegularPayCents + it.OvertimePayCents
		items = append(items, it)
	}

	for _, emp := range staff {
		if emp.PayType != employees.PaySalary {
			continue
		}
		days := emp.DaysEmployed(from, to)
		if days == 0 {
			continue
		}
		pay := roundDiv(emp.AnnualSalaryCents*int64(days), daysPerYear)
		items = append(items, Item{
			EmployeeID:     emp.ID,
			PayType:        employees.PaySalary,
			SalaryPayCents: pay,
			GrossCents:     pay,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].EmployeeID < items[j].EmployeeID })
	return items
}

// hourlyPay returns round(rate × minutes / 60 × halves / 2).
func hourlyPay(rateCents int64, minutes int, halves int64) int64 {
	return roundDiv(rateCents*int64(minutes)*halves, 120)
}

// roundDiv divides non-negative n by d rounding half up.
func roundDiv(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}

// isoWeek keys a date by ISO year and week so Monday starts a new week.
func isoWeek(t time.Time) int {
	y, w := t.ISOWeek()
	return y*100 + w
}
