package view

import (
	"strconv"

	"homestay/internal/domain"
)

// FormatMoney renders an amount the way the booking screens do: "1.500.000 ₫".
func FormatMoney(m domain.Money) string {
	n := int64(m)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)

	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return sign + string(out) + " ₫"
}
