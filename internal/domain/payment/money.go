package payment

import (
	"fmt"
	"strconv"
	"strings"

	payflow_errors "payflow/pkg/errors"
)

// Amounts are held in minor units (cents). The HTTP boundary accepts
// decimal strings with at most two fractional digits and formats
// responses back the same way.

// ParseAmount converts a positive decimal string with scale <= 2 into
// minor units.
func ParseAmount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		return 0, payflow_errors.ErrInvalidInput
	}

	whole, frac := value, ""
	if i := strings.IndexByte(value, '.'); i >= 0 {
		whole, frac = value[:i], value[i+1:]
		if frac == "" {
			return 0, payflow_errors.ErrInvalidInput
		}
	}
	if whole == "" || len(frac) > 2 {
		return 0, payflow_errors.ErrInvalidInput
	}
	for len(frac) < 2 {
		frac += "0"
	}

	// ParseUint on both parts: ParseInt would admit a sign inside the
	// number ("1.-5") and corrupt the amount.
	units, err := strconv.ParseUint(whole, 10, 63)
	if err != nil {
		return 0, payflow_errors.ErrInvalidInput
	}
	cents, err := strconv.ParseUint(frac, 10, 63)
	if err != nil {
		return 0, payflow_errors.ErrInvalidInput
	}

	if units > (1<<62)/100 {
		return 0, payflow_errors.ErrInvalidInput
	}
	total := int64(units)*100 + int64(cents)
	if total <= 0 {
		return 0, payflow_errors.ErrInvalidInput
	}
	return total, nil
}

// FormatAmount renders minor units as a scale-2 decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
