package fee

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/playmate/core"
)

var (
	feeStatusTag  = "feestatus"
	feeStatusText = "must be one of Paid, Due"

	monthTag  = "month"
	monthText = "must be a month abbreviation (Jan..Dec)"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(feeStatusTag, func(fl validator.FieldLevel) bool {
		st := fl.Field().String()
		return st == StatusPaid || st == StatusDue
	})
	core.RegisterCustomTranslation(validate, translator, feeStatusTag, feeStatusText)

	_ = validate.RegisterValidation(monthTag, func(fl validator.FieldLevel) bool {
		_, ok := CleanMonth(fl.Field().String())
		return ok
	})
	core.RegisterCustomTranslation(validate, translator, monthTag, monthText)
}

func cleanStatus(st string) string {
	switch core.CleanString(st, true /* lower */) {
	case "paid":
		return StatusPaid
	case "due":
		return StatusDue
	}
	return core.CleanString(st)
}

var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April", "may": "May", "jun": "June",
	"jul": "July", "aug": "August", "sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// CleanMonth maps "jan", "JAN", "January" to "Jan". Anything but the abbreviation or the full
// English name is rejected.
func CleanMonth(m string) (string, bool) {
	m = core.CleanString(m, true /* lower */)
	for _, month := range Months {
		abbr := strings.ToLower(month)
		if m == abbr || m == strings.ToLower(monthNames[abbr]) {
			return month, true
		}
	}
	return "", false
}
