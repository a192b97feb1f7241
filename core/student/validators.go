package student

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/playmate/core"
)

var (
	studentIDTag   = "studentid"
	studentIDText  = "only letters, digits, dashes and underscores are allowed"
	studentIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	phoneTag   = "phone"
	phoneText  = "must be a valid phone number (10 digits)"
	phoneRegex = regexp.MustCompile(`^[0-9]{10}$`)

	genderTag  = "gender"
	genderText = "must be one of " + strings.Join(Genders, ", ")

	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(studentIDTag, func(fl validator.FieldLevel) bool {
		return studentIDRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, studentIDTag, studentIDText)

	_ = validate.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	_ = validate.RegisterValidation(genderTag, func(fl validator.FieldLevel) bool {
		g := fl.Field().String()
		for _, gender := range Genders {
			if g == gender {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)
}

// cleanPhone strips separators and a leading +91 / 0 so numbers are stored as 10 digits.
func cleanPhone(phone string) string {
	phone = phoneNoise.Replace(core.CleanString(phone))
	switch {
	case strings.HasPrefix(phone, "+91") && len(phone) == 13:
		return phone[3:]
	case strings.HasPrefix(phone, "91") && len(phone) == 12:
		return phone[2:]
	case strings.HasPrefix(phone, "0") && len(phone) == 11:
		return phone[1:]
	}
	return phone
}

// cleanGender normalises case ("male" -> "Male") and the usual abbreviations.
func cleanGender(g string) string {
	switch core.CleanString(g, true /* lower */) {
	case "":
		return ""
	case "m", "male", "boy":
		return "Male"
	case "f", "female", "girl":
		return "Female"
	case "o", "other":
		return "Other"
	}
	return core.CleanString(g)
}
