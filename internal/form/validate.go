package form

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"reboot-miniapp/internal/models"
)

var phonePattern = regexp.MustCompile(`^\` + PhonePrefix + `\d{9}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Input is the form as typed, before trimming and coercion.
type Input struct {
	FullName              string
	Email                 string
	PhoneNumber           string
	Age                   string
	Weight                string
	Height                string
	HorseRidingExperience string
	ReferralSource        string
}

// Defaults is the initial state of an empty form.
func Defaults() Input {
	return Input{PhoneNumber: PhonePrefix}
}

// FromValues reads an Input from submitted form values keyed by field name.
func FromValues(v url.Values) Input {
	return Input{
		FullName:              v.Get(string(FullName)),
		Email:                 v.Get(string(Email)),
		PhoneNumber:           v.Get(string(PhoneNumber)),
		Age:                   v.Get(string(Age)),
		Weight:                v.Get(string(Weight)),
		Height:                v.Get(string(Height)),
		HorseRidingExperience: v.Get(string(HorseRidingExperience)),
		ReferralSource:        v.Get(string(ReferralSource)),
	}
}

// FromUser prefills an Input from a stored record.
func FromUser(u models.User) Input {
	in := Input{
		FullName:              u.FullName,
		Email:                 u.Email,
		PhoneNumber:           u.PhoneNumber,
		HorseRidingExperience: string(u.HorseRidingExperience),
		ReferralSource:        u.ReferralSource,
	}
	if in.PhoneNumber == "" {
		in.PhoneNumber = PhonePrefix
	}
	if u.Age != 0 {
		in.Age = strconv.Itoa(u.Age)
	}
	if u.Weight != 0 {
		in.Weight = strconv.FormatFloat(u.Weight, 'f', -1, 64)
	}
	if u.Height != 0 {
		in.Height = strconv.FormatFloat(u.Height, 'f', -1, 64)
	}
	return in
}

func (in Input) Get(f Field) string {
	switch f {
	case FullName:
		return in.FullName
	case Email:
		return in.Email
	case PhoneNumber:
		return in.PhoneNumber
	case Age:
		return in.Age
	case Weight:
		return in.Weight
	case Height:
		return in.Height
	case HorseRidingExperience:
		return in.HorseRidingExperience
	case ReferralSource:
		return in.ReferralSource
	default:
		return ""
	}
}

type FieldError struct {
	Field   Field
	Message string
}

// Result lists failing fields in schema order, one message per field.
type Result struct {
	Errors []FieldError
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

// First returns the message for f, or "" when f is valid.
func (r Result) First(f Field) string {
	for _, e := range r.Errors {
		if e.Field == f {
			return e.Message
		}
	}
	return ""
}

// Messages maps field names to messages, for templates.
func (r Result) Messages() map[string]string {
	m := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		m[string(e.Field)] = e.Message
	}
	return m
}

// Validate checks every field of schema.
func Validate(s Schema, in Input) Result {
	var res Result
	for _, f := range s.fields {
		if msg := check(f, in.Get(f)); msg != "" {
			res.Errors = append(res.Errors, FieldError{Field: f, Message: msg})
		}
	}
	return res
}

// ValidateField checks one field, for per-field feedback while typing.
// Fields outside the schema are always valid.
func ValidateField(s Schema, f Field, in Input) string {
	if !s.Has(f) {
		return ""
	}
	return check(f, in.Get(f))
}

func check(f Field, raw string) string {
	r, ok := rules[f]
	if !ok {
		return ""
	}
	value := strings.TrimSpace(raw)
	if r.kind == text {
		return failure(r, validate.Var(value, r.tag))
	}

	n, err := coerce(value)
	if err != nil {
		return r.label + " must be a number"
	}
	if msg := failure(r, validate.Var(n, r.tag)); msg != "" {
		return msg
	}
	if r.kind == wholeNumber && n != math.Trunc(n) {
		return r.label + " must be a whole number"
	}
	return ""
}

// coerce follows loose numeric input rules: blank is zero.
func coerce(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.New("not a number")
	}
	return n, nil
}

func failure(r rule, err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := r.messages[verrs[0].Tag()]; ok {
			return msg
		}
	}
	return r.label + " is invalid"
}

// Decode validates in and, when valid, returns the trimmed, coerced record.
// The referral source is only carried by schemas that have it.
func Decode(s Schema, in Input) (models.RegistrationRecord, Result) {
	res := Validate(s, in)
	if !res.OK() {
		return models.RegistrationRecord{}, res
	}
	age, _ := coerce(strings.TrimSpace(in.Age))
	weight, _ := coerce(strings.TrimSpace(in.Weight))
	height, _ := coerce(strings.TrimSpace(in.Height))

	rec := models.RegistrationRecord{
		FullName:              strings.TrimSpace(in.FullName),
		Email:                 strings.TrimSpace(in.Email),
		PhoneNumber:           strings.TrimSpace(in.PhoneNumber),
		Age:                   int(age),
		Weight:                weight,
		Height:                height,
		HorseRidingExperience: models.Experience(strings.TrimSpace(in.HorseRidingExperience)),
	}
	if s.Has(ReferralSource) {
		rec.ReferralSource = strings.TrimSpace(in.ReferralSource)
	}
	return rec, res
}
