// Package form holds the registration and profile field rules. Validation is
// a pure function of the submitted values; rendering lives elsewhere.
package form

import "reboot-miniapp/internal/models"

type Field string

const (
	FullName              Field = "fullName"
	Email                 Field = "email"
	PhoneNumber           Field = "phoneNumber"
	Age                   Field = "age"
	Weight                Field = "weight"
	Height                Field = "height"
	HorseRidingExperience Field = "horseRidingExperience"
	ReferralSource        Field = "referralSource"
)

// PhonePrefix is the only accepted country code; nine digits follow it.
const PhonePrefix = "+251"

type kind int

const (
	text kind = iota
	number
	wholeNumber
)

// rule is one field's constraint set. tag is a validator tag string; the
// messages are keyed by the tag that failed.
type rule struct {
	label    string
	kind     kind
	tag      string
	messages map[string]string
}

var rules = map[Field]rule{
	FullName: {
		label: "Full name",
		tag:   "min=2,max=100",
		messages: map[string]string{
			"min": "Full name must be at least 2 characters",
			"max": "Full name must be less than 100 characters",
		},
	},
	Email: {
		label: "Email",
		tag:   "email,max=255",
		messages: map[string]string{
			"email": "Invalid email address",
			"max":   "Email must be less than 255 characters",
		},
	},
	PhoneNumber: {
		label: "Phone number",
		tag:   "phone",
		messages: map[string]string{
			"phone": "Phone number must be in format " + PhonePrefix + "XXXXXXXXX",
		},
	},
	Age: {
		label: "Age",
		kind:  wholeNumber,
		tag:   "gte=18,lte=60",
		messages: map[string]string{
			"gte": "Age must be at least 18",
			"lte": "Age must be at most 60",
		},
	},
	Weight: {
		label: "Weight",
		kind:  number,
		tag:   "gte=35,lte=100",
		messages: map[string]string{
			"gte": "Weight must be at least 35 kg",
			"lte": "Weight must be at most 100 kg",
		},
	},
	Height: {
		label: "Height",
		kind:  number,
		tag:   "gte=100,lte=250",
		messages: map[string]string{
			"gte": "Height must be at least 100 cm",
			"lte": "Height must be at most 250 cm",
		},
	},
	HorseRidingExperience: {
		label: "Experience",
		tag:   "required,oneof=none beginner intermediate advanced",
		messages: map[string]string{
			"required": "Please select an option",
			"oneof":    "Please select an option",
		},
	},
	ReferralSource: {
		label: "Referral source",
		tag:   "min=1,max=200",
		messages: map[string]string{
			"min": "Please let us know how you heard about us",
			"max": "Response must be less than 200 characters",
		},
	},
}

// Schema is the ordered field list of one form.
type Schema struct {
	name   string
	fields []Field
}

var (
	Registration = Schema{
		name:   "registration",
		fields: []Field{FullName, Email, PhoneNumber, Age, Weight, Height, HorseRidingExperience, ReferralSource},
	}
	Profile = Schema{
		name:   "profile",
		fields: []Field{FullName, Email, PhoneNumber, Age, Weight, Height, HorseRidingExperience},
	}
)

func (s Schema) Name() string { return s.name }

func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s Schema) Has(f Field) bool {
	for _, x := range s.fields {
		if x == f {
			return true
		}
	}
	return false
}

type Option struct {
	Value string
	Label string
}

var ExperienceOptions = []Option{
	{Value: string(models.ExperienceNone), Label: "No experience"},
	{Value: string(models.ExperienceBeginner), Label: "Beginner (1-5 rides)"},
	{Value: string(models.ExperienceIntermediate), Label: "Intermediate (5-20 rides)"},
	{Value: string(models.ExperienceAdvanced), Label: "Advanced (20+ rides)"},
}

var ReferralOptions = []Option{
	{Value: "Telegram", Label: "Telegram"},
	{Value: "Instagram", Label: "Instagram"},
	{Value: "TikTok", Label: "TikTok"},
	{Value: "Friend/Family", Label: "Friend/Family"},
	{Value: "Other", Label: "Other"},
}

// SchemaByName returns the schema called name.
func SchemaByName(name string) (Schema, bool) {
	switch name {
	case Registration.name:
		return Registration, true
	case Profile.name:
		return Profile, true
	}
	return Schema{}, false
}
