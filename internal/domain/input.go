package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalid         = errors.New("invalid input")
	ErrInvalidDuration = fmt.Errorf("%w: duration must be positive", ErrInvalid)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate runs struct tag validation and flattens the result into a
// ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return out
}

// TimerSpec is the user-provided part of a new timer.
type TimerSpec struct {
	Name      string         `json:"name" validate:"required,max=64"`
	Threshold time.Duration  `json:"-" validate:"gte=0"`
	Category  TimerCategory  `json:"category" validate:"required,oneof=generator equipment cooldown other"`
	Reminder  *TimerReminder `json:"-"`
}

// ResourceSpec is the user-provided part of a new resource.
type ResourceSpec struct {
	Name     string           `json:"name" validate:"required,max=64"`
	Value    float64          `json:"value" validate:"gte=0"`
	Needed   float64          `json:"needed" validate:"gt=0"`
	Category ResourceCategory `json:"category" validate:"required,oneof=power resources other"`
}

// ResourcePatch carries a partial resource update; nil fields are untouched.
type ResourcePatch struct {
	Name     *string           `json:"name,omitempty"`
	Value    *float64          `json:"value,omitempty"`
	Needed   *float64          `json:"needed,omitempty"`
	Category *ResourceCategory `json:"category,omitempty"`
}

// Apply returns r with the patch applied.
func (p ResourcePatch) Apply(r Resource) Resource {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Value != nil {
		r.Value = *p.Value
	}
	if p.Needed != nil {
		r.Needed = *p.Needed
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	return r
}

// Spec returns the validatable view of a resource.
func (r Resource) Spec() ResourceSpec {
	return ResourceSpec{Name: r.Name, Value: r.Value, Needed: r.Needed, Category: r.Category}
}

// DurationFromParts converts the days/hours/minutes/seconds form used by the
// presentation layer into a duration.
func DurationFromParts(days, hours, minutes, seconds int) (time.Duration, error) {
	if days < 0 || hours < 0 || minutes < 0 || seconds < 0 {
		return 0, ErrInvalidDuration
	}
	var d time.Duration
	parts := []struct {
		n    int
		unit time.Duration
	}{
		{days, 24 * time.Hour},
		{hours, time.Hour},
		{minutes, time.Minute},
		{seconds, time.Second},
	}
	for _, p := range parts {
		if int64(p.n) > math.MaxInt64/int64(p.unit) {
			return 0, ErrInvalidDuration
		}
		add := time.Duration(p.n) * p.unit
		if d > math.MaxInt64-add {
			return 0, ErrInvalidDuration
		}
		d += add
	}
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	return d, nil
}
