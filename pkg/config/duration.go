package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PositiveDuration is a validation rule requiring a time.Duration greater than zero.
// Unlike most ozzo rules it also rejects the zero value.
var PositiveDuration validation.Rule = validation.By(func(value interface{}) error {
	d, err := toDuration(value)
	if err != nil {
		return err
	}
	if d <= 0 {
		return validation.NewError("validation_duration_not_positive", fmt.Sprintf("must be positive, got %v", d))
	}
	return nil
})

// DurationRange returns a rule requiring min <= d <= max.
func DurationRange(min, max time.Duration) validation.Rule {
	return validation.By(func(value interface{}) error {
		d, err := toDuration(value)
		if err != nil {
			return err
		}
		if d < min || d > max {
			return validation.NewError("validation_duration_out_of_range",
				fmt.Sprintf("must be between %v and %v, got %v", min, max, d))
		}
		return nil
	})
}

func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case *time.Duration:
		if v == nil {
			return 0, nil
		}
		return *v, nil
	default:
		return 0, validation.NewError("validation_invalid_type", "must be a time.Duration")
	}
}
