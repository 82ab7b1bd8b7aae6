package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/statelyrides/chauffeur/pkg/common"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	// Common regex patterns
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`) // E.164 format
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func init() {
	Validate = validator.New()

	// Register custom validators
	_ = Validate.RegisterValidation("latitude", validateLatitude)
	_ = Validate.RegisterValidation("longitude", validateLongitude)
	_ = Validate.RegisterValidation("phone", validatePhone)
	_ = Validate.RegisterValidation("service_type", validateServiceType)
	_ = Validate.RegisterValidation("vehicle_class", validateVehicleClass)
	_ = Validate.RegisterValidation("clock_time", validateClockTime)
	_ = Validate.RegisterValidation("rule_type", validateRuleType)
	_ = Validate.RegisterValidation("booking_status", validateBookingStatus)
}

// ValidateStruct validates a struct and returns an AppError listing the failed
// fields when validation fails.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		messages := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
		return common.NewValidationError(strings.Join(messages, "; "))
	}
	return err
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validatePhone checks if phone number is in E.164 format
func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// validateServiceType checks if service type is valid
func validateServiceType(fl validator.FieldLevel) bool {
	validTypes := []string{"one_way", "round_trip", "hourly"}
	return contains(validTypes, fl.Field().String())
}

// validateVehicleClass checks if vehicle class is valid
func validateVehicleClass(fl validator.FieldLevel) bool {
	validClasses := []string{"sedan", "suv", "sprinter", "stretch"}
	return contains(validClasses, fl.Field().String())
}

// validateClockTime checks if the value is a wall-clock time in HH:MM form
func validateClockTime(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

// validateRuleType checks if a pricing rule type is valid
func validateRuleType(fl validator.FieldLevel) bool {
	validTypes := []string{"base_rate", "distance_multiplier", "time_multiplier", "surcharge", "discount", "refund"}
	return contains(validTypes, fl.Field().String())
}

// validateBookingStatus checks if booking status is valid
func validateBookingStatus(fl validator.FieldLevel) bool {
	validStatuses := []string{"pending", "confirmed", "in_progress", "completed", "cancelled"}
	return contains(validStatuses, fl.Field().String())
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// ValidateCoordinates validates latitude and longitude
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90.0 || latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", latitude)
	}
	if longitude < -180.0 || longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", longitude)
	}
	return nil
}

// ValidateClockTime parses an HH:MM wall-clock string into minutes since
// midnight.
func ValidateClockTime(value string) (int, error) {
	if !clockRegex.MatchString(value) {
		return 0, fmt.Errorf("time must be in HH:MM form, got: %q", value)
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidateAmount validates monetary amount
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount cannot be negative: %f", amount)
	}
	if amount > 100000 {
		return fmt.Errorf("amount exceeds maximum allowed: %f", amount)
	}
	return nil
}
