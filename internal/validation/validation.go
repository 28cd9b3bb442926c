package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

const (
	maxUsername  = 64
	maxEmail     = 120
	maxName      = 100
	maxStudentID = 20
	minPassword  = 6
	maxDish      = 200
	maxNote      = 500
)

var maxPrice = decimal.NewFromInt(50)

// ValidationError names the offending field and says what is wrong with it.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RegistrationInput is what a student submits to open an account.
type RegistrationInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	StudentID       string `json:"student_id"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ProfileInput carries the editable part of a user profile.
type ProfileInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	StudentID string `json:"student_id"`
}

// MenuInput is the manager's menu form.  Fruit and Dessert may be empty.
// A nil Price means the default price and a nil Available means
// "available".
type MenuInput struct {
	Date        string           `json:"date"`
	FirstCourse string           `json:"first_course"`
	MainCourse  string           `json:"main_course"`
	SideDish    string           `json:"side_dish"`
	Fruit       string           `json:"fruit"`
	Dessert     string           `json:"dessert"`
	Price       *decimal.Decimal `json:"price"`
	Available   *bool            `json:"available"`
}

// ReservationInput is the booking form.
type ReservationInput struct {
	PickupSlot string `json:"pickup_slot"`
	Note       string `json:"note"`
}

// NormalizeEmail lower-cases and trims an e-mail address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ValidateRegistration trims the input in place and checks it.
func ValidateRegistration(in *RegistrationInput) error {
	p := ProfileInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		StudentID: in.StudentID,
	}
	if err := ValidateProfile(&p); err != nil {
		return err
	}
	in.Username, in.Email, in.FirstName, in.LastName, in.StudentID =
		p.Username, p.Email, p.FirstName, p.LastName, p.StudentID

	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if in.Password != in.ConfirmPassword {
		return ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return nil
}

// ValidateProfile trims the input in place and checks it.
func ValidateProfile(in *ProfileInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.StudentID = strings.TrimSpace(in.StudentID)

	if err := required("username", in.Username, maxUsername); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := required("first_name", in.FirstName, maxName); err != nil {
		return err
	}
	if err := required("last_name", in.LastName, maxName); err != nil {
		return err
	}
	return required("student_id", in.StudentID, maxStudentID)
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPassword {
		return ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minPassword),
		}
	}
	return nil
}

// ValidateMenu trims the input in place and checks it.  The date must
// parse as YYYY-MM-DD; whether it lies in the past is a business rule
// checked by the catalog.
func ValidateMenu(in *MenuInput) error {
	in.Date = strings.TrimSpace(in.Date)
	in.FirstCourse = strings.TrimSpace(in.FirstCourse)
	in.MainCourse = strings.TrimSpace(in.MainCourse)
	in.SideDish = strings.TrimSpace(in.SideDish)
	in.Fruit = strings.TrimSpace(in.Fruit)
	in.Dessert = strings.TrimSpace(in.Dessert)

	if in.Date == "" {
		return ValidationError{Field: "date", Message: "date is required"}
	}
	if _, err := model.ParseDate(in.Date); err != nil {
		return ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	if err := required("first_course", in.FirstCourse, maxDish); err != nil {
		return err
	}
	if err := required("main_course", in.MainCourse, maxDish); err != nil {
		return err
	}
	if err := required("side_dish", in.SideDish, maxDish); err != nil {
		return err
	}
	if err := optional("fruit", in.Fruit, maxDish); err != nil {
		return err
	}
	if err := optional("dessert", in.Dessert, maxDish); err != nil {
		return err
	}
	if in.Price != nil && (in.Price.IsNegative() || in.Price.GreaterThan(maxPrice)) {
		return ValidationError{Field: "price", Message: "price must be between 0 and 50"}
	}
	return nil
}

// ValidateReservation checks the booking form against the configured
// pickup slots.
func ValidateReservation(in *ReservationInput, slots []string) error {
	in.PickupSlot = strings.TrimSpace(in.PickupSlot)
	in.Note = strings.TrimSpace(in.Note)

	if in.PickupSlot == "" {
		return ValidationError{Field: "pickup_slot", Message: "pickup slot is required"}
	}
	known := false
	for _, s := range slots {
		if s == in.PickupSlot {
			known = true
			break
		}
	}
	if !known {
		return ValidationError{Field: "pickup_slot", Message: "unknown pickup slot"}
	}
	return optional("note", in.Note, maxNote)
}

func validateEmail(email string) error {
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > maxEmail {
		return ValidationError{Field: "email", Message: fmt.Sprintf("email must be at most %d characters", maxEmail)}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return ValidationError{Field: "email", Message: "invalid email address"}
	}
	return nil
}

func required(field, v string, max int) error {
	if v == "" {
		return ValidationError{Field: field, Message: strings.ReplaceAll(field, "_", " ") + " is required"}
	}
	return optional(field, v, max)
}

func optional(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at most %d characters", strings.ReplaceAll(field, "_", " "), max),
		}
	}
	return nil
}
