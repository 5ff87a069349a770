package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonTagName)

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuizCreate runs tag validation plus cross-field rules.
func (bv *BusinessValidator) ValidateQuizCreate(req *CreateQuizRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if !req.EndDate.After(req.StartDate) {
		errors = append(errors, ValidationError{
			Field:   "end_date",
			Message: "must be after start_date",
			Value:   req.EndDate,
			Rule:    "business_logic",
		})
	}
	if req.Settings.RequirePassword && req.Settings.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "settings.password",
			Message: "is required when require_password is set",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateQuizUpdate validates a patch against the stored quiz.
func (bv *BusinessValidator) ValidateQuizUpdate(req *UpdateQuizRequest, existing *models.Quiz) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	start, end := existing.StartDate, existing.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if !end.After(start) {
		errors = append(errors, ValidationError{
			Field:   "end_date",
			Message: "must be after start_date",
			Value:   end,
			Rule:    "business_logic",
		})
	}

	return errors
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("quiz_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= models.MinQuizDuration && duration <= models.MaxQuizDuration
	})

	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= models.MinMaxAttempts && attempts <= models.MaxMaxAttempts
	})

	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		return models.DifficultyLevel(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("show_results", func(fl validator.FieldLevel) bool {
		switch models.ShowResultsPolicy(fl.Field().String()) {
		case models.ShowResultsImmediately, models.ShowResultsAfterEndDate, models.ShowResultsNever:
			return true
		}
		return false
	})
}

// String is used in log lines.
func (e ValidationError) String() string {
	return fmt.Sprintf("%s (%s): %s", e.Field, e.Rule, e.Message)
}
