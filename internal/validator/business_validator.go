package validator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nexus-academy/catalog-service/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateVar validates a single value against a tag expression
func (bv *BusinessValidator) ValidateVar(field string, value interface{}, tag string) ValidationErrors {
	err := bv.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	errs := ToValidationErrors(err)
	for i := range errs {
		errs[i].Field = field
	}
	return errs
}

func (bv *BusinessValidator) ValidateProgramCreate(req *ProgramCreateRequest) ValidationErrors {
	return bv.Validate(req)
}

func (bv *BusinessValidator) ValidateProgramUpdate(req *ProgramUpdateRequest) ValidationErrors {
	return bv.Validate(req)
}

// ValidateLectureCreate checks tags plus the cohort rule of master lectures
func (bv *BusinessValidator) ValidateLectureCreate(req *LectureCreateRequest) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.ValidateLectureCohort(req.Level, req.CohortNumber)...)
	return errors
}

func (bv *BusinessValidator) ValidateLectureUpdate(req *LectureUpdateRequest, existing *models.Lecture) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)

	level := existing.Level
	if req.Level != nil {
		level = *req.Level
	}
	cohort := existing.CohortNumber
	if req.CohortNumber != nil {
		cohort = req.CohortNumber
	}
	errors = append(errors, bv.ValidateLectureCohort(level, cohort)...)
	return errors
}

// ValidateLectureCohort requires a cohort number on master lectures. Other
// levels ignore it; the service clears it before saving.
func (bv *BusinessValidator) ValidateLectureCohort(level models.LectureLevel, cohort *string) ValidationErrors {
	if level != models.LevelMaster {
		return nil
	}
	if cohort == nil || strings.TrimSpace(*cohort) == "" {
		return ValidationErrors{{
			Field:   "cohort_number",
			Message: "is required for master lectures",
			Rule:    "business_logic",
		}}
	}
	return nil
}

func (bv *BusinessValidator) ValidateMembershipUpdate(req *UserMembershipRequest) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)
	if req.Role == nil && req.MasterCohort == nil && req.IsAdmin == nil {
		errors = append(errors, ValidationError{
			Field:   "request",
			Message: "at least one of role, master_cohort or is_admin is required",
			Rule:    "business_logic",
		})
	}
	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("program_slug", func(fl validator.FieldLevel) bool {
		slug := fl.Field().String()
		return len(slug) <= 120 && slugPattern.MatchString(slug)
	})

	bv.validate.RegisterValidation("program_type", func(fl validator.FieldLevel) bool {
		return models.ProgramType(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("lecture_level", func(fl validator.FieldLevel) bool {
		return models.LectureLevel(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("membership_role", func(fl validator.FieldLevel) bool {
		return models.MembershipRole(fl.Field().String()).IsValid()
	})

	// empty is allowed here; ValidateLectureCohort decides whether it is required
	bv.validate.RegisterValidation("cohort_number", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" {
			return true
		}
		n, err := strconv.Atoi(raw)
		return err == nil && n > 0 && n < 1000
	})
}
