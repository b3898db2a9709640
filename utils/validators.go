package utils

import (
	"timearchitect/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

// InitValidator registers the domain validators on both the standalone
// validator and gin's binding engine.
func InitValidator() {
	Validate = validator.New()
	RegisterCustomValidators(Validate)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterCustomValidators(v)
	}
}

func RegisterCustomValidators(v *validator.Validate) {
	v.RegisterValidation("breaktype", ValidateBreakTypeRule)
	v.RegisterValidation("activitytype", ValidateActivityTypeRule)
}

func ValidateBreakTypeRule(fl validator.FieldLevel) bool {
	return model.BreakType(fl.Field().String()).Valid()
}

func ValidateActivityTypeRule(fl validator.FieldLevel) bool {
	return IsReportableActivity(model.ActivityType(fl.Field().String()))
}

func IsReportableActivity(t model.ActivityType) bool {
	switch t {
	case model.ActivityKeyboard,
		model.ActivityMouse,
		model.ActivityWindowSwitch,
		model.ActivityInactivity,
		model.ActivityPendingValidation,
		model.ActivityAutoClockOut:
		return true
	}
	return false
}
