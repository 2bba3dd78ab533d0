package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/lifeline-health/donor-api/internal/model"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

// New returns a validator reading `binding` tags, the same tags gin uses.
func New() Validator {
	v := validator.New()
	v.SetTagName("binding")
	registerCustom(v)
	return &structValidator{v: v}
}

func (s *structValidator) Validate(obj interface{}) error {
	return s.v.Struct(obj)
}

// RegisterGin installs the custom tags into gin's default binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	registerCustom(v)
	return nil
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
		return model.ValidBloodGroup(fl.Field().String())
	})
}

// Describe turns validation errors into one readable message.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "bloodgroup":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(model.BloodGroups, ", ")))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
