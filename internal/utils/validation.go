package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a config struct using its `validate` tags.
// All failures are combined into one error, named by their mapstructure
// key so they match what the user wrote in the config file.
func ValidateStruct(s interface{}) error {
	if s == nil {
		return fmt.Errorf("invalid validation: input is nil")
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation: %v", err)
	}

	structType := reflect.TypeOf(s)
	for structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	var errMsgs []string
	for _, fieldErr := range err.(validator.ValidationErrors) {
		fieldName := fieldErr.Field()
		if field, ok := structType.FieldByName(fieldErr.StructField()); ok {
			if tag := field.Tag.Get("mapstructure"); tag != "" {
				fieldName = tag
			}
		}
		errMsgs = append(errMsgs, fmt.Sprintf("%s is required or invalid. %v", fieldName, fieldErr.Error()))
	}

	return errors.New(strings.Join(errMsgs, ", "))
}
