package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors приводит ошибки валидатора к читаемому сообщению
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
		case "lt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть меньше "+e.Param())
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" имеет недопустимое значение")
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
		}
	}
	return errors.New(strings.Join(errorMessages, "; "))
}
