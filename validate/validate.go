package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var validate *validator.Validate

var translator ut.Translator

func init() {

	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)
}

// Fields returns one translated message per failing field, keyed by the
// lowercased field path. Nil means the value is valid.
func Fields(val any) map[string]string {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok || len(verrors) < 1 {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrors))
	for _, ve := range verrors {
		fields[strings.ToLower(ve.Field())] = ve.Translate(translator)
	}
	return fields
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("ID is not in its proper form")
	}
	return nil
}
