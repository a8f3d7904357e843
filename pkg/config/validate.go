package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// LogPrefix tags every diagnostic logged about the embed configuration.
const LogPrefix = "[EldramaticWebchat]"

// FieldError is one failed constraint, addressed by its configuration path
// (for example "apiConfig.baseUrl").
type FieldError struct {
	Path  string
	Rule  string
	Param string
	Value interface{}
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: failed %s=%s", f.Path, f.Rule, f.Param)
	}
	return fmt.Sprintf("%s: failed %s", f.Path, f.Rule)
}

// ValidationError is returned when the configuration is not fit to mount a widget.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// Has reports whether path failed validation.
func (e *ValidationError) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate runs the boundary schema check. It returns a *ValidationError
// listing every failing field.
func (c AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		// Namespace is "AppConfig.apiConfig.baseUrl"
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		out.Fields = append(out.Fields, FieldError{
			Path:  path,
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
