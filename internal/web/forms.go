package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/2beens/travelblog/internal/uploads"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their form name
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

type RegisterForm struct {
	Name     string `form:"name" validate:"required,max=100"`
	Email    string `form:"email" validate:"required,email,max=100"`
	Password string `form:"password,raw" validate:"required,max=200"`
}

type LoginForm struct {
	Email    string `form:"email" validate:"required,max=100"`
	Password string `form:"password,raw" validate:"required"`
}

type CommentForm struct {
	Text string `form:"comment_text" validate:"required"`
}

type PostForm struct {
	Title       string `form:"title" validate:"required,max=250"`
	Subtitle    string `form:"subtitle" validate:"required,max=250"`
	CountryCode string `form:"country" validate:"max=5"`
	Body        string `form:"body" validate:"required"`
}

type SearchForm struct {
	Searched string `form:"searched" validate:"required,max=250"`
}

type SortForm struct {
	SortType string `form:"sort_type" validate:"required,oneof=asc desc"`
}

type ContactForm struct {
	Name    string `form:"name" validate:"required,max=100"`
	Email   string `form:"email" validate:"required,email"`
	Phone   string `form:"phone" validate:"max=50"`
	Message string `form:"message" validate:"required,max=5000"`
}

// ValidationErrors maps a form field name to a user facing message.
type ValidationErrors map[string]string

func (ve ValidationErrors) Error() string {
	fields := make([]string, 0, len(ve))
	for field := range ve {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	sb.WriteString("invalid form:")
	for _, field := range fields {
		sb.WriteString(fmt.Sprintf(" %s: %s;", field, ve[field]))
	}
	return sb.String()
}

// DecodeForm fills the string fields of the form struct pointed to by dst from the
// request form values, using the `form` tag names. Values are trimmed unless the
// tag has the raw option. The form is then validated.
func DecodeForm(r *http.Request, dst any) ValidationErrors {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("decode form: expected pointer to struct, got %T", dst))
	}

	elem := v.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Type().Field(i)
		name, opts, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" || name == "-" || field.Type.Kind() != reflect.String {
			continue
		}

		value := r.PostFormValue(name)
		if opts != "raw" {
			value = strings.TrimSpace(value)
		}
		elem.Field(i).SetString(value)
	}

	return Validate(dst)
}

// Validate returns nil when the form is valid.
func Validate(form any) ValidationErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{"form": err.Error()}
	}

	ve := make(ValidationErrors, len(fieldErrors))
	for _, fe := range fieldErrors {
		ve[fe.Field()] = validationMessage(fe)
	}
	return ve
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "max":
		return fmt.Sprintf("Must be at most %s characters long.", fe.Param())
	case "oneof":
		return "Invalid choice."
	default:
		return "Invalid value."
	}
}

// FormImage returns the optional uploaded image from the multipart form field.
// A missing file is not an error; a file with a not allowed extension is.
// The caller closes the returned file.
func FormImage(r *http.Request, field string) (*uploads.File, ValidationErrors) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, ValidationErrors{field: "Cannot read uploaded file."}
	}

	if header.Filename == "" || header.Size == 0 {
		closeFormFile(file)
		return nil, nil
	}

	if !uploads.AllowedImageExtension(header.Filename) {
		closeFormFile(file)
		return nil, ValidationErrors{field: "Images only!"}
	}

	return &uploads.File{
		Name:    header.Filename,
		Content: file,
	}, nil
}

func closeFormFile(file multipart.File) {
	if err := file.Close(); err != nil {
		log.Warnf("close form file: %s", err)
	}
}
