// Package form holds operator input for mutations and its local validation.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/billing-console/internal/domain/failure"
	"github.com/garyjia/billing-console/pkg/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages line up with remote field errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "emailshape", func(fl validator.FieldLevel) bool {
		return utils.IsEmailShape(fl.Field().String())
	})
	mustRegister(v, "taxid", func(fl validator.FieldLevel) bool {
		return utils.ValidateTaxID(fl.Field().String()) == nil
	})

	v.RegisterStructValidation(projectDates, ProjectForm{})
	v.RegisterStructValidation(invoiceDates, InvoiceForm{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func projectDates(sl validator.StructLevel) {
	p := sl.Current().Interface().(ProjectForm)
	if p.StartDate.IsSet() && p.ExpectedEndDate.IsSet() && p.ExpectedEndDate.Before(p.StartDate) {
		sl.ReportError(p.ExpectedEndDate, "expected_end_date", "ExpectedEndDate", "datefrom", "the start date")
	}
}

func invoiceDates(sl validator.StructLevel) {
	inv := sl.Current().Interface().(InvoiceForm)
	if inv.IssueDate.IsSet() && inv.DueDate.IsSet() && inv.DueDate.Before(inv.IssueDate) {
		sl.ReportError(inv.DueDate, "due_date", "DueDate", "datefrom", "the issue date")
	}
}

// check runs the struct validator and converts its report into field errors
func check(s interface{}) *failure.Failure {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fe := failure.NewFieldErrors()
		fe.Add(failure.DetailField, err.Error())
		return failure.Validation(fe)
	}

	fe := failure.NewFieldErrors()
	for _, fieldErr := range verrs {
		fe.Add(fieldPath(fieldErr.Namespace()), message(fieldErr))
	}
	return failure.Validation(fe)
}

// fieldPath drops the struct name prefix: "InvoiceForm.items[0].quantity" -> "items[0].quantity"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Add at least %s line item.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "emailshape":
		return "Enter a valid email address."
	case "taxid":
		return fmt.Sprintf("Must have at least %d characters.", utils.MinTaxIDLength)
	case "datefrom":
		return fmt.Sprintf("Must not be before %s.", fe.Param())
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
