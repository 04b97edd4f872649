package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
)

// Minimal internal validator to avoid external dependency. Supports:
// - required
// - usernameok (letters, numbers, underscore, hyphen, 2-50 chars)
// - pwdmin (min length 6)
// - eqfield=OtherField (field equals another field)

var reUsernameOK = regexp.MustCompile(`^[A-Za-z0-9_\-]{2,50}$`)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		value := v.Field(i)
		for _, rule := range strings.Split(tag, ",") {
			rule = strings.TrimSpace(rule)
			switch {
			case rule == "required":
				if isEmptyValue(value) {
					return errors.New(field.Name + " is required")
				}
			case rule == "usernameok":
				if s, ok := value.Interface().(string); ok && s != "" && !reUsernameOK.MatchString(s) {
					return errors.New(field.Name + " contains invalid characters")
				}
			case rule == "pwdmin":
				if s, ok := value.Interface().(string); ok && len(s) < 6 {
					return errors.New(field.Name + " must be at least 6 characters")
				}
			case strings.HasPrefix(rule, "eqfield="):
				other := strings.TrimPrefix(rule, "eqfield=")
				otherVal := v.FieldByName(other)
				if !otherVal.IsValid() || value.Interface() != otherVal.Interface() {
					return errors.New(field.Name + " does not match " + other)
				}
			}
		}
	}
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	}
	return false
}
