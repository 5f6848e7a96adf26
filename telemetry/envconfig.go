package telemetry

import (
	"os"
	"reflect"
	"strconv"
	"time"
)

// durationType is reflect.TypeOf(time.Duration(0)), used to special-case
// duration fields since their underlying kind (int64) would otherwise
// parse as a plain integer count of nanoseconds.
var durationType = reflect.TypeOf(time.Duration(0))

// LoadEnvDefaults applies environment-variable and tag-declared-default
// overrides onto the exported fields of the struct pointed to by cfg,
// mirroring core.Config's three-layer priority (defaults, set by the
// struct literal before this call; environment variables, applied here;
// functional options, applied by the caller afterward). Fields are
// annotated the same way Config is annotated elsewhere in this module:
//
//	MaxAttempts int `env:"WPR_RETRY_MAX_ATTEMPTS" default:"3"`
//
// An `env` tag whose variable is set in the environment always wins. A
// `default` tag is applied only when the field is still its zero value
// and no environment variable was set - a defensive fallback for callers
// that construct the struct literal without every field, since the
// primary default path is still the literal in each package's
// DefaultXConfig constructor. cfg must be a non-nil pointer to a struct;
// LoadEnvDefaults is a no-op otherwise. Unexported fields, and fields
// without an `env` tag, are left untouched. Supported field kinds:
// string, bool, every signed/unsigned integer width, float32/float64,
// and time.Duration.
func LoadEnvDefaults(cfg any) {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return
	}
	elem := v.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		envKey, hasEnv := field.Tag.Lookup("env")
		if !hasEnv {
			continue
		}

		fieldVal := elem.Field(i)
		if raw, ok := os.LookupEnv(envKey); ok {
			setFieldFromString(fieldVal, raw)
			continue
		}
		if def, ok := field.Tag.Lookup("default"); ok && fieldVal.IsZero() {
			setFieldFromString(fieldVal, def)
		}
	}
}

func setFieldFromString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(raw); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			field.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(f)
		}
	}
}
