package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/timex"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "BIOKEEPER_"

var durationType = reflect.TypeOf(timex.Duration{})

// parseEnv overlays BIOKEEPER_<KEY> variables onto config, where KEY is the
// upper-cased file key (BIOKEEPER_ENCRYPTION_KEY, BIOKEEPER_REDIS_DB, ...).
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	fc := toFile(config)
	v := reflect.ValueOf(fc).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		name := EnvPrefix + strings.ToUpper(tag)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}

	fc.apply(config)
	return nil
}

func setField(f reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	if f.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(timex.Duration{Duration: d}))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float64:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}
