package config

import (
	"fmt"
	"reflect"
	"strings"
)

// KeyValue represents a config key and its display value
type KeyValue struct {
	Key   string
	Value string
}

// sensitiveKeys is populated at init time by scanning Config struct tags
// for `sensitive:"true"`.
var sensitiveKeys map[string]bool

func init() {
	sensitiveKeys = make(map[string]bool)
	collectSensitiveKeys(reflect.TypeOf(Config{}), "", sensitiveKeys)
}

// getTOMLKey extracts the TOML key name from a struct field's tag.
// Returns "" if the field has no toml tag.
func getTOMLKey(field reflect.StructField) string {
	tag := field.Tag.Get("toml")
	if tag == "" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

func collectSensitiveKeys(t reflect.Type, prefix string, out map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tagKey := getTOMLKey(field)
		if tagKey == "" {
			continue
		}
		fullKey := joinKey(prefix, tagKey)
		if field.Type.Kind() == reflect.Struct {
			collectSensitiveKeys(field.Type, fullKey, out)
			continue
		}
		if field.Tag.Get("sensitive") == "true" {
			out[fullKey] = true
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// IsSensitiveKey returns true if the key holds a secret that should be masked.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[key]
}

// MaskValue returns a masked version of a sensitive value, showing only the last 4 chars.
func MaskValue(val string) string {
	if val == "" {
		return ""
	}
	if len(val) <= 4 {
		return "****"
	}
	return "****" + val[len(val)-4:]
}

// ListValues flattens cfg into dotted TOML keys in declaration order.
// Sensitive values are masked.
func ListValues(cfg *Config) []KeyValue {
	var out []KeyValue
	listFields(reflect.ValueOf(cfg).Elem(), "", &out)
	return out
}

func listFields(v reflect.Value, prefix string, out *[]KeyValue) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tagKey := getTOMLKey(field)
		if tagKey == "" {
			continue
		}
		fullKey := joinKey(prefix, tagKey)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			listFields(fv, fullKey, out)
			continue
		}
		val := fmt.Sprint(fv.Interface())
		if IsSensitiveKey(fullKey) {
			val = MaskValue(val)
		}
		*out = append(*out, KeyValue{Key: fullKey, Value: val})
	}
}
