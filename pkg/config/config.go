// Package config loads YAML or JSON configuration files with environment
// variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a file into target, detecting the format by
// extension. Unknown extensions default to YAML.
func Load(path string, target interface{}) error {
	if strings.HasSuffix(path, ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return nil
}

// LoadWithEnv loads configuration from a file and then applies environment
// variable overrides named PREFIX_FIELD_SUBFIELD.
func LoadWithEnv(path, prefix string, target interface{}) error {
	if err := Load(path, target); err != nil {
		return err
	}
	return ApplyEnvOverrides(prefix, target)
}

// ApplyEnvOverrides overrides struct fields from environment variables.
// Field paths map to variable names by upper-casing and joining with
// underscores: with prefix "APP", the field Cluster.URL reads APP_CLUSTER_URL.
// Supported field kinds: string, int, bool.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = "APP"
	}

	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct, got %T", target)
	}
	return applyEnv(prefix, val.Elem())
}

func applyEnv(prefix string, val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := val.Field(i)
		name := prefix + "_" + strings.ToUpper(field.Name)

		if fv.Kind() == reflect.Struct {
			if err := applyEnv(name, fv); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("env %s: %w", name, err)
			}
			fv.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("env %s: %w", name, err)
			}
			fv.SetBool(b)
		default:
			// Other kinds are file-only.
		}
	}
	return nil
}
