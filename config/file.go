package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// keyAliases are shorthand keys accepted in config files.
var keyAliases = map[string]string{
	"p2p":    "p2p.enabled",
	"rpc":    "rpc.enabled",
	"wallet": "wallet.enabled",
	"mine":   "mining.enabled",
}

// sectionTitles heads each key group in the default config file.
var sectionTitles = map[string]string{
	"p2p":     "P2P Network",
	"rpc":     "RPC Server",
	"wallet":  "Wallet",
	"mining":  "Mining",
	"mempool": "Pending pool",
	"storage": "UTXO index (memory or badger; badger runs in in-memory mode)",
	"log":     "Logging",
}

// confField is one settable Config field and its key.
type confField struct {
	key   string
	value reflect.Value
}

// confFields lists the conf-tagged fields of cfg in declaration order.
func confFields(cfg *Config) []confField {
	var fields []confField
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := v.Field(i)
			if key := t.Field(i).Tag.Get("conf"); key != "" {
				fields = append(fields, confField{key: key, value: f})
				continue
			}
			if f.Kind() == reflect.Struct {
				walk(f)
			}
		}
	}
	walk(reflect.ValueOf(cfg).Elem())
	return fields
}

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return values, scanner.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ApplyFileConfig applies file configuration to a Config struct. Unknown
// keys are ignored.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	fields := make(map[string]reflect.Value)
	for _, f := range confFields(cfg) {
		fields[f.key] = f.value
	}

	for key, value := range values {
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		field, ok := fields[key]
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	return nil
}

// setField parses raw into the field's kind.
func setField(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		v.SetBool(parseBool(raw))
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Uint32:
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Slice:
		v.Set(reflect.ValueOf(parseStringList(raw)))
	default:
		return fmt.Errorf("unsupported field kind %s", v.Kind())
	}
	return nil
}

func formatField(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Slice:
		return strings.Join(v.Interface().([]string), ",")
	default:
		return fmt.Sprint(v.Interface())
	}
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes the defaults of the given network as a
// config file. Empty settings and the data directory are written
// commented out.
func WriteDefaultConfig(path string, network NetworkType) error {
	var b strings.Builder
	b.WriteString(`# Klingnet Ledger Node Configuration
#
# This file contains NODE settings only. The mining difficulty and the
# initial allocations come from the genesis configuration.
`)

	section := ""
	for _, f := range confFields(Default(network)) {
		group, _, dotted := strings.Cut(f.key, ".")
		if dotted && group != section {
			section = group
			fmt.Fprintf(&b, "\n# %s\n# %s\n", strings.Repeat("=", 76), sectionTitles[group])
			fmt.Fprintf(&b, "# %s\n\n", strings.Repeat("=", 76))
		} else if !dotted {
			b.WriteString("\n")
		}

		value := formatField(f.value)
		if value == "" || f.key == "datadir" {
			fmt.Fprintf(&b, "# %s = %s\n", f.key, value)
		} else {
			fmt.Fprintf(&b, "%s = %s\n", f.key, value)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}
