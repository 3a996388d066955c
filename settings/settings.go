// Package settings is the registry of user-tunable TPMPass settings.
//
// Every setting is either a boolean or an integer. Values are carried as a
// tagged Value rather than through reflection, and are stored in a viper
// instance so that the config file, TPMPASS_* environment variables and
// command line flags all apply.
package settings

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

// Kind is the type tag of a Value.
type Kind int

const (
	KindBool Kind = iota
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a setting value: exactly one of a bool or an int, selected by Kind.
type Value struct {
	kind Kind
	b    bool
	i    int
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int) Value   { return Value{kind: KindInt, i: i} }

func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int, bool) { return v.i, v.kind == KindInt }

func (v Value) String() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return strconv.Itoa(v.i)
}

func (v Value) raw() interface{} {
	if v.kind == KindBool {
		return v.b
	}
	return v.i
}

// Parse reads s as a value of kind.
func Parse(kind Kind, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a boolean", tperrors.ErrArgument, s)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.Atoi(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an integer", tperrors.ErrArgument, s)
		}
		return Int(i), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown setting kind %v", tperrors.ErrArgument, kind)
	}
}

// Setting names.
const (
	ClipboardEnabled    = "clipboard.enabled"
	ClipboardClearAfter = "clipboard.clear_after_seconds"
	ScanParentProcess   = "scan.parent_process"
	ScanTimeout         = "scan.timeout_seconds"
	MemoryLockAll       = "memory.lock_all"
	AuditEnabled        = "audit.enabled"
	KeyringEnabled      = "keyring.enabled"
)

// Definition describes one setting.
type Definition struct {
	Name        string
	Default     Value
	Description string
	// Min is the smallest accepted integer. Ignored for booleans.
	Min int
}

func (d Definition) validate(v Value) error {
	if v.kind != d.Default.kind {
		return fmt.Errorf("%w: %s expects a %s, got a %s", tperrors.ErrArgument, d.Name, d.Default.kind, v.kind)
	}
	if v.kind == KindInt && v.i < d.Min {
		return fmt.Errorf("%w: %s must be at least %d", tperrors.ErrArgument, d.Name, d.Min)
	}
	return nil
}

var definitions = []Definition{
	{Name: ClipboardEnabled, Default: Bool(true), Description: "allow decrypt --copy"},
	{Name: ClipboardClearAfter, Default: Int(20), Description: "seconds before a copied secret is cleared, 0 keeps it"},
	{Name: ScanParentProcess, Default: Bool(false), Description: "scan the calling process before decrypting"},
	{Name: ScanTimeout, Default: Int(60), Min: 1, Description: "seconds the scanner may run"},
	{Name: MemoryLockAll, Default: Bool(false), Description: "lock all process memory (mlockall)"},
	{Name: AuditEnabled, Default: Bool(true), Description: "write the audit trail to the data directory"},
	{Name: KeyringEnabled, Default: Bool(false), Description: "keep the profile secret in the OS keyring"},
}

// Definitions returns every known setting, sorted by name.
func Definitions() []Definition {
	out := append([]Definition(nil), definitions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds the definition of name.
func Lookup(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Entry is a setting together with its effective value.
type Entry struct {
	Definition
	Value Value
}

// Settings reads and writes the registry through a viper instance.
type Settings struct {
	v *viper.Viper
}

// New registers every default on v. Pass viper.GetViper() to share the
// CLI's configuration.
func New(v *viper.Viper) *Settings {
	for _, d := range definitions {
		v.SetDefault(d.Name, d.Default.raw())
	}
	return &Settings{v: v}
}

// Get returns the effective value of name.
func (s *Settings) Get(name string) (Value, error) {
	d, ok := Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown setting %s", tperrors.ErrArgument, name)
	}
	var val Value
	if d.Default.kind == KindBool {
		val = Bool(s.v.GetBool(name))
	} else {
		val = Int(s.v.GetInt(name))
	}
	if err := d.validate(val); err != nil {
		return d.Default, err
	}
	return val, nil
}

// GetBool returns the value of a boolean setting, or its default if the
// configured value is unusable.
func (s *Settings) GetBool(name string) bool {
	val, _ := s.Get(name)
	b, _ := val.AsBool()
	return b
}

// GetInt returns the value of an integer setting, or its default if the
// configured value is unusable.
func (s *Settings) GetInt(name string) int {
	val, _ := s.Get(name)
	i, _ := val.AsInt()
	return i
}

// Set parses raw for name and applies it in memory. Call Save to persist.
func (s *Settings) Set(name, raw string) (Value, error) {
	d, ok := Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown setting %s", tperrors.ErrArgument, name)
	}
	val, err := Parse(d.Default.kind, raw)
	if err != nil {
		return Value{}, err
	}
	if err = d.validate(val); err != nil {
		return Value{}, err
	}
	s.v.Set(name, val.raw())
	return val, nil
}

// All returns every setting with its effective value.
func (s *Settings) All() []Entry {
	defs := Definitions()
	out := make([]Entry, 0, len(defs))
	for _, d := range defs {
		val, err := s.Get(d.Name)
		if err != nil {
			val = d.Default
		}
		out = append(out, Entry{Definition: d, Value: val})
	}
	return out
}

// Save writes the configuration to path as YAML with mode 0600.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), misc.DirPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	s.v.SetConfigType("yaml")
	if err := s.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, misc.FilePermissions)
}

// ExportYAML writes the effective settings as nested YAML.
func (s *Settings) ExportYAML(w io.Writer) error {
	tree := make(map[string]interface{})
	for _, e := range s.All() {
		parts := strings.Split(e.Name, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = e.Value.raw()
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}
