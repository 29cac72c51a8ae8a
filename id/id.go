// Package id defines TypeID-based identity types for Stockwise records.
//
// Storage identifiers use a single ID struct with a prefix naming the
// collection the record lives in. IDs are K-sortable (UUIDv7-based) and
// URL-safe in the format "prefix_suffix". Human-assigned item numbers
// ("I007") and user names are not IDs; they live on the models themselves.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for all Stockwise record types.
const (
	PrefixItem        Prefix = "item" // Inventory item document
	PrefixReceipt     Prefix = "rcpt" // Purchase-order receipt
	PrefixUsage       Prefix = "use"  // Consumption record
	PrefixRequirement Prefix = "req"  // Forward-looking requirement
	PrefixUser        Prefix = "usr"  // User account
)

// ID is the storage identifier of a Stockwise record.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "rcpt_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another record type.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// Aliases documenting which collection an ID points into.
type (
	ItemID        = ID
	ReceiptID     = ID
	UsageID       = ID
	RequirementID = ID
	UserID        = ID
)

func NewItemID() ID        { return New(PrefixItem) }
func NewReceiptID() ID     { return New(PrefixReceipt) }
func NewUsageID() ID       { return New(PrefixUsage) }
func NewRequirementID() ID { return New(PrefixRequirement) }
func NewUserID() ID        { return New(PrefixUser) }

func ParseItemID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixItem) }
func ParseReceiptID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixReceipt) }
func ParseUsageID(s string) (ID, error)       { return ParseWithPrefix(s, PrefixUsage) }
func ParseRequirementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRequirement) }
func ParseUserID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixUser) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// Strings renders a slice of IDs, dropping Nil entries.
func Strings(ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, i := range ids {
		if !i.IsNil() {
			out = append(out, i.String())
		}
	}
	return out
}

// ParseAll parses every string in ss.
func ParseAll(ss []string) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		parsed, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
