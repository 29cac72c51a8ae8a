package stockwise

import "github.com/xraph/stockwise/id"

// ID is the storage identifier type for all Stockwise records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
