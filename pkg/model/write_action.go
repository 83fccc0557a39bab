package model

import "fmt"

// WriteAction classifies the semantic effect of a write for notifications.
// The integer values cross node boundaries and must never change.
type WriteAction int

const (
	WriteActionCreate  WriteAction = 1
	WriteActionDelete  WriteAction = 2
	WriteActionReplace WriteAction = 3
	WriteActionUpdate  WriteAction = 4
	WriteActionUpsert  WriteAction = 5
	// WriteActionWrite is create-or-replace.
	WriteActionWrite WriteAction = 6
)

// String returns the lower-case name of the write action.
func (a WriteAction) String() string {
	switch a {
	case WriteActionCreate:
		return "create"
	case WriteActionDelete:
		return "delete"
	case WriteActionReplace:
		return "replace"
	case WriteActionUpdate:
		return "update"
	case WriteActionUpsert:
		return "upsert"
	case WriteActionWrite:
		return "write"
	default:
		return fmt.Sprintf("WriteAction(%d)", int(a))
	}
}

// IsValid reports whether a is one of the defined write actions.
func (a WriteAction) IsValid() bool {
	return a >= WriteActionCreate && a <= WriteActionWrite
}

// ParseWriteAction converts a wire integer back into a WriteAction.
func ParseWriteAction(v int) (WriteAction, error) {
	a := WriteAction(v)
	if !a.IsValid() {
		return 0, fmt.Errorf("unknown write action %d", v)
	}
	return a, nil
}
