package database

import "fmt"

// IssueKind classifies a problem found while validating the chain.
type IssueKind string

// The set of issue kinds the chain walk can report.
const (
	IssueTamperedBlock IssueKind = "tampered_block"
	IssueBrokenLink    IssueKind = "broken_link"
)

// Issue records a single integrity problem found at a specific block. For a
// broken link both the declared and actual parent hash are captured.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	Number     uint64    `json:"number"`
	Hash       string    `json:"hash"`
	WantParent string    `json:"want_parent,omitempty"`
	GotParent  string    `json:"got_parent,omitempty"`
}

// String implements the fmt.Stringer interface.
func (i Issue) String() string {
	switch i.Kind {
	case IssueBrokenLink:
		return fmt.Sprintf("blk[%d]: broken link, declared parent %s, actual parent %s", i.Number, i.GotParent, i.WantParent)
	default:
		return fmt.Sprintf("blk[%d]: block hash does not match block contents", i.Number)
	}
}

// =============================================================================

// AppendError wraps the first validation issue found while checking the
// chain with the candidate block applied. The append is rejected and the
// chain is left unchanged.
type AppendError struct {
	Issue Issue
}

// Error implements the error interface.
func (ae *AppendError) Error() string {
	return fmt.Sprintf("append rejected: %s", ae.Issue)
}
