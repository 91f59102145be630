// Package parser defines the bank statement parser contract and the registry
// that selects a parser by email sender.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Parser parses one bank statement document into raw transaction records.
type Parser interface {
	// SenderName returns the bank sender identifier this parser handles.
	SenderName() string
	// Parse extracts raw (time, description) records from a statement.
	// A statement without the expected transaction table yields an empty
	// slice and no error; an unreadable document yields an error.
	Parse(r io.Reader) ([]api.RawRecord, error)
}

// Registry resolves statement parsers by sender identifier.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with the given parsers. Resolution follows
// registration order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Resolve returns the first registered parser whose sender name is a
// case-insensitive substring of the given sender identifier. A missing
// parser is a configuration gap, not a fault: callers should log it and
// notify, not crash.
func (r *Registry) Resolve(sender string) (Parser, error) {
	lowerSender := strings.ToLower(sender)
	for _, p := range r.parsers {
		if strings.Contains(lowerSender, strings.ToLower(p.SenderName())) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser registered for sender %q", sender)
}
