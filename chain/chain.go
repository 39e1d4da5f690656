// Package chain holds the ordered list of image stages that make up a build
// pipeline. Stage i is always built from stage i-1; stages are only ever
// appended, so the index of a stage is its position at append time.
package chain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
)

// Identifier returns the file-system safe name of the stage at index.
func Identifier(index int, label string) string {
	return fmt.Sprintf("%02d_%s", index, label)
}

// ParseIdentifier splits an identifier produced by Identifier back into its
// index and label.
func ParseIdentifier(identifier string) (int, string, error) {
	prefix, label, ok := strings.Cut(identifier, "_")
	if !ok || len(prefix) < 2 {
		return 0, "", fmt.Errorf("invalid stage identifier %q", identifier)
	}
	index, err := strconv.Atoi(prefix)
	if err != nil || index < 0 {
		return 0, "", fmt.Errorf("invalid stage identifier %q: bad sequence prefix", identifier)
	}
	// Indices below 100 are always two digits wide, wider ones are never padded.
	if Identifier(index, label) != identifier {
		return 0, "", fmt.Errorf("invalid stage identifier %q: non canonical prefix", identifier)
	}
	return index, label, nil
}

// Entry is one stage of the chain.
type Entry struct {
	Index       int
	Label       string
	Identifier  string
	Description *types.Description
}

// Chain is the ordered stack of stages. The zero value is an empty chain.
type Chain struct {
	entries []Entry
}

func New() *Chain {
	return &Chain{}
}

// Append stores a copy of desc as the next stage and returns its identifier.
func (c *Chain) Append(label string, desc *types.Description) string {
	index := len(c.entries)
	id := Identifier(index, label)
	if desc != nil {
		desc = desc.Clone()
	}
	c.entries = append(c.entries, Entry{
		Index:       index,
		Label:       label,
		Identifier:  id,
		Description: desc,
	})
	return id
}

// LastIdentifier returns the identifier of the most recently appended stage.
func (c *Chain) LastIdentifier() (string, error) {
	if len(c.entries) == 0 {
		return "", errors.ErrEmptyChain
	}
	return c.entries[len(c.entries)-1].Identifier, nil
}

func (c *Chain) Len() int {
	return len(c.entries)
}

// Entries returns the stages in append order. Descriptions are copies, a
// stage cannot be changed once appended.
func (c *Chain) Entries() []Entry {
	entries := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		entries[i] = e
		if e.Description != nil {
			entries[i].Description = e.Description.Clone()
		}
	}
	return entries
}
