package chain

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		index int
		label string
		want  string
	}{
		{0, "base_image", "00_base_image"},
		{7, "gcc_image", "07_gcc_image"},
		{12, "final_image", "12_final_image"},
		{100, "x", "100_x"},
		{3, "", "03_"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Identifier(tt.index, tt.label); got != tt.want {
				t.Errorf("Identifier(%d, %q) = %q, want %q", tt.index, tt.label, got, tt.want)
			}
		})
	}
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in        string
		wantIndex int
		wantLabel string
		wantErr   bool
	}{
		{"00_base_image", 0, "base_image", false},
		{"05_cmake_image", 5, "cmake_image", false},
		{"123_x", 123, "x", false},
		{"03_", 3, "", false},
		{"base_image", 0, "", true},
		{"5_cmake", 0, "", true},
		{"005_cmake", 0, "", true},
		{"noprefix", 0, "", true},
		{"-1_x", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			index, label, err := ParseIdentifier(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIdentifier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if index != tt.wantIndex || label != tt.wantLabel {
				t.Errorf("ParseIdentifier(%q) = (%d, %q), want (%d, %q)", tt.in, index, label, tt.wantIndex, tt.wantLabel)
			}
		})
	}
}

func TestAppendAssignsContiguousUniqueIdentifiers(t *testing.T) {
	c := New()
	labels := []string{"base_image", "cmake_image", "gcc_image", "gcc_image", "final_image"}

	for i, label := range labels {
		id := c.Append(label, types.NewDescription())
		if want := fmt.Sprintf("%02d_%s", i, label); id != want {
			t.Errorf("Append(%q) = %q, want %q", label, id, want)
		}
	}

	entries := c.Entries()
	if len(entries) != len(labels) {
		t.Fatalf("len(Entries()) = %d, want %d", len(entries), len(labels))
	}

	seen := make(map[string]bool)
	for i, e := range entries {
		if e.Index != i {
			t.Errorf("entry %d has index %d", i, e.Index)
		}
		if e.Label != labels[i] {
			t.Errorf("entry %d has label %q, want %q", i, e.Label, labels[i])
		}
		if seen[e.Identifier] {
			t.Errorf("duplicate identifier %q", e.Identifier)
		}
		seen[e.Identifier] = true

		index, label, err := ParseIdentifier(e.Identifier)
		if err != nil || index != i || label != labels[i] {
			t.Errorf("identifier %q does not round trip: (%d, %q, %v)", e.Identifier, index, label, err)
		}
	}
}

func TestLastIdentifier(t *testing.T) {
	c := New()
	if _, err := c.LastIdentifier(); !stderrors.Is(err, errors.ErrEmptyChain) {
		t.Fatalf("LastIdentifier() on empty chain error = %v, want ErrEmptyChain", err)
	}

	c.Append("base_image", types.NewDescription())
	c.Append("cmake_image", types.NewDescription())

	id, err := c.LastIdentifier()
	if err != nil {
		t.Fatalf("LastIdentifier() error = %v", err)
	}
	if id != "01_cmake_image" {
		t.Errorf("LastIdentifier() = %q, want 01_cmake_image", id)
	}
}

func TestEntriesIsSnapshot(t *testing.T) {
	var c Chain
	c.Append("base_image", types.NewDescription())

	entries := c.Entries()
	entries[0].Identifier = "mutated"
	c.Append("next", types.NewDescription())

	if got := c.Entries()[0].Identifier; got != "00_base_image" {
		t.Errorf("chain was mutated through snapshot: %q", got)
	}
	if len(entries) != 1 {
		t.Errorf("snapshot grew to %d entries", len(entries))
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestAppendedDescriptionIsFrozen(t *testing.T) {
	var c Chain
	desc := types.NewDescription().Add(
		types.BaseImage("ubuntu:bionic", types.BootstrapDocker),
		types.Shell("locale-gen en_US.UTF-8"),
	)
	c.Append("base_image", desc)
	desc.Add(types.Shell("added after append"))

	got := c.Entries()[0].Description
	got.Add(types.Shell("rm -rf /"))
	got.Operations()[1].Commands[0] = "mutated"
	c.Append("next", types.NewDescription())

	stored := c.Entries()[0].Description
	if stored.Len() != 2 {
		t.Errorf("Len() = %d, want 2", stored.Len())
	}
	if cmds := stored.Commands(); len(cmds) != 1 || cmds[0] != "locale-gen en_US.UTF-8" {
		t.Errorf("Commands() = %v", cmds)
	}
}
