package frpconf

import (
	"github.com/BurntSushi/toml"
)

// Strict reports whether text decodes as TOML.
func Strict(text string) error {
	var v map[string]any
	_, err := toml.Decode(text, &v)
	return err
}

// CheckSyntax refuses an edit that would turn a well-formed document into a
// malformed one. Documents that were already malformed are let through.
func CheckSyntax(before, after string) error {
	if Strict(before) != nil {
		return nil
	}
	if err := Strict(after); err != nil {
		return &ValidationError{Reason: "edit would produce invalid TOML: " + err.Error(), Err: err}
	}
	return nil
}
