// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package command

import "strings"

// Parsed is the result of splitting one input line.
type Parsed struct {
	Name string
	Args []string
}

// Parse splits an input line into a command name and its arguments.
// Commands are whitespace-delimited words; the name is lower-cased. Blank
// input is an error.
func Parse(input string) (Parsed, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Parsed{}, ErrEmptyInput()
	}
	return Parsed{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
	}, nil
}
