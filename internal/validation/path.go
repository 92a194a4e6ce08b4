// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package validation

import (
	"fmt"

	"github.com/tochemey/grayconf/internal/nodepath"
)

// identifierValidator checks a single path segment
type identifierValidator struct {
	field string
	value string
}

var _ Validator = (*identifierValidator)(nil)

// NewIdentifierValidator creates a validator for plain identifiers such as
// service hosts and machine names: one path segment, no separators.
func NewIdentifierValidator(field, value string) Validator {
	return &identifierValidator{field: field, value: value}
}

// Validate executes the validation
func (v *identifierValidator) Validate() error {
	if err := nodepath.ValidateSegment(v.value); err != nil {
		return fmt.Errorf("the [%s] is not a valid identifier: %w", v.field, err)
	}
	return nil
}
