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
	"testing"

	"github.com/stretchr/testify/assert"

	gerrors "github.com/tochemey/grayconf/errors"
)

func TestIdentifierValidator(t *testing.T) {
	t.Run("With valid identifier", func(t *testing.T) {
		assert.NoError(t, NewIdentifierValidator("host", "10.0.0.1:8080").Validate())
		assert.NoError(t, NewIdentifierValidator("machine", "web-01_a").Validate())
	})
	t.Run("With invalid identifier", func(t *testing.T) {
		for _, value := range []string{"", "a/b", "..", "bad host"} {
			err := NewIdentifierValidator("host", value).Validate()
			assert.ErrorIs(t, err, gerrors.ErrInvalidValue, value)
		}
	})
}
