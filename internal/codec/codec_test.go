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

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEnvelope(t *testing.T) {
	t.Run("With value", func(t *testing.T) {
		seq, value, err := DecodeEnvelope(EncodeEnvelope(42, []byte("v1")))
		require.NoError(t, err)
		assert.EqualValues(t, 42, seq)
		assert.Equal(t, []byte("v1"), value)
	})

	t.Run("With empty value", func(t *testing.T) {
		seq, value, err := DecodeEnvelope(EncodeEnvelope(7, nil))
		require.NoError(t, err)
		assert.EqualValues(t, 7, seq)
		assert.NotNil(t, value)
		assert.Empty(t, value)
	})

	t.Run("With unknown fields", func(t *testing.T) {
		payload := EncodeEnvelope(3, []byte("x"))
		payload = protowire.AppendTag(payload, 9, protowire.VarintType)
		payload = protowire.AppendVarint(payload, 1)
		seq, value, err := DecodeEnvelope(payload)
		require.NoError(t, err)
		assert.EqualValues(t, 3, seq)
		assert.Equal(t, []byte("x"), value)
	})

	t.Run("With truncated payload", func(t *testing.T) {
		payload := EncodeEnvelope(3, []byte("hello"))
		_, _, err := DecodeEnvelope(payload[:len(payload)-2])
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRecord(t *testing.T) {
	record := &Record{
		Changes: []Entry{
			{Path: "/app/db", Value: []byte("v2")},
			{Path: "/app/cache", Value: []byte{}},
		},
		Prior: []Entry{
			{Path: "/app/db", Value: []byte("v1")},
			{Path: "/app/cache", Value: []byte("old")},
		},
		Machines: []string{"m1", "m2"},
	}

	decoded, err := DecodeRecord(EncodeRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)

	_, err = DecodeRecord([]byte{0x0a, 0x10, 0x01})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSplit(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 25)
	chunks := Split(data, 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[2], 5)
	assert.Equal(t, data, bytes.Join(chunks, nil))

	assert.Len(t, Split(nil, 10), 1)
	assert.Len(t, Split(bytes.Repeat([]byte("a"), 20), 10), 2)
}
