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

// Package codec holds the binary encodings persisted in the store: the
// value envelope used by backends that cannot report creation order
// natively, and the gray transaction record. Both use the protobuf wire
// format so older readers skip unknown fields.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a payload cannot be decoded
var ErrMalformed = errors.New("malformed payload")

const (
	envelopeSeq   protowire.Number = 1
	envelopeValue protowire.Number = 2

	recordChange  protowire.Number = 1
	recordPrior   protowire.Number = 2
	recordMachine protowire.Number = 3

	entryPath  protowire.Number = 1
	entryValue protowire.Number = 2
)

// EncodeEnvelope wraps a node value together with its creation sequence.
func EncodeEnvelope(seq uint64, value []byte) []byte {
	out := make([]byte, 0, len(value)+16)
	out = protowire.AppendTag(out, envelopeSeq, protowire.VarintType)
	out = protowire.AppendVarint(out, seq)
	out = protowire.AppendTag(out, envelopeValue, protowire.BytesType)
	out = protowire.AppendBytes(out, value)
	return out
}

// DecodeEnvelope unwraps a payload written by EncodeEnvelope.
func DecodeEnvelope(payload []byte) (seq uint64, value []byte, err error) {
	value = []byte{}
	err = walk(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == envelopeSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			seq = v
			return n, nil
		case num == envelopeValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				value = append([]byte{}, v...)
			}
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return seq, value, err
}

// Entry is a path and its value
type Entry struct {
	Path  string
	Value []byte
}

// Record is the persisted form of a gray transaction.
type Record struct {
	Changes  []Entry
	Prior    []Entry
	Machines []string
}

// EncodeRecord serializes a Record.
func EncodeRecord(record *Record) []byte {
	var out []byte
	for _, change := range record.Changes {
		out = protowire.AppendTag(out, recordChange, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeEntry(change))
	}
	for _, prior := range record.Prior {
		out = protowire.AppendTag(out, recordPrior, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeEntry(prior))
	}
	for _, machine := range record.Machines {
		out = protowire.AppendTag(out, recordMachine, protowire.BytesType)
		out = protowire.AppendString(out, machine)
	}
	return out
}

// DecodeRecord parses a payload written by EncodeRecord.
func DecodeRecord(payload []byte) (*Record, error) {
	record := new(Record)
	err := walk(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}

		switch num {
		case recordChange, recordPrior:
			entry, err := decodeEntry(v)
			if err != nil {
				return 0, err
			}
			if num == recordChange {
				record.Changes = append(record.Changes, entry)
			} else {
				record.Prior = append(record.Prior, entry)
			}
		case recordMachine:
			record.Machines = append(record.Machines, string(v))
		}
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Split cuts data into chunks of at most size bytes. Empty data yields a
// single empty chunk.
func Split(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

func encodeEntry(entry Entry) []byte {
	out := protowire.AppendTag(nil, entryPath, protowire.BytesType)
	out = protowire.AppendString(out, entry.Path)
	out = protowire.AppendTag(out, entryValue, protowire.BytesType)
	return protowire.AppendBytes(out, entry.Value)
}

func decodeEntry(payload []byte) (Entry, error) {
	entry := Entry{Value: []byte{}}
	err := walk(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case entryPath:
			entry.Path = string(v)
		case entryValue:
			entry.Value = append([]byte{}, v...)
		}
		return n, nil
	})
	return entry, err
}

// walk iterates over the fields of payload. fn consumes the field value
// and returns the number of bytes read, or a negative protowire error code.
func walk(payload []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		payload = payload[n:]

		m, err := fn(num, typ, payload)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
		}
		payload = payload[m:]
	}
	return nil
}
