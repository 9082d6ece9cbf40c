package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

const codecVersion = 1

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

type envelope struct {
	Version int              `json:"version"`
	Rows    int              `json:"rows"`
	Columns []columnEnvelope `json:"columns"`
}

type columnEnvelope struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

// Encode serialises a table as zstd-compressed JSON, keeping column order,
// kinds and missing values. Times are RFC 3339 strings and durations are
// nanoseconds. NaN and infinities are written as missing.
func Encode(t *Table) ([]byte, error) {
	env := envelope{Version: codecVersion, Rows: t.rows, Columns: make([]columnEnvelope, len(t.cols))}
	for i, c := range t.cols {
		values := make([]any, len(c.Values))
		for j, v := range c.Values {
			switch x := v.(type) {
			case time.Time:
				values[j] = x.UTC().Format(time.RFC3339Nano)
			case time.Duration:
				values[j] = int64(x)
			case float64:
				if IsFinite(x) {
					values[j] = x
				}
			default:
				values[j] = v
			}
		}
		env.Columns[i] = columnEnvelope{Name: c.Name, Kind: c.Kind.String(), Values: values}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode is the inverse of Encode
func Decode(data []byte) (*Table, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress table: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("unsupported table encoding version %d", env.Version)
	}

	t := New(env.Rows)
	for _, ce := range env.Columns {
		kind, err := ParseKind(ce.Kind)
		if err != nil {
			return nil, err
		}
		col := NewColumn(ce.Name, kind, env.Rows)
		if len(ce.Values) != env.Rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", ce.Name, len(ce.Values), env.Rows)
		}
		for i, v := range ce.Values {
			if col.Values[i], err = decodeValue(kind, v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", ce.Name, i, err)
			}
		}
		if err := t.Set(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeValue(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case Float:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return n.Float64()
	case Int, Duration:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, err
		}
		if kind == Duration {
			return time.Duration(i), nil
		}
		return i, nil
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case Time:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected timestamp, got %T", v)
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	return nil, fmt.Errorf("unknown kind %d", kind)
}
