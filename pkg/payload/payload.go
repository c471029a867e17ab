// Package payload defines the tagged union of in-flight data that flows
// between pipeline stages.
package payload

import "fmt"

// Kind identifies which variant a Payload holds.
type Kind int

const (
	KindTable Kind = iota
	KindRowBatch
	KindBytes
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindRowBatch:
		return "row_batch"
	case KindBytes:
		return "bytes"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Record is a single row: a mapping from column name to dynamic value.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a columnar relation: named columns, typed cells, row count.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// RowBatch is an ordered sequence of records.
type RowBatch struct {
	Records []Record
}

// FormatHint tells a Bytes->{Table,RowBatch} conversion how to interpret the
// blob; stages that produce Bytes with no inherent structure must supply one
// before conversion.
type FormatHint string

const (
	FormatCSV  FormatHint = "csv"
	FormatJSON FormatHint = "json"
)

// StreamItem is a single element pulled off a Stream.
type StreamItem struct {
	Payload Payload
	Err     error
}

// Stream is an asynchronous, single-consumer, possibly infinite sequence of
// Payload elements. A Stream is not cloneable: fan-out requires
// materialization into a RowBatch or Table first (see ToRowBatch).
type Stream struct {
	ch <-chan StreamItem
}

// NewStream wraps a receive-only channel as a Stream.
func NewStream(ch <-chan StreamItem) *Stream {
	return &Stream{ch: ch}
}

// Next receives the next element, or ok=false when the stream is exhausted.
func (s *Stream) Next() (StreamItem, bool) {
	item, ok := <-s.ch
	return item, ok
}

// Payload is the tagged union carried along a DAG edge.
type Payload struct {
	kind     Kind
	table    *Table
	rowBatch *RowBatch
	bytes    []byte
	stream   *Stream
}

// NewTable wraps a Table as a Payload.
func NewTable(t *Table) Payload { return Payload{kind: KindTable, table: t} }

// NewRowBatch wraps a RowBatch as a Payload.
func NewRowBatch(rb *RowBatch) Payload { return Payload{kind: KindRowBatch, rowBatch: rb} }

// NewBytes wraps a raw blob as a Payload.
func NewBytes(b []byte) Payload { return Payload{kind: KindBytes, bytes: b} }

// NewStreamPayload wraps a Stream as a Payload.
func NewStreamPayload(s *Stream) Payload { return Payload{kind: KindStream, stream: s} }

// Empty returns the empty payload of the given kind, used by the level
// executor's Continue error strategy to stand in for a failed stage's
// output.
func Empty(kind Kind) Payload {
	switch kind {
	case KindTable:
		return NewTable(&Table{})
	case KindRowBatch:
		return NewRowBatch(&RowBatch{})
	case KindBytes:
		return NewBytes(nil)
	default:
		return NewRowBatch(&RowBatch{})
	}
}

// Kind reports which variant is held.
func (p Payload) Kind() Kind { return p.kind }

// Cloneable reports whether the payload can be duplicated for fan-out.
// Streams cannot be cloned (spec.md §3.1, §4.7).
func (p Payload) Cloneable() bool { return p.kind != KindStream }

// Table returns the Table variant, or an error if the payload holds
// something else.
func (p Payload) Table() (*Table, error) {
	if p.kind != KindTable {
		return nil, fmt.Errorf("payload is %s, not table", p.kind)
	}
	return p.table, nil
}

// RowBatch returns the RowBatch variant, or an error if the payload holds
// something else.
func (p Payload) RowBatch() (*RowBatch, error) {
	if p.kind != KindRowBatch {
		return nil, fmt.Errorf("payload is %s, not row_batch", p.kind)
	}
	return p.rowBatch, nil
}

// Bytes returns the Bytes variant, or an error if the payload holds
// something else.
func (p Payload) Bytes() ([]byte, error) {
	if p.kind != KindBytes {
		return nil, fmt.Errorf("payload is %s, not bytes", p.kind)
	}
	return p.bytes, nil
}

// Stream returns the Stream variant, or an error if the payload holds
// something else.
func (p Payload) Stream() (*Stream, error) {
	if p.kind != KindStream {
		return nil, fmt.Errorf("payload is %s, not stream", p.kind)
	}
	return p.stream, nil
}

// Clone duplicates a payload for delivery to a second consumer. Streams
// cannot be cloned; callers must materialize first (see ToRowBatch).
func (p Payload) Clone() (Payload, error) {
	switch p.kind {
	case KindTable:
		cols := make([]string, len(p.table.Columns))
		copy(cols, p.table.Columns)
		rows := make([][]interface{}, len(p.table.Rows))
		for i, row := range p.table.Rows {
			r := make([]interface{}, len(row))
			copy(r, row)
			rows[i] = r
		}
		return NewTable(&Table{Columns: cols, Rows: rows}), nil
	case KindRowBatch:
		recs := make([]Record, len(p.rowBatch.Records))
		for i, rec := range p.rowBatch.Records {
			recs[i] = rec.Clone()
		}
		return NewRowBatch(&RowBatch{Records: recs}), nil
	case KindBytes:
		b := make([]byte, len(p.bytes))
		copy(b, p.bytes)
		return NewBytes(b), nil
	default:
		return Payload{}, fmt.Errorf("stream payloads cannot be cloned; materialize with ToRowBatch first")
	}
}

// ToRowBatch converts a Table or RowBatch losslessly for rectangular data,
// or drains a Stream of RowBatch/Table elements into one batch. This is the
// explicit materialization step used by the stream-to-records built-in
// stage (spec.md §9 "Streaming fan-out").
func (p Payload) ToRowBatch() (*RowBatch, error) {
	switch p.kind {
	case KindRowBatch:
		return p.rowBatch, nil
	case KindTable:
		return tableToRowBatch(p.table), nil
	case KindStream:
		out := &RowBatch{}
		for {
			item, ok := p.stream.Next()
			if !ok {
				break
			}
			if item.Err != nil {
				return nil, item.Err
			}
			rb, err := item.Payload.ToRowBatch()
			if err != nil {
				return nil, fmt.Errorf("materializing stream element: %w", err)
			}
			out.Records = append(out.Records, rb.Records...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to row_batch without a format hint", p.kind)
	}
}

// ToTable converts a RowBatch or Table into a Table. Conversion is lossless
// for rectangular data: every record must have the same set of columns.
func (p Payload) ToTable() (*Table, error) {
	switch p.kind {
	case KindTable:
		return p.table, nil
	case KindRowBatch:
		return rowBatchToTable(p.rowBatch)
	default:
		return nil, fmt.Errorf("cannot convert %s to table without a format hint", p.kind)
	}
}

func tableToRowBatch(t *Table) *RowBatch {
	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(Record, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return &RowBatch{Records: records}
}

func rowBatchToTable(rb *RowBatch) (*Table, error) {
	if len(rb.Records) == 0 {
		return &Table{}, nil
	}

	colSet := make(map[string]int)
	var columns []string
	for _, rec := range rb.Records {
		for col := range rec {
			if _, ok := colSet[col]; !ok {
				colSet[col] = len(columns)
				columns = append(columns, col)
			}
		}
	}

	rows := make([][]interface{}, len(rb.Records))
	for i, rec := range rb.Records {
		row := make([]interface{}, len(columns))
		for col, idx := range colSet {
			row[idx] = rec[col]
		}
		rows[i] = row
	}

	return &Table{Columns: columns, Rows: rows}, nil
}
