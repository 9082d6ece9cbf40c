package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format is a raw dataset encoding
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

// FormatFromName picks the decoder from the filename extension, falling back
// to the declared content type. URLs are accepted as names.
func FormatFromName(name, contentType string) (Format, error) {
	base := name
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	switch strings.ToLower(path.Ext(base)) {
	case ".csv":
		return CSV, nil
	case ".xlsx":
		return XLSX, nil
	case ".json":
		return JSON, nil
	case ".xls":
		return "", fmt.Errorf("legacy .xls spreadsheets are not supported, save the file as .xlsx or .csv")
	}

	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mt {
			case "text/csv", "application/csv":
				return CSV, nil
			case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
				return XLSX, nil
			case "application/json", "text/json":
				return JSON, nil
			}
		}
	}
	return "", fmt.Errorf("could not work out the file type of %q", name)
}

// Load decodes raw bytes into a Table. Spreadsheet and CSV cells load as
// string columns with blank cells missing; JSON loads 360Giving grants.
func Load(raw []byte, format Format) (*Table, error) {
	switch format {
	case CSV:
		return loadCSV(raw)
	case XLSX:
		return loadXLSX(raw)
	case JSON:
		return loadJSON(raw)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func loadCSV(raw []byte) (*Table, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		raw = latin1ToUTF8(raw)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		records = append(records, rec)
	}
	return fromRecords(records)
}

func loadXLSX(raw []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(rows)
}

// fromRecords turns a header row plus data rows into string columns.
// Duplicate headers get a .1, .2 suffix; blank trailing rows are dropped.
func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	header := records[0]
	data := records[1:]
	for len(data) > 0 && blankRecord(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	seen := make(map[string]int)
	cols := make([]*Column, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		cols[i] = NewColumn(name, String, len(data))
	}

	for r, rec := range data {
		for i := range cols {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				cols[i].Values[r] = rec[i]
			}
		}
	}
	return FromColumns(cols...)
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func latin1ToUTF8(b []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(b) * 2)
	for _, c := range b {
		buf.WriteRune(rune(c))
	}
	return buf.Bytes()
}

func loadJSON(raw []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var grants []any
	switch v := doc.(type) {
	case []any:
		grants = v
	case map[string]any:
		g, ok := v["grants"].([]any)
		if !ok {
			return nil, fmt.Errorf("json file has no grants list")
		}
		grants = g
	default:
		return nil, fmt.Errorf("json file must be a 360Giving package or a list of grants")
	}

	var order []string
	values := make(map[string][]any)
	for i, g := range grants {
		grant, ok := g.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("grant %d is not an object", i)
		}
		for _, cell := range flattenGrant(grant) {
			col, ok := values[cell.title]
			if !ok {
				order = append(order, cell.title)
				col = make([]any, len(grants))
				values[cell.title] = col
			}
			col[i] = cell.value
		}
	}

	cols := make([]*Column, 0, len(order))
	for _, title := range order {
		cols = append(cols, inferColumn(title, values[title]))
	}
	t, err := FromColumns(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		t.rows = len(grants)
	}
	return t, nil
}

// inferColumn keeps JSON numbers and booleans typed when a column is uniform,
// otherwise everything is rendered as text
func inferColumn(name string, values []any) *Column {
	kind := Kind(-1)
	for _, v := range values {
		var k Kind
		switch v.(type) {
		case nil:
			continue
		case json.Number:
			k = Float
		case bool:
			k = Bool
		default:
			k = String
		}
		if kind == -1 {
			kind = k
		} else if kind != k {
			kind = String
		}
	}
	if kind == -1 {
		kind = String
	}

	col := NewColumn(name, kind, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case json.Number:
			if kind == Float {
				f, err := x.Float64()
				if err != nil {
					col.Values[i] = x.String()
					col.Kind = String
					continue
				}
				col.Values[i] = f
			} else {
				col.Values[i] = x.String()
			}
		default:
			if kind == String {
				col.Values[i] = ToString(x)
			} else {
				col.Values[i] = x
			}
		}
	}
	if col.Kind == String {
		for i, v := range col.Values {
			col.Values[i] = ToString(v)
		}
	}
	return col
}
