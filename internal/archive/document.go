package archive

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	serrors "github.com/randalmurphal/sprout/internal/errors"
)

// Table is one section of a data file.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
	// Malformed maps a row index to the reason the record could not be read.
	// Such rows hold no values.
	Malformed map[int]string
}

func (t *Table) addMalformed(reason string) {
	if t.Malformed == nil {
		t.Malformed = make(map[int]string)
	}
	t.Malformed[len(t.Rows)] = reason
	t.Rows = append(t.Rows, nil)
}

// Document is the decoded data file of an archive.
type Document struct {
	Version  int
	Sections map[string]*Table
	// Unknown lists section names that no parser handles.
	Unknown []string
}

func newDocument(version int) *Document {
	return &Document{Version: version, Sections: make(map[string]*Table)}
}

func (d *Document) add(t *Table) {
	d.Sections[t.Name] = t
}

// RowCount returns the number of data rows across known sections.
func (d *Document) RowCount() int {
	n := 0
	for _, name := range fileOrder {
		if t, ok := d.Sections[name]; ok {
			n += len(t.Rows)
		}
	}
	return n
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// checkVersion validates a raw version value against MaxSupportedVersion.
func checkVersion(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return 0, serrors.ErrInvalidVersion(raw)
	}
	if v > MaxSupportedVersion {
		return 0, serrors.ErrUnsupportedVersion(v, MaxSupportedVersion)
	}
	return v, nil
}

// writeCSV writes the tabular form. Sections are separated by blank lines.
func writeCSV(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	if err := cw.Write([]string{versionKey, strconv.Itoa(doc.Version)}); err != nil {
		return err
	}
	for _, name := range fileOrder {
		t, ok := doc.Sections[name]
		if !ok {
			continue
		}
		cw.Flush()
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
		if err := cw.Write([]string{t.Name}); err != nil {
			return err
		}
		if err := cw.Write(t.Columns); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// readCSVVersion reads only the version line.
func readCSVVersion(data []byte) (int, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, serrors.ErrMissingVersion()
	}
	if err != nil {
		return 0, serrors.ErrArchiveUnreadable(DataFileCSV, err)
	}
	if len(first) < 2 || strings.TrimSpace(first[0]) != versionKey {
		return 0, serrors.ErrMissingVersion()
	}
	return checkVersion(first[1])
}

// readCSV decodes the tabular form. The version line is checked before any
// section is read. A record the CSV reader rejects is kept as a malformed row
// of its section, so one bad row never costs the rest of the file.
func readCSV(data []byte) (*Document, error) {
	version, err := readCSVVersion(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return nil, serrors.ErrArchiveUnreadable(DataFileCSV, err)
	}

	doc := newDocument(version)
	var cur *Table
	wantHeader := false
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			switch {
			case cur == nil:
				return nil, serrors.ErrArchiveUnreadable(DataFileCSV, err)
			case wantHeader:
				// Rows are positional, a broken header only loses the names.
				wantHeader = false
			default:
				cur.addMalformed(fmt.Sprintf("%s: %v", reasonMalformedRecord, pe.Err))
			}
			continue
		}
		if err != nil {
			return nil, serrors.ErrArchiveUnreadable(DataFileCSV, err)
		}

		switch {
		case wantHeader:
			cur.Columns = rec
			wantHeader = false
		case len(rec) == 1 && (isSectionName(rec[0]) || cur == nil):
			// Inside a section only a known name opens the next one; anything
			// else is a row and fails the column count check.
			cur = &Table{Name: rec[0]}
			if isSectionName(rec[0]) {
				doc.add(cur)
			} else {
				doc.Unknown = append(doc.Unknown, rec[0])
			}
			wantHeader = true
		case cur == nil:
			line, _ := r.FieldPos(0)
			return nil, serrors.ErrArchiveUnreadable(DataFileCSV, fmt.Errorf("line %d: row outside any section", line))
		default:
			cur.Rows = append(cur.Rows, rec)
		}
	}
	return doc, nil
}

func isSectionName(s string) bool {
	return slices.Contains(fileOrder, s)
}

type jsonDocument struct {
	Version  int                            `json:"version"`
	Sections map[string][]map[string]string `json:"sections"`
}

// writeJSON writes the object form: each row becomes an object keyed by
// column name.
func writeJSON(w io.Writer, doc *Document) error {
	out := jsonDocument{Version: doc.Version, Sections: make(map[string][]map[string]string, len(doc.Sections))}
	for _, name := range fileOrder {
		t, ok := doc.Sections[name]
		if !ok {
			continue
		}
		rows := make([]map[string]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			obj := make(map[string]string, len(t.Columns))
			for i, col := range t.Columns {
				if i < len(row) {
					obj[col] = row[i]
				}
			}
			rows = append(rows, obj)
		}
		out.Sections[name] = rows
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readJSONVersion checks the version member without decoding the sections.
func readJSONVersion(data []byte) (int, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !gjson.ValidBytes(data) {
		return 0, serrors.ErrArchiveUnreadable(DataFileJSON, errors.New("malformed JSON"))
	}
	v := gjson.GetBytes(data, "version")
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return 0, serrors.ErrMissingVersion()
	case v.Type == gjson.Number:
		return checkVersion(v.Raw)
	case v.Type == gjson.String:
		return checkVersion(v.Str)
	default:
		return 0, serrors.ErrInvalidVersion(v.Raw)
	}
}

// readJSON decodes the object form. Rows are laid out in the column order of
// the section's parser; a row missing columns keeps only the values present
// so that the column count check reports it.
func readJSON(data []byte) (*Document, error) {
	version, err := readJSONVersion(data)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Sections map[string][]map[string]any `json:"sections"`
	}
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, serrors.ErrArchiveUnreadable(DataFileJSON, err)
	}

	doc := newDocument(version)
	for name, objs := range raw.Sections {
		parser, ok := sectionParsers[name]
		if !ok {
			doc.Unknown = append(doc.Unknown, name)
			continue
		}
		cols := parser.Columns()
		t := &Table{Name: name, Columns: cols, Rows: make([][]string, 0, len(objs))}
		for _, obj := range objs {
			row := make([]string, 0, len(cols))
			for _, col := range cols {
				v, ok := obj[col]
				if !ok {
					continue
				}
				s, err := jsonCell(v)
				if err != nil {
					return nil, serrors.ErrArchiveUnreadable(DataFileJSON, err)
				}
				row = append(row, s)
			}
			t.Rows = append(t.Rows, row)
		}
		doc.add(t)
	}
	slices.Sort(doc.Unknown)
	return doc, nil
}

// jsonCell renders a decoded JSON value as cell text.
func jsonCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// decodeDocument picks the reader for the data entry name.
func decodeDocument(name string, data []byte) (*Document, error) {
	if name == DataFileJSON {
		return readJSON(data)
	}
	return readCSV(data)
}

// encodeDocument picks the writer for the format.
func encodeDocument(w io.Writer, format Format, doc *Document) error {
	if format == FormatJSON {
		return writeJSON(w, doc)
	}
	return writeCSV(w, doc)
}
