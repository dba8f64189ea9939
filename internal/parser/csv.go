package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/common"
)

// Row is one parsed source row. A row with a non-nil Err could not be read
// from the file; its Fields are empty but the row number is still valid so
// callers can count and report it.
type Row struct {
	Fields map[Field]string
	Err    error
	Number int // 1-based position in the source file, excluding the header
}

// Source produces a finite, restartable stream of parsed rows. Calling Rows
// again restarts the stream from the first row.
type Source interface {
	Rows(ctx context.Context) (*Iterator, error)
}

// Iterator walks rows in original file order.
type Iterator struct {
	next func() (Row, bool)
}

// Next returns the next row. The second return is false once the stream is
// exhausted.
func (it *Iterator) Next() (Row, bool) {
	return it.next()
}

// CSVSource parses delimited statement text using institution profiles.
type CSVSource struct {
	hint     string
	content  []byte
	profiles []Profile
}

// NewCSVSource creates a source over raw statement content. profiles are
// tried in order; the built-in generic profile is always appended last.
// hint, when non-empty, restricts detection to the named profile.
func NewCSVSource(content []byte, profiles []Profile, hint string) *CSVSource {
	return &CSVSource{
		content:  content,
		profiles: append(append([]Profile{}, profiles...), GenericProfile()),
		hint:     hint,
	}
}

// Rows detects the statement schema and returns an iterator over its rows.
// An unrecognized header is a file-level failure: no rows are produced.
func (s *CSVSource) Rows(ctx context.Context) (*Iterator, error) {
	reader := csv.NewReader(bytes.NewReader(s.content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", common.ErrSchemaDetection)
		}
		return nil, fmt.Errorf("%w: cannot read header: %v", common.ErrSchemaDetection, err)
	}

	profile, columns, err := s.detect(header)
	if err != nil {
		return nil, err
	}

	slog.Debug("detected statement schema",
		"profile", profile.Name,
		"columns", len(columns))

	number := 0
	next := func() (Row, bool) {
		for {
			if ctx.Err() != nil {
				return Row{}, false
			}

			record, readErr := reader.Read()
			if errors.Is(readErr, io.EOF) {
				return Row{}, false
			}
			number++
			if readErr != nil {
				return Row{
					Number: number,
					Err:    fmt.Errorf("%w: %v", common.ErrRowValidation, readErr),
				}, true
			}

			if recordEmpty(record) {
				continue
			}

			fields := make(map[Field]string, len(columns))
			for field, idx := range columns {
				if idx < len(record) {
					fields[field] = strings.TrimSpace(record[idx])
				}
			}
			return Row{Number: number, Fields: fields}, true
		}
	}

	return &Iterator{next: next}, nil
}

// detect finds the first profile whose required columns all resolve against
// the header. With a hint only the named profile is considered.
func (s *CSVSource) detect(header []string) (Profile, map[Field]int, error) {
	if s.hint != "" {
		for _, p := range s.profiles {
			if strings.EqualFold(p.Name, s.hint) {
				if columns, ok := p.Resolve(header); ok {
					return p, columns, nil
				}
				return Profile{}, nil, fmt.Errorf("%w: header does not match institution %q",
					common.ErrSchemaDetection, s.hint)
			}
		}
		return Profile{}, nil, fmt.Errorf("%w: unknown institution %q", common.ErrSchemaDetection, s.hint)
	}

	for _, p := range s.profiles {
		if columns, ok := p.Resolve(header); ok {
			return p, columns, nil
		}
	}
	return Profile{}, nil, fmt.Errorf("%w: no institution profile matches header %v",
		common.ErrSchemaDetection, header)
}

func recordEmpty(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
