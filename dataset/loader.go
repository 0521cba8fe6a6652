package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Row is one raw record: the label code followed by one code per feature column.
type Row = []string

// ReadRows parses CSV records and keeps only those with exactly columnCount fields.
// Rows of any other length (typically a blank trailing line) are dropped on purpose
// and only counted, never reported as errors.
func ReadRows(r io.Reader, columnCount int) (rows []Row, dropped int, err error) {
	reader := csv.NewReader(r)
	reader.Comma = ','
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("error parsing dataset: %w", err)
		}
		if len(record) != columnCount {
			dropped++
			continue
		}
		rows = append(rows, record)
	}
	return rows, dropped, nil
}

// Open returns a reader for the dataset at source, which is either an http(s) URL
// or a local file path.
func Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request for %s: %w", source, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error fetching %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("error fetching %s: unexpected status %s", source, resp.Status)
		}
		return resp.Body, nil
	}

	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("error opening dataset file: %w", err)
	}
	return file, nil
}

// Load fetches and parses the dataset using the declared Columns.
func Load(ctx context.Context, source string) ([]Row, int, error) {
	body, err := Open(ctx, source)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()
	return ReadRows(body, len(Columns))
}
