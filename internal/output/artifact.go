package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// WriteRankedCSV writes one row per query to path, in the
// "{idColumn}_1..L" wide submission format: header plus one row per
// list, width cells wide. A list longer than width is truncated and a
// shorter one is padded with model.Sentinel.
func WriteRankedCSV(path, idColumn string, lists []model.RankedList, width int) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("output: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, width+1)
	header[0] = "query_id"
	for i := 0; i < width; i++ {
		header[i+1] = fmt.Sprintf("%s_%d", idColumn, i+1)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("output: write header: %w", err)
	}

	for _, rl := range lists {
		row := make([]string, width+1)
		row[0] = rl.QueryID
		ids := rl.IDs(width)
		for i := 0; i < width; i++ {
			if i < len(ids) {
				row[i+1] = ids[i]
			} else {
				row[i+1] = model.Sentinel
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("output: write row for %s: %w", rl.QueryID, err)
		}
	}
	return w.Error()
}

// ReadRankedCSV reads a wide "{idColumn}_1..L" submission file back into
// the per-query entry lists rrf.FileResult expects, in their on-disk
// order (sentinel cells included, callers trim them).
func ReadRankedCSV(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return map[string][]string{}, nil
	}

	out := make(map[string][]string, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		out[row[0]] = append([]string(nil), row[1:]...)
	}
	return out, nil
}

// WriteRankedJSON writes the full RankedList set (including scores) to
// path as JSON, for downstream tooling that needs more than the wide
// CSV submission format.
func WriteRankedJSON(path string, lists []model.RankedList) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("output: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: create directory: %w", err)
	}

	data, err := json.MarshalIndent(lists, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("output: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("output: finalize %s: %w", path, err)
	}
	return nil
}
