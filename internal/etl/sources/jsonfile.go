package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"restaurants/internal/etl"
)

// ── JSON File Reader ────────────────────────────────────────
// Reads a partition from a JSON array of objects (.json) or from
// newline-delimited objects (.jsonl / .ndjson).

type jsonFileReader struct{}

func init() { etl.RegisterReader(&jsonFileReader{}) }

func (r *jsonFileReader) Format() string { return "json" }

func (r *jsonFileReader) Extensions() []string { return []string{".json", ".jsonl", ".ndjson"} }

func (r *jsonFileReader) Read(ctx context.Context, path string) (*etl.Partition, error) {
	var objects []map[string]any
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		objects, err = readJSONArray(path)
	} else {
		objects, err = readJSONLines(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	part := &etl.Partition{Path: path}
	seen := map[string]bool{}
	for _, obj := range objects {
		data := make(map[string]*string, len(obj))
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				part.Columns = append(part.Columns, k)
			}
			data[k] = stringify(obj[k])
		}
		part.Records = append(part.Records, etl.Record{Data: data})
	}
	return part, nil
}

func readJSONArray(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return objects, nil
}

func readJSONLines(ctx context.Context, path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var objects []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("parse json line %d: %w", line, err)
		}
		objects = append(objects, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return objects, nil
}

// stringify keeps scalars as text; nested objects and arrays are
// serialized as JSON strings.
func stringify(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		s = string(b)
	}
	return &s
}
