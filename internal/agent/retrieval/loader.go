package retrieval

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// ===== Loaders =====

const (
	MetaSource = "source"
	MetaRow    = "row"
)

// LoadJSONFile reads a JSON knowledge file. A top-level array yields one
// document per element; any other value becomes a single document.
func LoadJSONFile(path string, db Database) ([]*schema.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}

	var records []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		records = []json.RawMessage{raw}
	}

	stem := fileStem(path)
	docs := make([]*schema.Document, 0, len(records))
	for i, rec := range records {
		var buf bytes.Buffer
		if err := json.Compact(&buf, rec); err != nil {
			return nil, fmt.Errorf("compact %s record %d: %w", path, i, err)
		}
		docs = append(docs, &schema.Document{
			ID:       fmt.Sprintf("%s:%d", stem, i),
			Content:  buf.String(),
			MetaData: map[string]any{MetaSource: filepath.Base(path), MetaDatabase: string(db), MetaRow: i},
		})
	}
	return docs, nil
}

// LoadCSVFile reads a CSV file with a header row. Each row becomes one
// document of "column: value" lines.
func LoadCSVFile(path string, db Database) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	stem := fileStem(path)
	var docs []*schema.Document
	for row := 0; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", path, row, err)
		}
		lines := make([]string, 0, len(header))
		for i, col := range header {
			val := ""
			if i < len(rec) {
				val = strings.TrimSpace(rec[i])
			}
			lines = append(lines, col+": "+val)
		}
		docs = append(docs, &schema.Document{
			ID:       fmt.Sprintf("%s:%d", stem, row),
			Content:  strings.Join(lines, "\n"),
			MetaData: map[string]any{MetaSource: filepath.Base(path), MetaDatabase: string(db), MetaRow: row},
		})
	}
	return docs, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ===== Splitter =====

const (
	defaultChunkSize    = 2000
	defaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts documents into overlapping chunks, preferring paragraph,
// line and word boundaries in that order. Sizes count runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = defaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 10
		}
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split returns the chunks of every document. A chunk inherits its parent's
// metadata and gets the ID "<parent>:<n>".
func (s *Splitter) Split(docs []*schema.Document) []*schema.Document {
	var out []*schema.Document
	for _, d := range docs {
		if d == nil {
			continue
		}
		for i, chunk := range s.SplitText(d.Content) {
			meta := make(map[string]any, len(d.MetaData))
			for k, v := range d.MetaData {
				meta[k] = v
			}
			out = append(out, &schema.Document{
				ID:       fmt.Sprintf("%s:%d", d.ID, i),
				Content:  chunk,
				MetaData: meta,
			})
		}
	}
	return out
}

// SplitText splits one text; blank chunks are dropped.
func (s *Splitter) SplitText(text string) []string {
	var out []string
	for _, c := range s.split(text, defaultSeparators) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, c := range seps {
		if c == "" || strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.splitRunes(text)
	}

	var out, fits []string
	flush := func() {
		if len(fits) > 0 {
			out = append(out, s.merge(fits, sep)...)
			fits = nil
		}
	}
	for _, piece := range strings.Split(text, sep) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= s.ChunkSize {
			fits = append(fits, piece)
			continue
		}
		flush()
		if len(rest) == 0 {
			out = append(out, s.splitRunes(piece)...)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	flush()
	return out
}

// merge packs pieces into chunks of at most ChunkSize runes, carrying up to
// Overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var chunks, window []string
	total := 0
	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		joint := 0
		if len(window) > 0 {
			joint = sepLen
		}
		if total+joint+pl > s.ChunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.Overlap || total+sepLen+pl > s.ChunkSize) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, p)
		total += pl
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}

func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
