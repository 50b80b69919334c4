package retrieval

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

var sectionHeaders = map[Database]string{
	DrugMaster:    "\n--- DRUG MASTER DATA ---\n",
	Interactions:  "\n--- INTERACTION ALERTS ---\n",
	Reimbursement: "\n--- REIMBURSEMENT & PRICING ---\n",
	Comparisons:   "\n--- COMPARISONS & SAFETY ---\n",
}

// Header returns the section header emitted for db.
func Header(db Database) string {
	return sectionHeaders[db]
}

// Merge renders results as one context block. Every section header is written
// in Order even when its section is empty.
func Merge(results Results) string {
	var b strings.Builder
	for _, db := range Order {
		b.WriteString(sectionHeaders[db])
		b.WriteString(joinContents(results[db]))
	}
	return b.String()
}

func joinContents(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n")
}

// Evidence converts documents to the mapping form checked by the output guardrail.
func Evidence(docs []*schema.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		out = append(out, map[string]any{
			"database": string(DatabaseOf(d)),
			"content":  d.Content,
		})
	}
	return out
}
