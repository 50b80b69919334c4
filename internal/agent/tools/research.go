package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/MedBuddy-core-poc-v1/server/internal/search"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// ===================================
// Research Backend
// ===================================

const reimbursementNote = "India does not provide a single unified reimbursement API. " +
	"Jan Aushadhi provides generic prices. NPPA provides ceiling prices. " +
	"PMJAY provides treatment package coverage (not always drug-level). " +
	"Private insurance reimbursement depends on insurer formulary + OPD coverage."

const interactionNote = "RxNorm provides structured interactions. OpenFDA provides label text interactions."

var mechanismKeywords = []string{
	"mechanism", "inhibitor", "receptor", "enzyme",
	"bind", "block", "agonist", "antagonist",
	"pathway", "inhibit", "target", "hormone",
}

const (
	maxSnippetsPerText = 15
	maxSnippets        = 20
)

// WebSearcher runs one web search. *search.SerpClient satisfies it.
type WebSearcher interface {
	Search(ctx context.Context, query string, num int) ([]search.Result, error)
}

// Endpoints holds the base URLs of the public medical APIs.
type Endpoints struct {
	OpenFDA string
	RxNav   string
	PubChem string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		OpenFDA: "https://api.fda.gov",
		RxNav:   "https://rxnav.nlm.nih.gov",
		PubChem: "https://pubchem.ncbi.nlm.nih.gov",
	}
}

// ResearchBackend answers tool calls from OpenFDA, RxNorm, PubChem and web
// search. Upstream failures are reported inside the result and never fail
// the call.
type ResearchBackend struct {
	openfda *resty.Client
	rxnav   *resty.Client
	pubchem *resty.Client
	web     WebSearcher
	limiter *rate.Limiter
}

// NewResearchBackend builds the HTTP clients. rps <= 0 disables throttling;
// web may be nil, in which case web sources are skipped.
func NewResearchBackend(endpoints Endpoints, web WebSearcher, rps float64, timeout time.Duration) *ResearchBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	newClient := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json")
	}
	return &ResearchBackend{
		openfda: newClient(endpoints.OpenFDA),
		rxnav:   newClient(endpoints.RxNav),
		pubchem: newClient(endpoints.PubChem),
		web:     web,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (b *ResearchBackend) DrugInformation(ctx context.Context, args DrugInfoArgs) (Result, error) {
	return b.drugInformation(ctx, args.DrugName), nil
}

func (b *ResearchBackend) drugInformation(ctx context.Context, drug string) Result {
	sources := []string{}
	errs := map[string]string{}
	out := Result{
		"tool":                 ToolDrugInformation,
		"drug_name":            drug,
		"scientific_mechanism": map[string]any{},
		"clinical_label_info":  map[string]any{},
		"india_sources":        []search.Result{},
	}

	if label, err := b.openFDALabel(ctx, drug); err != nil {
		errs["OpenFDA"] = err.Error()
	} else {
		out["clinical_label_info"] = label
		sources = append(sources, "OpenFDA")
	}

	if snippets, err := b.pubChemMechanism(ctx, drug); err != nil {
		errs["PubChem"] = err.Error()
	} else {
		out["scientific_mechanism"] = map[string]any{"mechanism_snippets": snippets}
		sources = append(sources, "PubChem")
	}

	q := drug + " mechanism of action site:1mg.com OR site:pharmeasy.in OR site:cdsco.gov.in OR site:nhp.gov.in"
	if hits, err := b.webSearch(ctx, q, 6); err != nil {
		errs["WebSearch"] = err.Error()
	} else if len(hits) > 0 {
		out["india_sources"] = hits
		sources = append(sources, "Web India Sources")
	}

	out["sources_used"] = sources
	if len(errs) > 0 {
		out["errors"] = errs
	}
	if len(sources) == 0 {
		out["error"] = noDataMessage
	}
	return out
}

func (b *ResearchBackend) Compare(ctx context.Context, args ComparisonArgs) (Result, error) {
	data := make([]Result, 0, len(args.DrugNames))
	found := false
	for _, drug := range args.DrugNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := b.drugInformation(ctx, drug)
		found = found || HasData(info)
		data = append(data, info)
	}
	out := Result{
		"tool":            ToolComparativeAnalysis,
		"drugs_compared":  args.DrugNames,
		"comparison_data": data,
	}
	if !found {
		out["error"] = noDataMessage
	}
	return out, nil
}

func (b *ResearchBackend) CheckInteractions(ctx context.Context, args InteractionArgs) (Result, error) {
	found := false
	rxResults := make([]map[string]any, 0, len(args.DrugList))
	for _, drug := range args.DrugList {
		rxcui, err := b.rxcui(ctx, drug)
		if err != nil {
			rxResults = append(rxResults, map[string]any{"drug": drug, "error": err.Error()})
			continue
		}
		entry := map[string]any{"drug": drug, "rxcui": rxcui}
		if interactions, err := b.rxInteractions(ctx, rxcui); err != nil {
			entry["interactions"] = map[string]any{"error": err.Error()}
		} else {
			entry["interactions"] = interactions
			found = true
		}
		rxResults = append(rxResults, entry)
	}

	fdaResults := make([]map[string]any, 0, len(args.DrugList))
	for _, drug := range args.DrugList {
		label, err := b.openFDALabel(ctx, drug)
		if err != nil {
			fdaResults = append(fdaResults, map[string]any{"drug_name": drug, "error": err.Error()})
			continue
		}
		fdaResults = append(fdaResults, label)
		found = true
	}

	out := Result{
		"tool":                  ToolInteractionChecker,
		"drugs_checked":         args.DrugList,
		"rxnorm_results":        rxResults,
		"openfda_results":       fdaResults,
		"pubmed_evidence_links": []search.Result{},
		"note":                  interactionNote,
	}
	q := fmt.Sprintf("%s %s drug interaction site:pubmed.ncbi.nlm.nih.gov", args.DrugList[0], args.DrugList[1])
	if hits, err := b.webSearch(ctx, q, 5); err != nil {
		out["errors"] = map[string]string{"WebSearch": err.Error()}
	} else {
		out["pubmed_evidence_links"] = hits
		found = found || len(hits) > 0
	}
	if !found {
		out["error"] = noDataMessage
	}
	return out, nil
}

func (b *ResearchBackend) Reimbursement(ctx context.Context, args ReimbursementArgs) (Result, error) {
	drug := args.DrugName
	errs := map[string]string{}
	found := false
	out := Result{
		"tool":                ToolReimbursementNavigator,
		"drug_name":           drug,
		"government_sources":  []search.Result{},
		"india_price_sources": []search.Result{},
		"note":                reimbursementNote,
	}

	gov := drug + " site:janaushadhi.gov.in OR site:nppaindia.nic.in OR site:pmjay.gov.in OR site:hospitals.pmjay.gov.in"
	if hits, err := b.webSearch(ctx, gov, 8); err != nil {
		errs["government_sources"] = err.Error()
	} else {
		out["government_sources"] = hits
		found = len(hits) > 0
	}

	price := drug + " price site:1mg.com OR site:pharmeasy.in"
	if hits, err := b.webSearch(ctx, price, 6); err != nil {
		errs["india_price_sources"] = err.Error()
	} else {
		out["india_price_sources"] = hits
		found = found || len(hits) > 0
	}

	if len(errs) > 0 {
		out["errors"] = errs
	}
	if !found {
		out["error"] = noDataMessage
	}
	return out, nil
}

// ---------- upstream lookups ----------

func (b *ResearchBackend) get(ctx context.Context, c *resty.Client, path string, query map[string]string, result any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if err != nil {
		logx.Warn().Err(err).Str("url", c.BaseURL+path).Msg("research upstream request failed")
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

type openFDAResponse struct {
	Results []map[string]any `json:"results"`
}

var labelSections = []string{
	"mechanism_of_action",
	"indications_and_usage",
	"contraindications",
	"drug_interactions",
	"warnings_and_precautions",
}

func (b *ResearchBackend) openFDALabel(ctx context.Context, drug string) (map[string]any, error) {
	var body openFDAResponse
	err := b.get(ctx, b.openfda, "/drug/label.json", map[string]string{
		"search": "openfda.generic_name:" + drug,
		"limit":  "1",
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("OpenFDA API failed: %w", err)
	}
	if len(body.Results) == 0 {
		return nil, errors.New("No OpenFDA results found")
	}
	label := map[string]any{"drug_name": drug}
	for _, section := range labelSections {
		v, ok := body.Results[0][section]
		if !ok {
			v = []any{}
		}
		label[section] = v
	}
	return label, nil
}

type rxcuiResponse struct {
	IDGroup struct {
		RxnormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

func (b *ResearchBackend) rxcui(ctx context.Context, drug string) (string, error) {
	var body rxcuiResponse
	if err := b.get(ctx, b.rxnav, "/REST/rxcui.json", map[string]string{"name": drug}, &body); err != nil {
		return "", fmt.Errorf("RxNorm API failed: %w", err)
	}
	if len(body.IDGroup.RxnormID) == 0 {
		return "", errors.New("No RxCUI found")
	}
	return body.IDGroup.RxnormID[0], nil
}

func (b *ResearchBackend) rxInteractions(ctx context.Context, rxcui string) (map[string]any, error) {
	body := map[string]any{}
	if err := b.get(ctx, b.rxnav, "/REST/interaction/interaction.json", map[string]string{"rxcui": rxcui}, &body); err != nil {
		return nil, fmt.Errorf("RxNorm interaction API failed: %w", err)
	}
	return body, nil
}

type pubChemCIDResponse struct {
	IdentifierList struct {
		CID []int64 `json:"CID"`
	} `json:"IdentifierList"`
}

type pubChemSection struct {
	Information []struct {
		Value struct {
			StringWithMarkup []struct {
				String string `json:"String"`
			} `json:"StringWithMarkup"`
		} `json:"Value"`
	} `json:"Information"`
	Section []pubChemSection `json:"Section"`
}

type pubChemRecord struct {
	Record struct {
		Section []pubChemSection `json:"Section"`
	} `json:"Record"`
}

func (b *ResearchBackend) pubChemMechanism(ctx context.Context, drug string) ([]string, error) {
	var ids pubChemCIDResponse
	if err := b.get(ctx, b.pubchem, "/rest/pug/compound/name/"+url.PathEscape(drug)+"/cids/JSON", nil, &ids); err != nil {
		return nil, fmt.Errorf("PubChem CID lookup failed: %w", err)
	}
	if len(ids.IdentifierList.CID) == 0 {
		return nil, errors.New("PubChem CID not found")
	}

	var record pubChemRecord
	cid := strconv.FormatInt(ids.IdentifierList.CID[0], 10)
	if err := b.get(ctx, b.pubchem, "/rest/pug_view/data/compound/"+cid+"/JSON", nil, &record); err != nil {
		return nil, fmt.Errorf("PubChem description failed: %w", err)
	}
	return mechanismSnippets(record.Record.Section), nil
}

func (b *ResearchBackend) webSearch(ctx context.Context, query string, num int) ([]search.Result, error) {
	if b.web == nil {
		return nil, search.ErrNotConfigured
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.web.Search(ctx, query, num)
}

// ---------- text extraction ----------

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// splitSentences splits after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// extractKeywordSentences returns up to 15 sentences mentioning any keyword.
func extractKeywordSentences(text string, keywords []string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, s := range splitSentences(text) {
		lower := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, strings.TrimSpace(s))
				break
			}
		}
		if len(out) == maxSnippetsPerText {
			break
		}
	}
	return out
}

// mechanismSnippets walks the PubChem section tree depth first and keeps the
// first 20 distinct keyword sentences.
func mechanismSnippets(sections []pubChemSection) []string {
	seen := map[string]struct{}{}
	out := []string{}
	stack := append([]pubChemSection(nil), sections...)
	for len(stack) > 0 && len(out) < maxSnippets {
		sec := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, info := range sec.Information {
			for _, s := range info.Value.StringWithMarkup {
				for _, sentence := range extractKeywordSentences(s.String, mechanismKeywords) {
					if _, dup := seen[sentence]; dup {
						continue
					}
					seen[sentence] = struct{}{}
					out = append(out, sentence)
					if len(out) == maxSnippets {
						return out
					}
				}
			}
		}
		stack = append(stack, sec.Section...)
	}
	return out
}

var _ Backend = (*ResearchBackend)(nil)
