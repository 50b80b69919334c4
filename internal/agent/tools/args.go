package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTool is returned for a tool name outside the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports arguments that do not satisfy a tool's schema.
type ArgumentError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("Invalid arguments for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("Invalid arguments for %s: %s %s", e.Tool, e.Field, e.Reason)
}

// Args is one validated tool call. Exactly one variant exists per tool.
type Args interface {
	ToolName() string
}

type DrugInfoArgs struct {
	DrugName string `json:"drug_name"`
}

type ComparisonArgs struct {
	DrugNames []string `json:"drug_names"`
}

type InteractionArgs struct {
	DrugList []string `json:"drug_list"`
}

type ReimbursementArgs struct {
	DrugName string `json:"drug_name"`
}

func (DrugInfoArgs) ToolName() string      { return ToolDrugInformation }
func (ComparisonArgs) ToolName() string    { return ToolComparativeAnalysis }
func (InteractionArgs) ToolName() string   { return ToolInteractionChecker }
func (ReimbursementArgs) ToolName() string { return ToolReimbursementNavigator }

func (a *DrugInfoArgs) validate() error {
	a.DrugName = strings.TrimSpace(a.DrugName)
	return requireString(ToolDrugInformation, "drug_name", a.DrugName)
}

func (a *ComparisonArgs) validate() error {
	var err error
	a.DrugNames, err = requireList(ToolComparativeAnalysis, "drug_names", a.DrugNames, 2)
	return err
}

func (a *InteractionArgs) validate() error {
	var err error
	a.DrugList, err = requireList(ToolInteractionChecker, "drug_list", a.DrugList, 2)
	return err
}

func (a *ReimbursementArgs) validate() error {
	a.DrugName = strings.TrimSpace(a.DrugName)
	return requireString(ToolReimbursementNavigator, "drug_name", a.DrugName)
}

// ParseArgs decodes JSON arguments into the variant for name and validates
// it. Unknown names wrap ErrUnknownTool; schema violations are *ArgumentError.
func ParseArgs(name, arguments string) (Args, error) {
	switch name {
	case ToolDrugInformation:
		var a DrugInfoArgs
		if err := decode(name, arguments, &a); err != nil {
			return nil, err
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return a, nil
	case ToolComparativeAnalysis:
		var a ComparisonArgs
		if err := decode(name, arguments, &a); err != nil {
			return nil, err
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return a, nil
	case ToolInteractionChecker:
		var a InteractionArgs
		if err := decode(name, arguments, &a); err != nil {
			return nil, err
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return a, nil
	case ToolReimbursementNavigator:
		var a ReimbursementArgs
		if err := decode(name, arguments, &a); err != nil {
			return nil, err
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func decode(tool, arguments string, dst any) error {
	arguments = strings.TrimSpace(arguments)
	if arguments == "" {
		arguments = "{}"
	}
	if err := json.Unmarshal([]byte(arguments), dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ArgumentError{Tool: tool, Field: typeErr.Field, Reason: "must be " + expectedType(typeErr)}
		}
		return &ArgumentError{Tool: tool, Reason: "arguments are not a valid JSON object"}
	}
	return nil
}

func expectedType(e *json.UnmarshalTypeError) string {
	if e.Type == nil {
		return "a valid value"
	}
	switch e.Type.Kind().String() {
	case "slice":
		return "an array of strings"
	case "string":
		return "a string"
	}
	return e.Type.String()
}

func requireString(tool, field, v string) error {
	if v == "" {
		return &ArgumentError{Tool: tool, Field: field, Reason: "is required"}
	}
	return nil
}

func requireList(tool, field string, items []string, minItems int) ([]string, error) {
	cleaned := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			cleaned = append(cleaned, it)
		}
	}
	if len(cleaned) < minItems {
		return nil, &ArgumentError{Tool: tool, Field: field, Reason: fmt.Sprintf("requires at least %d drug names", minItems)}
	}
	return cleaned, nil
}
