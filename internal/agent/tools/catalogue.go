package tools

import (
	"github.com/cloudwego/eino/schema"
)

const (
	ToolDrugInformation        = "drug_information_retrieval"
	ToolComparativeAnalysis    = "comparative_analysis"
	ToolInteractionChecker     = "drug_interaction_checker"
	ToolReimbursementNavigator = "reimbursement_navigator"
)

// Names lists the registered tools in catalogue order.
var Names = []string{
	ToolDrugInformation,
	ToolComparativeAnalysis,
	ToolInteractionChecker,
	ToolReimbursementNavigator,
}

// ToolInfos returns the schema catalogue bound to the reasoning model.
func ToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolDrugInformation,
			Desc: "Retrieve drug information (mechanism of action, dosing, safety, indications) for one drug.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"drug_name": {
					Type:     schema.String,
					Desc:     "Generic or brand name of the drug, e.g. metformin.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolComparativeAnalysis,
			Desc: "Retrieve comparison data between two or more drugs.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"drug_names": {
					Type:     schema.Array,
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
					Desc:     "Drug names to compare. At least 2 items.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolInteractionChecker,
			Desc: "Retrieve drug-drug interaction information for two or more drugs.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"drug_list": {
					Type:     schema.Array,
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
					Desc:     "Drugs to check against each other. At least 2 items.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolReimbursementNavigator,
			Desc: "Retrieve reimbursement, insurance coverage and formulary details for one drug.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"drug_name": {
					Type:     schema.String,
					Desc:     "Generic or brand name of the drug.",
					Required: true,
				},
			}),
		},
	}
}
