package specialists

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

const generalInstructions = `You are a decision-making assistant for higher management. You have access to data
from multiple business domains including marketing, sales, logistics, and collections.

Your role is to analyze this data and provide insights to help executives make informed decisions.

When answering questions:
1. Use the appropriate tool to fetch relevant data
2. Analyze the data to extract meaningful insights
3. Provide clear, concise recommendations based on the data
4. Support your conclusions with specific data points

Be professional, precise, and focus on actionable insights.`

// GeneralTools returns one data tool per domain. Keys may be dotted paths
// into the dataset, e.g. "accounts_receivable.aging".
func GeneralTools(p data.Provider) []decisionkit.Tool {
	return []decisionkit.Tool{
		tools.NewFuncTool("get_marketing_metrics",
			"Get marketing metrics from the latest data.",
			[]tools.Param{{Name: "metric_name", Description: "optional key or dotted path"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return lookupPath(p.Get(ctx, decisionkit.DomainMarketing),
					params.String("metric_name", ""), "Metric '%s' not found in marketing data")
			}),
		tools.NewFuncTool("get_sales_data",
			"Get sales metrics from the latest data.",
			[]tools.Param{
				{Name: "metric_name", Description: "optional key or dotted path"},
				{Name: "time_period", Default: "current", Description: "current, last_month or last_quarter"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				ds, errResult := salesPeriod(p.Get(ctx, decisionkit.DomainSales), params.String("time_period", "current"))
				if errResult != nil {
					return errResult
				}
				return lookupPath(ds, params.String("metric_name", ""), "Metric '%s' not found in sales data")
			}),
		tools.NewFuncTool("get_logistics_data",
			"Get logistics data including inventory and shipping information.",
			[]tools.Param{{Name: "category", Description: "optional key or dotted path"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return lookupPath(p.Get(ctx, decisionkit.DomainLogistics),
					params.String("category", ""), "Category '%s' not found in logistics data")
			}),
		tools.NewFuncTool("get_collection_data",
			"Get accounts receivable and collection data.",
			[]tools.Param{{Name: "category", Description: "optional key or dotted path"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return lookupPath(p.Get(ctx, decisionkit.DomainCollection),
					params.String("category", ""), "Category '%s' not found in collection data")
			}),
	}
}

// lookupPath behaves like selectKey for top-level keys and falls back to a
// gjson path query for nested ones.
func lookupPath(ds data.Dataset, path, notFound string) tools.Result {
	if path == "" || ds.Has(path) {
		return selectKey(ds, path, notFound)
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return tools.ErrorResult("failed to encode dataset: %v", err)
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return tools.ErrorResult(notFound, path)
	}
	return tools.Result{path: res.Value()}
}
