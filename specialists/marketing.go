package specialists

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/analytics"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

const marketingInstructions = `You are a marketing specialist agent for a company's decision-making system.
Your role is to analyze marketing data and provide insights to help higher management make informed decisions.

Key responsibilities:
- Analyze marketing campaign performance
- Track customer acquisition costs
- Monitor brand awareness metrics
- Evaluate marketing ROI
- Identify market trends and opportunities

You have access to marketing data that is updated daily. Use this data to provide accurate,
data-driven insights and recommendations. When answering questions, always cite relevant data
points to support your conclusions.

If you cannot answer a question with the data available, or if the question falls outside
your marketing expertise, indicate that the question should be redirected to another agent.`

// MarketingTools returns the marketing specialist's tools.
func MarketingTools(p data.Provider) []decisionkit.Tool {
	return []decisionkit.Tool{
		tools.NewFuncTool("get_marketing_metrics",
			"Get marketing metrics from the latest data.",
			[]tools.Param{{Name: "metric_name", Description: "optional metric key"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return selectKey(p.Get(ctx, decisionkit.DomainMarketing),
					params.String("metric_name", ""), "Metric '%s' not found in marketing data")
			}),
		tools.NewFuncTool("analyze_campaign_performance",
			"Analyze the performance of marketing campaigns.",
			[]tools.Param{{Name: "campaign_id", Description: "optional campaign id"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return analyzeCampaigns(p.Get(ctx, decisionkit.DomainMarketing), params.String("campaign_id", ""))
			}),
		tools.NewFuncTool("calculate_marketing_roi",
			"Calculate return on investment for marketing activities.",
			[]tools.Param{
				{Name: "campaign_id", Description: "optional campaign id"},
				{Name: "period", Default: "all", Description: "last_month, q1 or all"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return marketingROI(p.Get(ctx, decisionkit.DomainMarketing), params.String("campaign_id", ""))
			}),
	}
}

func analyzeCampaigns(ds data.Dataset, campaignID string) tools.Result {
	if !ds.Has("campaigns") {
		return tools.ErrorResult("No campaign data available")
	}
	if campaignID == "" {
		return tools.Result{"campaigns": ds["campaigns"]}
	}
	for _, c := range data.Records(ds["campaigns"]) {
		if data.String(c["id"]) == campaignID {
			return tools.Result{"campaign": c}
		}
	}
	return tools.ErrorResult("Campaign with ID '%s' not found", campaignID)
}

func marketingROI(ds data.Dataset, campaignID string) tools.Result {
	if !ds.Has("campaigns") {
		return tools.ErrorResult("No campaign data available for ROI calculation")
	}
	campaigns := data.Records(ds["campaigns"])
	if campaignID != "" {
		var matched []data.Dataset
		for _, c := range campaigns {
			if data.String(c["id"]) == campaignID {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			return tools.ErrorResult("Campaign with ID '%s' not found", campaignID)
		}
		campaigns = matched
	}

	results := make([]map[string]interface{}, 0, len(campaigns))
	for _, c := range campaigns {
		cost := data.Number(c["cost"])
		revenue := data.Number(c["revenue"])
		roi := analytics.Round2(analytics.ROI(revenue, cost))
		results = append(results, map[string]interface{}{
			"campaign_id":   c["id"],
			"campaign_name": c["name"],
			"cost":          c.GetOr("cost", 0),
			"revenue":       c.GetOr("revenue", 0),
			"roi":           roi,
			"roi_percent":   analytics.Percent(roi),
		})
	}
	return tools.Result{"roi_analysis": results}
}

// selectKey returns the whole dataset, or {key: value} when key is set.
func selectKey(ds data.Dataset, key, notFound string) tools.Result {
	if key == "" {
		return tools.Result(ds)
	}
	v, ok := ds[key]
	if !ok {
		return tools.ErrorResult(notFound, key)
	}
	return tools.Result{key: v}
}
