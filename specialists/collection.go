package specialists

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/analytics"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

const collectionInstructions = `You are a collections specialist agent for a company's decision-making system.
Your role is to analyze accounts receivable and collections data to help higher management make informed decisions.

Key responsibilities:
- Monitor accounts receivable aging
- Track collection efficiency
- Analyze payment trends
- Identify high-risk accounts
- Recommend strategies to improve cash flow

You have access to collections data that is updated daily. Use this data to provide accurate,
data-driven insights and recommendations. When answering questions, always cite relevant data
points to support your conclusions.

If you cannot answer a question with the data available, or if the question falls outside
your collections expertise, indicate that the question should be redirected to another agent.`

// CollectionTools returns the collection specialist's tools.
func CollectionTools(p data.Provider) []decisionkit.Tool {
	return []decisionkit.Tool{
		tools.NewFuncTool("get_accounts_receivable_status",
			"Get current accounts receivable status and aging.",
			[]tools.Param{
				{Name: "customer_id", Description: "optional customer id"},
				{Name: "aging_bucket", Description: "current, 1_30, 31_60, 61_90 or over_90"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return receivableStatus(p.Get(ctx, decisionkit.DomainCollection),
					params.String("customer_id", ""), params.String("aging_bucket", ""))
			}),
		tools.NewFuncTool("analyze_payment_trends",
			"Analyze payment trends and collection efficiency.",
			[]tools.Param{
				{Name: "time_period", Default: "current", Description: "current, last_month, last_quarter or ytd"},
				{Name: "customer_segment", Description: "optional customer segment"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return paymentTrends(p.Get(ctx, decisionkit.DomainCollection),
					params.String("time_period", "current"), params.String("customer_segment", ""))
			}),
		tools.NewFuncTool("identify_high_risk_accounts",
			"Identify high-risk accounts based on payment history.",
			[]tools.Param{{Name: "risk_level", Default: "high", Description: "high, medium, low or all"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return riskAccounts(p.Get(ctx, decisionkit.DomainCollection), params.String("risk_level", "high"))
			}),
	}
}

func receivableStatus(ds data.Dataset, customerID, bucket string) tools.Result {
	ar, ok := ds.Map("accounts_receivable")
	if !ok {
		return tools.ErrorResult("No accounts receivable data available")
	}

	if customerID != "" {
		invoices := filterRecords(data.Records(ar["invoices"]), "customer_id", customerID)
		if len(invoices) == 0 {
			return tools.ErrorResult("No accounts receivable data for customer '%s'", customerID)
		}
		var totalDue float64
		for _, inv := range invoices {
			totalDue += data.Number(inv["amount_due"])
		}
		return tools.Result{
			"customer_id": customerID,
			"total_due":   totalDue,
			"invoices":    invoices,
		}
	}

	aging, _ := ar.Map("aging")
	if bucket != "" {
		if !aging.Has(bucket) {
			return tools.ErrorResult("Aging bucket '%s' not found", bucket)
		}
		return tools.Result{"aging": map[string]interface{}{bucket: aging[bucket]}}
	}

	if aging == nil {
		aging = data.Dataset{}
	}
	return tools.Result{
		"total_ar":                 ar.GetOr("total_ar", 0),
		"aging":                    aging,
		"average_days_outstanding": ar.GetOr("average_days_outstanding", 0),
		"total_overdue":            ar.GetOr("total_overdue", 0),
	}
}

func paymentTrends(ds data.Dataset, period, segment string) tools.Result {
	trends, ok := ds.Map("payment_trends")
	if !ok {
		return tools.ErrorResult("No payment trends data available")
	}
	if period != "current" && trends.Has("periods") {
		periods, _ := trends.Map("periods")
		sub, ok := periods.Map(period)
		if !ok {
			return tools.ErrorResult("Time period '%s' not found in payment trends data", period)
		}
		trends = sub
	}
	if segment != "" && trends.Has("segments") {
		segments, _ := trends.Map("segments")
		if !segments.Has(segment) {
			return tools.ErrorResult("Customer segment '%s' not found", segment)
		}
		return tools.Result{"segment_trends": segments[segment]}
	}

	byMonth := trends.GetOr("trend_by_month", []interface{}{})
	result := tools.Result{
		"collection_efficiency": trends.GetOr("collection_efficiency", 0),
		"average_days_to_pay":   trends.GetOr("average_days_to_pay", 0),
		"payment_methods":       trends.GetOr("payment_methods", map[string]interface{}{}),
		"trend_by_month":        byMonth,
	}

	months := data.Records(byMonth)
	efficiency := make([]float64, 0, len(months))
	for _, m := range months {
		if m.Has("efficiency") {
			efficiency = append(efficiency, m.Number("efficiency"))
		}
	}
	if spread, err := analytics.MeanStdDev(efficiency); err == nil {
		result["efficiency_stats"] = spread
	}
	if trend, err := analytics.FitTrend(efficiency); err == nil {
		result["efficiency_trend"] = trend
	}
	return result
}

func riskAccounts(ds data.Dataset, level string) tools.Result {
	risk, ok := ds.Map("risk_assessment")
	if !ok {
		return tools.ErrorResult("No risk assessment data available")
	}
	switch level {
	case "all":
		return tools.Result{
			"high_risk":   risk.GetOr("high_risk", []interface{}{}),
			"medium_risk": risk.GetOr("medium_risk", []interface{}{}),
			"low_risk":    risk.GetOr("low_risk", []interface{}{}),
		}
	case "high", "medium", "low":
		key := level + "_risk"
		if !risk.Has(key) {
			return tools.ErrorResult("No %s risk data available", level)
		}
		return tools.Result{key: risk[key]}
	}
	return tools.ErrorResult("Invalid risk level: %s", level)
}
