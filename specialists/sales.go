package specialists

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/analytics"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

const salesInstructions = `You are a sales specialist agent for a company's decision-making system.
Your role is to analyze sales data and provide insights to help higher management make informed decisions.

Key responsibilities:
- Track revenue and sales performance metrics
- Analyze customer purchase patterns
- Monitor sales team performance
- Generate sales forecasts
- Identify opportunities for revenue growth

You have access to sales data that is updated daily. Use this data to provide accurate,
data-driven insights and recommendations. When answering questions, always cite relevant data
points to support your conclusions.

If you cannot answer a question with the data available, or if the question falls outside
your sales expertise, indicate that the question should be redirected to another agent.`

// SalesTools returns the sales specialist's tools.
func SalesTools(p data.Provider) []decisionkit.Tool {
	periodParam := tools.Param{Name: "time_period", Default: "current", Description: "current, last_month, last_quarter or ytd"}
	return []decisionkit.Tool{
		tools.NewFuncTool("get_sales_metrics",
			"Get sales metrics from the latest data.",
			[]tools.Param{{Name: "metric_name", Description: "optional metric key"}, periodParam},
			func(ctx context.Context, params tools.Params) tools.Result {
				ds, errResult := salesPeriod(p.Get(ctx, decisionkit.DomainSales), params.String("time_period", "current"))
				if errResult != nil {
					return errResult
				}
				return selectKey(ds, params.String("metric_name", ""), "Metric '%s' not found in sales data")
			}),
		tools.NewFuncTool("analyze_sales_performance",
			"Analyze sales performance across different dimensions.",
			[]tools.Param{{Name: "dimension", Default: "overall", Description: "overall, by_product, by_region or by_rep"}, periodParam},
			func(ctx context.Context, params tools.Params) tools.Result {
				ds, errResult := salesPeriod(p.Get(ctx, decisionkit.DomainSales), params.String("time_period", "current"))
				if errResult != nil {
					return errResult
				}
				return salesPerformance(ds, params.String("dimension", "overall"))
			}),
		tools.NewFuncTool("forecast_sales",
			"Generate sales forecasts based on historical data.",
			[]tools.Param{
				{Name: "forecast_period", Default: "next_quarter", Description: "next_month, next_quarter or next_year"},
				{Name: "product_id", Description: "optional product id"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return forecastSales(p.Get(ctx, decisionkit.DomainSales),
					params.String("forecast_period", "next_quarter"), params.String("product_id", ""))
			}),
	}
}

// salesPeriod narrows the dataset to periods[period] for non-current
// periods. Datasets without a periods table are used as is.
func salesPeriod(ds data.Dataset, period string) (data.Dataset, tools.Result) {
	if period == "current" || !ds.Has("periods") {
		return ds, nil
	}
	periods, _ := ds.Map("periods")
	sub, ok := periods.Map(period)
	if !ok {
		return nil, tools.ErrorResult("Time period '%s' not found in sales data", period)
	}
	return sub, nil
}

func salesPerformance(ds data.Dataset, dimension string) tools.Result {
	switch {
	case dimension == "overall":
		return tools.Result{
			"total_revenue":     ds.GetOr("total_revenue", 0),
			"total_units":       ds.GetOr("total_units", 0),
			"average_deal_size": ds.GetOr("avg_deal_size", 0),
			"conversion_rate":   ds.GetOr("conversion_rate", 0),
		}
	case dimension == "by_product" && ds.Has("products"):
		return tools.Result{"product_performance": ds["products"]}
	case dimension == "by_region" && ds.Has("regions"):
		return tools.Result{"regional_performance": ds["regions"]}
	case dimension == "by_rep" && ds.Has("sales_reps"):
		return tools.Result{"rep_performance": ds["sales_reps"]}
	}
	return tools.ErrorResult("Analysis dimension '%s' not available", dimension)
}

func forecastSales(ds data.Dataset, period, productID string) tools.Result {
	if !ds.Has("forecasts") {
		return trendForecast(ds)
	}
	forecasts, _ := ds.Map("forecasts")
	forecast, ok := forecasts.Map(period)
	if !ok {
		return tools.ErrorResult("Forecast period '%s' not available", period)
	}
	if productID != "" {
		if byProduct, ok := forecast.Map("by_product"); ok && byProduct.Has(productID) {
			return tools.Result{"product_forecast": byProduct[productID]}
		}
		return tools.ErrorResult("Forecast for product '%s' not available", productID)
	}
	return tools.Result{"forecast": forecast}
}

// trendForecast fits a least-squares line over the product revenues when
// the dataset carries no forecast table.
func trendForecast(ds data.Dataset) tools.Result {
	products := data.Records(ds["products"])
	revenues := make([]float64, 0, len(products))
	for _, p := range products {
		revenues = append(revenues, data.Number(p["revenue"]))
	}
	trend, err := analytics.FitTrend(revenues)
	if err != nil {
		return tools.ErrorResult("No forecast data available")
	}
	return tools.Result{
		"forecast": map[string]interface{}{
			"method":            "linear_trend",
			"basis":             "product_revenue",
			"trend":             trend,
			"projected_revenue": analytics.Round2(trend.Project(1)),
		},
	}
}
