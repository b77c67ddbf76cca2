package specialists

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/analytics"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

const logisticsInstructions = `You are a logistics specialist agent for a company's decision-making system.
Your role is to analyze supply chain and logistics data to help higher management make informed decisions.

Key responsibilities:
- Monitor inventory levels and warehouse capacity
- Track shipping and delivery performance
- Analyze supply chain efficiency
- Identify bottlenecks in the logistics process
- Recommend improvements for logistics operations

You have access to logistics data that is updated daily. Use this data to provide accurate,
data-driven insights and recommendations. When answering questions, always cite relevant data
points to support your conclusions.

If you cannot answer a question with the data available, or if the question falls outside
your logistics expertise, indicate that the question should be redirected to another agent.`

// LogisticsTools returns the logistics specialist's tools.
func LogisticsTools(p data.Provider) []decisionkit.Tool {
	return []decisionkit.Tool{
		tools.NewFuncTool("get_inventory_status",
			"Get current inventory status and warehouse capacity.",
			[]tools.Param{
				{Name: "product_id", Description: "optional product id"},
				{Name: "warehouse_id", Description: "optional warehouse id"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return inventoryStatus(p.Get(ctx, decisionkit.DomainLogistics),
					params.String("product_id", ""), params.String("warehouse_id", ""))
			}),
		tools.NewFuncTool("analyze_shipping_performance",
			"Analyze shipping and delivery performance metrics.",
			[]tools.Param{
				{Name: "carrier_id", Description: "optional carrier id"},
				{Name: "time_period", Default: "current", Description: "current, last_month or last_quarter"},
			},
			func(ctx context.Context, params tools.Params) tools.Result {
				return shippingPerformance(p.Get(ctx, decisionkit.DomainLogistics),
					params.String("carrier_id", ""), params.String("time_period", "current"))
			}),
		tools.NewFuncTool("evaluate_supply_chain",
			"Evaluate supply chain efficiency and identify bottlenecks.",
			[]tools.Param{{Name: "aspect", Default: "overall", Description: "overall, lead_times, costs or suppliers"}},
			func(ctx context.Context, params tools.Params) tools.Result {
				return supplyChain(p.Get(ctx, decisionkit.DomainLogistics), params.String("aspect", "overall"))
			}),
	}
}

func filterRecords(records []data.Dataset, key, value string) []data.Dataset {
	var out []data.Dataset
	for _, r := range records {
		if data.String(r[key]) == value {
			out = append(out, r)
		}
	}
	return out
}

func inventoryStatus(ds data.Dataset, productID, warehouseID string) tools.Result {
	if !ds.Has("inventory") {
		return tools.ErrorResult("No inventory data available")
	}
	inventory := data.Records(ds["inventory"])

	if productID != "" {
		items := filterRecords(inventory, "product_id", productID)
		if len(items) == 0 {
			return tools.ErrorResult("No inventory data for product '%s'", productID)
		}
		return tools.Result{"product_inventory": items}
	}
	if warehouseID != "" {
		items := filterRecords(inventory, "warehouse_id", warehouseID)
		if len(items) == 0 {
			return tools.ErrorResult("No inventory data for warehouse '%s'", warehouseID)
		}
		return tools.Result{"warehouse_inventory": items}
	}

	lines := make([]analytics.InventoryItem, 0, len(inventory))
	for _, item := range inventory {
		lines = append(lines, analytics.InventoryItem{
			Quantity: data.Number(item["quantity"]),
			UnitCost: data.Number(item["unit_cost"]),
			Status:   data.String(item["status"]),
		})
	}
	warehouses := ds.GetOr("warehouses", []interface{}{})
	return tools.Result{
		"total_inventory":   len(inventory),
		"warehouses":        warehouses,
		"inventory_summary": analytics.SummarizeInventory(lines),
	}
}

func shippingPerformance(ds data.Dataset, carrierID, period string) tools.Result {
	shipping, ok := ds.Map("shipping")
	if !ok {
		return tools.ErrorResult("No shipping data available")
	}
	if period != "current" && shipping.Has("periods") {
		periods, _ := shipping.Map("periods")
		sub, ok := periods.Map(period)
		if !ok {
			return tools.ErrorResult("Time period '%s' not found in shipping data", period)
		}
		shipping = sub
	}

	carriers := shipping.GetOr("carriers", []interface{}{})
	if carrierID != "" {
		matched := filterRecords(data.Records(carriers), "carrier_id", carrierID)
		if len(matched) == 0 {
			return tools.ErrorResult("No shipping data for carrier '%s'", carrierID)
		}
		return tools.Result{"carrier_performance": matched[0]}
	}

	return tools.Result{
		"total_deliveries":      shipping.GetOr("total_deliveries", 0),
		"on_time_deliveries":    shipping.GetOr("on_time_deliveries", 0),
		"on_time_percentage":    analytics.OnTimePercentage(shipping.Number("on_time_deliveries"), shipping.Number("total_deliveries")),
		"average_delivery_time": shipping.GetOr("average_delivery_time", 0),
		"carriers":              carriers,
	}
}

func supplyChain(ds data.Dataset, aspect string) tools.Result {
	sc, ok := ds.Map("supply_chain")
	if !ok {
		return tools.ErrorResult("No supply chain data available")
	}
	switch {
	case aspect == "overall":
		return tools.Result{
			"efficiency_score":  sc.GetOr("efficiency_score", 0),
			"bottlenecks":       sc.GetOr("bottlenecks", []interface{}{}),
			"improvement_areas": sc.GetOr("improvement_areas", []interface{}{}),
		}
	case (aspect == "lead_times" || aspect == "costs" || aspect == "suppliers") && sc.Has(aspect):
		return tools.Result{aspect: sc[aspect]}
	}
	return tools.ErrorResult("Supply chain aspect '%s' not available", aspect)
}
