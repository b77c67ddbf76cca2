package data

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// ErrUnsupportedPayload is returned for payloads that are neither a JSON
// object, a JSON array of records nor CSV.
var ErrUnsupportedPayload = errors.New("unsupported payload")

// recordTypeColumn lets a single CSV file carry several record kinds.
const recordTypeColumn = "record_type"

// layout describes where CSV or bare-array records land in a domain dataset.
type layout struct {
	// defaultKind receives rows without a record_type.
	defaultKind string
	// lists maps a record kind to the dataset key holding its rows.
	lists map[string]string
	// keyed maps a record kind to an object keyed by one of its columns.
	keyed map[string]keyedTarget
	// totals derives summary figures from the rows.
	totals func(ds Dataset)
}

type keyedTarget struct {
	key    string
	column string
}

var layouts = map[decisionkit.Domain]layout{
	decisionkit.DomainMarketing: {
		defaultKind: "campaign",
		lists:       map[string]string{"campaign": "campaigns"},
		keyed:       map[string]keyedTarget{"channel": {key: "channel_performance", column: "channel"}},
		totals: func(ds Dataset) {
			if !ds.Has("total_marketing_spend") {
				ds["total_marketing_spend"] = sumColumn(ds["campaigns"], "cost")
			}
		},
	},
	decisionkit.DomainSales: {
		defaultKind: "product",
		lists: map[string]string{
			"product": "products",
			"region":  "regions",
			"rep":     "sales_reps",
		},
		totals: func(ds Dataset) {
			if !ds.Has("total_revenue") {
				ds["total_revenue"] = sumColumn(ds["products"], "revenue")
			}
			if !ds.Has("total_units") {
				ds["total_units"] = sumColumn(ds["products"], "units")
			}
		},
	},
	decisionkit.DomainLogistics: {
		defaultKind: "inventory",
		lists: map[string]string{
			"inventory": "inventory",
			"warehouse": "warehouses",
		},
	},
	decisionkit.DomainCollection: {
		defaultKind: "invoice",
		lists:       map[string]string{"invoice": "invoices"},
		totals: func(ds Dataset) {
			invoices := ds["invoices"]
			delete(ds, "invoices")
			ar := Dataset{
				"invoices": invoices,
				"total_ar": sumColumn(invoices, "amount_due"),
			}
			var overdue float64
			for _, inv := range Records(invoices) {
				if strings.EqualFold(String(inv["status"]), "overdue") {
					overdue += Number(inv["amount_due"])
				}
			}
			ar["total_overdue"] = overdue
			ds["accounts_receivable"] = ar
		},
	},
}

// ProcessPayload converts an endpoint payload into a domain dataset.
// JSON objects pass through unchanged. JSON arrays and CSV tables are
// treated as record lists and arranged per the domain's layout.
func ProcessPayload(domain decisionkit.Domain, p *Payload) (Dataset, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedPayload)
	}
	body := bytes.TrimSpace(p.Body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedPayload)
	}
	ct := strings.ToLower(p.ContentType)

	switch {
	case body[0] == '{':
		var ds Dataset
		if err := json.Unmarshal(body, &ds); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return ds, nil
	case body[0] == '[':
		var rows []map[string]interface{}
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return arrange(domain, rows)
	case strings.Contains(ct, "csv") || looksLikeCSV(body):
		rows, err := ParseCSV(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		return arrange(domain, rows)
	}
	return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedPayload, p.ContentType)
}

// ParseCSV reads a headed CSV table. Numeric cells become float64 and
// headers are lower-cased with spaces replaced by underscores.
func ParseCSV(r io.Reader) ([]map[string]interface{}, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: CSV has no header", ErrUnsupportedPayload)
		}
		return nil, fmt.Errorf("invalid CSV payload: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}

	var rows []map[string]interface{}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV payload: %w", err)
		}
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = coerce(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func arrange(domain decisionkit.Domain, rows []map[string]interface{}) (Dataset, error) {
	l, ok := layouts[domain]
	if !ok {
		return nil, fmt.Errorf("%w: no record layout for domain %q", ErrUnsupportedPayload, domain)
	}

	ds := Dataset{}
	for _, row := range rows {
		kind := strings.ToLower(String(row[recordTypeColumn]))
		delete(row, recordTypeColumn)
		if kind == "" {
			kind = l.defaultKind
		}

		if key, ok := l.lists[kind]; ok {
			list, _ := ds[key].([]interface{})
			ds[key] = append(list, row)
			continue
		}
		if target, ok := l.keyed[kind]; ok {
			name := String(row[target.column])
			if name == "" {
				return nil, fmt.Errorf("%s record is missing %q", kind, target.column)
			}
			delete(row, target.column)
			group, _ := ds[target.key].(Dataset)
			if group == nil {
				group = Dataset{}
				ds[target.key] = group
			}
			group[name] = row
			continue
		}
		return nil, fmt.Errorf("unknown record type %q for domain %s", kind, domain)
	}
	if l.totals != nil {
		l.totals(ds)
	}
	return ds, nil
}

func coerce(cell string) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return cell
	}
	if n, err := strconv.ParseFloat(strings.TrimSuffix(cell, "%"), 64); err == nil {
		return n
	}
	return cell
}

func looksLikeCSV(body []byte) bool {
	firstLine, _, _ := bytes.Cut(body, []byte("\n"))
	return bytes.Contains(firstLine, []byte(",")) && !bytes.ContainsAny(firstLine[:1], "{[<")
}

func sumColumn(v interface{}, col string) float64 {
	var total float64
	for _, rec := range Records(v) {
		total += Number(rec[col])
	}
	return total
}
