package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/intent"
)

const noMatches = "No matching records found."

type rankedCTC struct {
	snap *domain.Snapshot
}

const rankedCTCName = "ctc_ranked_query"

func (t *rankedCTC) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: rankedCTCName,
		Desc: "Ranks candidates by CTC (INR). Understands 'lowest'/'min'/'least' for ascending order " +
			"(highest otherwise), 'top N' or 'N candidates' for the count (default 3) and a location " +
			"name present in the data. Pass the user's question verbatim.",
		ParamsOneOf: stringParams(map[string]*schema.ParameterInfo{
			"query": {Desc: "The user's question about CTC", Required: true},
		}),
	}, nil
}

type rankedResult struct {
	Order    intent.Order       `json:"order"`
	Location string             `json:"location,omitempty"`
	Count    int                `json:"count"`
	Results  []candidate.Record `json:"results"`
}

type scoredRow struct {
	row int
	ctc float64
}

func (t *rankedCTC) InvokableRun(_ context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if msg, ok := decodeArgs(rankedCTCName, argsJSON, &args); !ok {
		return msg, nil
	}
	if msg, bad := notReady(t.snap); bad {
		return msg, nil
	}

	table := t.snap.Table
	ctcCol, ok := table.Lookup(candidate.ColumnCTC)
	if !ok {
		return missingColumn(candidate.ColumnCTC), nil
	}
	locCol, hasLoc := table.Lookup(candidate.ColumnLocation)

	var locations []string
	if hasLoc {
		locations = table.Distinct(locCol)
	}
	in := intent.Parse(args.Query, locations)

	rows := make([]scoredRow, 0, table.Len())
	for i := range table.Len() {
		v, ok := candidate.ParseNumber(table.Value(i, ctcCol))
		if !ok {
			continue
		}
		if in.Location != "" && table.Value(i, locCol) != in.Location {
			continue
		}
		rows = append(rows, scoredRow{row: i, ctc: v})
	}
	if len(rows) == 0 {
		if in.Location != "" {
			return fmt.Sprintf("No matching records found for location %s.", in.Location), nil
		}
		return noMatches, nil
	}

	sort.SliceStable(rows, func(a, b int) bool {
		if in.Order == intent.Lowest {
			return rows[a].ctc < rows[b].ctc
		}
		return rows[a].ctc > rows[b].ctc
	})
	if len(rows) > in.TopN {
		rows = rows[:in.TopN]
	}

	res := rankedResult{Order: in.Order, Location: in.Location, Count: len(rows)}
	res.Results = make([]candidate.Record, len(rows))
	for i, r := range rows {
		res.Results[i] = table.Record(r.row)
	}

	out, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode ranked results: %w", err)
	}
	return string(out), nil
}

type allCTC struct {
	snap *domain.Snapshot
}

func (t *allCTC) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "all_ctc_values",
		Desc: "Returns every numeric CTC value (INR) in table order as a JSON array. " +
			"Use it for averages, totals and other calculations; it does no aggregation itself.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *allCTC) InvokableRun(_ context.Context, _ string, _ ...tool.Option) (string, error) {
	if msg, bad := notReady(t.snap); bad {
		return msg, nil
	}
	table := t.snap.Table
	ctcCol, ok := table.Lookup(candidate.ColumnCTC)
	if !ok {
		return missingColumn(candidate.ColumnCTC), nil
	}

	values := make([]float64, 0, table.Len())
	for i := range table.Len() {
		if v, ok := candidate.ParseNumber(table.Value(i, ctcCol)); ok {
			values = append(values, v)
		}
	}
	out, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode CTC values: %w", err)
	}
	return string(out), nil
}
