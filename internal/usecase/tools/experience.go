package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
)

const experienceLocationsName = "experience_locations"

type experienceLocations struct {
	snap *domain.Snapshot
}

func (t *experienceLocations) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: experienceLocationsName,
		Desc: "Finds the locations of candidates with an exact amount of experience. " +
			"The experience must match the Exp column exactly, for example '2y 6m'.",
		ParamsOneOf: stringParams(map[string]*schema.ParameterInfo{
			"experience": {Desc: "Exact experience string, e.g. 2y 6m", Required: true},
		}),
	}, nil
}

// InvokableRun compares cells byte for byte; "2y 06m" does not match "2y 6m".
func (t *experienceLocations) InvokableRun(_ context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Experience string `json:"experience"`
	}
	if msg, ok := decodeArgs(experienceLocationsName, argsJSON, &args); !ok {
		return msg, nil
	}
	if args.Experience == "" {
		return "Invalid arguments for experience_locations: experience is required.", nil
	}
	if msg, bad := notReady(t.snap); bad {
		return msg, nil
	}

	table := t.snap.Table
	expCol, ok := table.Lookup(candidate.ColumnExp)
	if !ok {
		return missingColumn(candidate.ColumnExp), nil
	}
	locCol, ok := table.Lookup(candidate.ColumnLocation)
	if !ok {
		return missingColumn(candidate.ColumnLocation), nil
	}

	var matched bool
	var locations []string
	for i := range table.Len() {
		if table.Value(i, expCol) != args.Experience {
			continue
		}
		matched = true
		if loc := table.Value(i, locCol); loc != "" {
			locations = append(locations, loc)
		}
	}
	if !matched {
		return "No candidates found with that exact experience.", nil
	}
	if len(locations) == 0 {
		return fmt.Sprintf("No locations are recorded for candidates with %s of experience.", args.Experience), nil
	}
	return fmt.Sprintf("The locations for candidates with %s of experience are: %s",
		args.Experience, strings.Join(locations, ", ")), nil
}
