package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/bpm"
)

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse reports an undecoded response and closes its body. JSON
// bodies are echoed.
func printResponse(cmd *cli.Command, resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	out := struct {
		Status int             `json:"status"`
		Body   json.RawMessage `json:"body,omitempty"`
	}{Status: resp.StatusCode}
	if json.Valid(body) {
		out.Body = body
	}
	return printJSON(cmd, out)
}

// requireArgs returns the positional arguments, failing if fewer than names are given.
func requireArgs(cmd *cli.Command, names ...string) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < len(names) {
		return nil, fmt.Errorf("missing argument: %s", strings.Join(names[len(args):], ", "))
	}
	return args, nil
}

// parseVariables parses name=value pairs. Values that are valid JSON keep their
// type (numbers, booleans, objects); everything else is a string.
func parseVariables(pairs []string) ([]bpm.RestVariable, error) {
	vars := make([]bpm.RestVariable, 0, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q: expected name=value", pair)
		}
		vars = append(vars, bpm.RestVariable{Name: name, Value: parseValue(raw)})
	}
	return vars, nil
}

// parseConditions parses name=value pairs into equality conditions.
func parseConditions(pairs []string) ([]bpm.QueryVariable, error) {
	vars, err := parseVariables(pairs)
	if err != nil {
		return nil, err
	}
	conds := make([]bpm.QueryVariable, 0, len(vars))
	for _, v := range vars {
		conds = append(conds, bpm.QueryVariable{Name: v.Name, Operation: bpm.QueryEquals, Value: v.Value})
	}
	return conds, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func optString(cmd *cli.Command, name string) *string {
	if !cmd.IsSet(name) {
		return nil
	}
	return bpm.Ptr(cmd.String(name))
}

func optBool(cmd *cli.Command, name string) *bool {
	if !cmd.IsSet(name) {
		return nil
	}
	return bpm.Ptr(cmd.Bool(name))
}

func optInt(cmd *cli.Command, name string) *int {
	if !cmd.IsSet(name) {
		return nil
	}
	return bpm.Ptr(cmd.Int(name))
}

// optTime parses an ISO-8601 timestamp, including the offset forms without a
// colon that BPM servers emit (2024-05-01T10:00:00.000+0000).
func optTime(cmd *cli.Command, name string) (*time.Time, error) {
	if !cmd.IsSet(name) {
		return nil, nil
	}
	t, err := iso8601.ParseString(cmd.String(name))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &t, nil
}

// pagingFlags are shared by list and query commands.
func pagingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "start", Usage: "index of the first result"},
		&cli.IntFlag{Name: "size", Usage: "maximum number of results"},
		&cli.StringFlag{Name: "sort", Usage: "property to sort on"},
		&cli.StringFlag{Name: "order", Usage: "sort order (asc|desc)"},
	}
}
