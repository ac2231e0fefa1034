package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/bpm"
)

func instancesCommand() *cli.Command {
	return &cli.Command{
		Name:    "instances",
		Aliases: []string{"inst"},
		Usage:   "start, query and update process instances",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list process instances",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "definition-key", Usage: "process definition key"},
					&cli.StringFlag{Name: "definition-id", Usage: "process definition id"},
					&cli.StringFlag{Name: "business-key", Usage: "exact business key"},
					&cli.StringFlag{Name: "started-by", Usage: "user who started the instance"},
					&cli.BoolFlag{Name: "suspended", Usage: "filter by suspension state"},
					&cli.BoolFlag{Name: "include-variables", Usage: "include process variables"},
				}, pagingFlags()...),
				Action: withSession(listInstancesAction),
			},
			{
				Name:  "start",
				Usage: "start a process instance",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "start the latest definition with this key"},
					&cli.StringFlag{Name: "id", Usage: "start this definition id"},
					&cli.StringFlag{Name: "business-key", Usage: "business key of the new instance"},
					&cli.StringFlag{Name: "name", Usage: "name of the new instance"},
					&cli.StringSliceFlag{Name: "var", Usage: "variable as name=value (repeatable)"},
					&cli.BoolFlag{Name: "return-variables", Usage: "include variables in the response"},
				},
				Action: withSession(startInstanceAction),
			},
			{
				Name:  "query",
				Usage: "query process instances, including by variable values",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "definition-key", Usage: "process definition key"},
					&cli.StringFlag{Name: "business-key", Usage: "exact business key"},
					&cli.StringFlag{Name: "business-key-like", Usage: "business key pattern (% wildcard)"},
					&cli.StringSliceFlag{Name: "var", Usage: "variable equality condition as name=value (repeatable)"},
					&cli.BoolFlag{Name: "include-variables", Usage: "include process variables"},
				}, pagingFlags()...),
				Action: withSession(queryInstancesAction),
			},
			{
				Name:      "variables",
				Usage:     "list the variables of a process instance",
				ArgsUsage: "<instance-id>",
				Action:    withSession(listVariablesAction),
			},
			{
				Name:      "set-variable",
				Usage:     "create or update process instance variables",
				ArgsUsage: "<instance-id> <name=value>...",
				Action:    withSession(setVariablesAction),
			},
		},
	}
}

func listInstancesAction(ctx context.Context, cmd *cli.Command, s *session) error {
	instances, err := s.client.ListProcessInstances(ctx, &bpm.ListProcessInstancesRequest{
		ProcessDefinitionKey:    optString(cmd, "definition-key"),
		ProcessDefinitionID:     optString(cmd, "definition-id"),
		BusinessKey:             optString(cmd, "business-key"),
		StartedBy:               optString(cmd, "started-by"),
		Suspended:               optBool(cmd, "suspended"),
		IncludeProcessVariables: optBool(cmd, "include-variables"),
		Sort:                    optString(cmd, "sort"),
		Order:                   optString(cmd, "order"),
		Start:                   optInt(cmd, "start"),
		Size:                    optInt(cmd, "size"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, instances)
}

func startInstanceAction(ctx context.Context, cmd *cli.Command, s *session) error {
	vars, err := parseVariables(cmd.StringSlice("var"))
	if err != nil {
		return err
	}

	inst, err := s.client.StartProcessInstance(ctx, bpm.ProcessInstanceCreateRequest{
		ProcessDefinitionKey: cmd.String("key"),
		ProcessDefinitionID:  cmd.String("id"),
		BusinessKey:          cmd.String("business-key"),
		Name:                 cmd.String("name"),
		Variables:            vars,
		ReturnVariables:      cmd.Bool("return-variables"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, inst)
}

func queryInstancesAction(ctx context.Context, cmd *cli.Command, s *session) error {
	conds, err := parseConditions(cmd.StringSlice("var"))
	if err != nil {
		return err
	}

	instances, err := s.client.QueryProcessInstances(ctx, bpm.ProcessInstanceQueryRequest{
		ProcessDefinitionKey:    cmd.String("definition-key"),
		ProcessBusinessKey:      cmd.String("business-key"),
		ProcessBusinessKeyLike:  cmd.String("business-key-like"),
		Variables:               conds,
		IncludeProcessVariables: optBool(cmd, "include-variables"),
		Sort:                    cmd.String("sort"),
		Order:                   cmd.String("order"),
		Start:                   optInt(cmd, "start"),
		Size:                    optInt(cmd, "size"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, instances)
}

func listVariablesAction(ctx context.Context, cmd *cli.Command, s *session) error {
	args, err := requireArgs(cmd, "instance-id")
	if err != nil {
		return err
	}

	vars, err := s.client.ListProcessInstanceVariables(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, vars)
}

func setVariablesAction(ctx context.Context, cmd *cli.Command, s *session) error {
	args, err := requireArgs(cmd, "instance-id", "name=value")
	if err != nil {
		return err
	}
	vars, err := parseVariables(args[1:])
	if err != nil {
		return err
	}

	resp, err := s.client.UpdateProcessInstanceVariables(ctx, args[0], vars)
	if err != nil {
		return err
	}
	return printResponse(cmd, resp)
}
