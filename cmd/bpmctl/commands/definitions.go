package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/bpm"
)

func definitionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "definitions",
		Aliases: []string{"defs"},
		Usage:   "inspect and suspend or activate process definitions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list process definitions",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "exact definition key"},
					&cli.StringFlag{Name: "key-like", Usage: "definition key pattern (% wildcard)"},
					&cli.StringFlag{Name: "name-like", Usage: "definition name pattern (% wildcard)"},
					&cli.StringFlag{Name: "category", Usage: "definition category"},
					&cli.BoolFlag{Name: "latest", Usage: "only the latest version of each key"},
					&cli.BoolFlag{Name: "suspended", Usage: "filter by suspension state"},
					&cli.StringFlag{Name: "startable-by", Usage: "user allowed to start the definition"},
				}, pagingFlags()...),
				Action: withSession(listDefinitionsAction),
			},
			{
				Name:      "suspend",
				Usage:     "suspend a process definition",
				ArgsUsage: "<definition-id>",
				Flags:     definitionActionFlags(),
				Action:    withSession(definitionAction(bpm.ProcessDefinitionSuspend)),
			},
			{
				Name:      "activate",
				Usage:     "activate a suspended process definition",
				ArgsUsage: "<definition-id>",
				Flags:     definitionActionFlags(),
				Action:    withSession(definitionAction(bpm.ProcessDefinitionActivate)),
			},
			{
				Name:      "identity-links",
				Usage:     "list candidate starters of a process definition",
				ArgsUsage: "<definition-id>",
				Action:    withSession(identityLinksAction),
			},
		},
	}
}

func definitionActionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "include-instances", Usage: "apply to running process instances as well"},
		&cli.StringFlag{Name: "date", Usage: "schedule the action (ISO-8601 timestamp)"},
	}
}

func listDefinitionsAction(ctx context.Context, cmd *cli.Command, s *session) error {
	req := &bpm.ListProcessDefinitionsRequest{
		Key:             optString(cmd, "key"),
		KeyLike:         optString(cmd, "key-like"),
		NameLike:        optString(cmd, "name-like"),
		Category:        optString(cmd, "category"),
		StartableByUser: optString(cmd, "startable-by"),
		Latest:          optBool(cmd, "latest"),
		Suspended:       optBool(cmd, "suspended"),
		Order:           optString(cmd, "order"),
		Start:           optInt(cmd, "start"),
		Size:            optInt(cmd, "size"),
	}
	if cmd.IsSet("sort") {
		req.Sort = bpm.Ptr(bpm.ProcessDefinitionSort(cmd.String("sort")))
	}

	defs, err := s.client.ListProcessDefinitions(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, defs)
}

func definitionAction(action bpm.ProcessDefinitionAction) sessionAction {
	return func(ctx context.Context, cmd *cli.Command, s *session) error {
		args, err := requireArgs(cmd, "definition-id")
		if err != nil {
			return err
		}
		date, err := optTime(cmd, "date")
		if err != nil {
			return err
		}

		def, err := s.client.ExecuteProcessDefinitionAction(ctx, args[0], bpm.ProcessDefinitionActionRequest{
			Action:                  action,
			IncludeProcessInstances: optBool(cmd, "include-instances"),
			Date:                    date,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, def)
	}
}

func identityLinksAction(ctx context.Context, cmd *cli.Command, s *session) error {
	args, err := requireArgs(cmd, "definition-id")
	if err != nil {
		return err
	}

	links, err := s.client.ListProcessDefinitionIdentityLinks(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, links)
}
