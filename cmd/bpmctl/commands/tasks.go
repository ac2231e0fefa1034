package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/bpm"
)

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "query, claim and complete user tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "query tasks",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "assignee", Usage: "tasks assigned to this user"},
					&cli.StringFlag{Name: "candidate-user", Usage: "unassigned tasks this user may claim"},
					&cli.StringFlag{Name: "candidate-group", Usage: "unassigned tasks this group may claim"},
					&cli.StringFlag{Name: "instance", Usage: "process instance id"},
					&cli.StringFlag{Name: "definition-key", Usage: "process definition key"},
					&cli.BoolFlag{Name: "unassigned", Usage: "only tasks without assignee"},
					&cli.BoolFlag{Name: "include-variables", Usage: "include process variables"},
				}, pagingFlags()...),
				Action: withSession(listTasksAction),
			},
			{
				Name:      "complete",
				Usage:     "complete a task",
				ArgsUsage: "<task-id>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "var", Usage: "variable as name=value (repeatable)"},
					&cli.StringFlag{Name: "outcome", Usage: "form outcome"},
				},
				Action: withSession(taskAction(bpm.TaskComplete)),
			},
			{
				Name:      "claim",
				Usage:     "claim a task",
				ArgsUsage: "<task-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "assignee", Usage: "user to claim for (defaults to the authenticated user)"},
				},
				Action: withSession(taskAction(bpm.TaskClaim)),
			},
			{
				Name:      "delegate",
				Usage:     "delegate a task to another user",
				ArgsUsage: "<task-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "assignee", Usage: "user to delegate to", Required: true},
				},
				Action: withSession(taskAction(bpm.TaskDelegate)),
			},
			{
				Name:      "resolve",
				Usage:     "hand a delegated task back to its owner",
				ArgsUsage: "<task-id>",
				Action:    withSession(taskAction(bpm.TaskResolve)),
			},
		},
	}
}

func listTasksAction(ctx context.Context, cmd *cli.Command, s *session) error {
	tasks, err := s.client.QueryTasks(ctx, bpm.TaskQueryRequest{
		Assignee:                cmd.String("assignee"),
		CandidateUser:           cmd.String("candidate-user"),
		CandidateGroup:          cmd.String("candidate-group"),
		ProcessInstanceID:       cmd.String("instance"),
		ProcessDefinitionKey:    cmd.String("definition-key"),
		Unassigned:              optBool(cmd, "unassigned"),
		IncludeProcessVariables: optBool(cmd, "include-variables"),
		Sort:                    cmd.String("sort"),
		Order:                   cmd.String("order"),
		Start:                   optInt(cmd, "start"),
		Size:                    optInt(cmd, "size"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, tasks)
}

func taskAction(action bpm.TaskAction) sessionAction {
	return func(ctx context.Context, cmd *cli.Command, s *session) error {
		args, err := requireArgs(cmd, "task-id")
		if err != nil {
			return err
		}

		req := bpm.TaskActionRequest{Action: action}
		switch action {
		case bpm.TaskComplete:
			if req.Variables, err = parseVariables(cmd.StringSlice("var")); err != nil {
				return err
			}
			req.Outcome = cmd.String("outcome")
		case bpm.TaskClaim, bpm.TaskDelegate:
			req.Assignee = cmd.String("assignee")
		}

		resp, err := s.client.ExecuteTaskAction(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printResponse(cmd, resp)
	}
}
