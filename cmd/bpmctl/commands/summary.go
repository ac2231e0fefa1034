package commands

import (
	"context"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/bpm-client/bpm"
)

// workSummary counts what is deployed, running and waiting.
type workSummary struct {
	Definitions          int  `json:"definitions"`
	SuspendedDefinitions int  `json:"suspended_definitions"`
	RunningInstances     int  `json:"running_instances"`
	OpenTasks            int  `json:"open_tasks"`
	AssignedTasks        *int `json:"assigned_tasks,omitempty"`
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "count definitions, running instances and open tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "assignee", Usage: "also count tasks assigned to this user"},
		},
		Action: withSession(summaryAction),
	}
}

// summaryAction issues the count queries concurrently. Only totals are
// needed, so every page holds a single item.
func summaryAction(ctx context.Context, cmd *cli.Command, s *session) error {
	var sum workSummary
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defs, err := s.client.ListProcessDefinitions(gCtx, &bpm.ListProcessDefinitionsRequest{Size: bpm.Ptr(1)})
		if err != nil {
			return err
		}
		sum.Definitions = defs.Total
		return nil
	})
	g.Go(func() error {
		defs, err := s.client.ListProcessDefinitions(gCtx, &bpm.ListProcessDefinitionsRequest{
			Suspended: bpm.Ptr(true),
			Size:      bpm.Ptr(1),
		})
		if err != nil {
			return err
		}
		sum.SuspendedDefinitions = defs.Total
		return nil
	})
	g.Go(func() error {
		instances, err := s.client.ListProcessInstances(gCtx, &bpm.ListProcessInstancesRequest{Size: bpm.Ptr(1)})
		if err != nil {
			return err
		}
		sum.RunningInstances = instances.Total
		return nil
	})
	g.Go(func() error {
		tasks, err := s.client.QueryTasks(gCtx, bpm.TaskQueryRequest{Size: bpm.Ptr(1)})
		if err != nil {
			return err
		}
		sum.OpenTasks = tasks.Total
		return nil
	})
	if assignee := cmd.String("assignee"); assignee != "" {
		g.Go(func() error {
			tasks, err := s.client.QueryTasks(gCtx, bpm.TaskQueryRequest{Assignee: assignee, Size: bpm.Ptr(1)})
			if err != nil {
				return err
			}
			sum.AssignedTasks = bpm.Ptr(tasks.Total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return printJSON(cmd, sum)
}
