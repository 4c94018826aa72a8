package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mohans/jobstatus"
)

func runEnqueue(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("enqueue: job name is required")
	}

	var options map[string]any
	if raw := c.String(flagOptions); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return fmt.Errorf("enqueue: invalid options: %w", err)
		}
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	client := e.newClient()

	var id string
	if queue := c.String(flagQueue); queue != "" {
		id, err = client.EnqueueTo(c.Context, queue, name, options)
	} else {
		id, err = client.Enqueue(c.Context, name, options)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(c.App.Writer, id)
	return nil
}

func runStatus(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if id := c.Args().First(); id != "" {
		rec, err := e.store.Get(c.Context, id)
		if err != nil {
			return fmt.Errorf("status %s: %w", id, err)
		}
		out, err := json.MarshalIndent(rec.View(), "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}

	recs, err := e.store.Statuses(c.Context, jobstatus.Page(c.Int64(flagStart), c.Int64(flagPerPage)))
	if err != nil {
		return err
	}
	total, err := e.store.Count(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UUID\tSTATUS\tPCT\tNAME\tMESSAGE")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n", r.UUID, r.Status, r.PctComplete(), r.Name, r.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.App.Writer, "%d of %d\n", len(recs), total)
	return nil
}

func runKill(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 && !c.Bool(flagAll) {
		return errors.New("kill: give at least one uuid or --all")
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.Bool(flagAll) {
		ids, err = e.store.KillAll(c.Context, jobstatus.All())
		if err != nil {
			return err
		}
	} else {
		for _, id := range ids {
			if err := e.store.Kill(c.Context, id); err != nil {
				return err
			}
		}
	}

	for _, id := range ids {
		_, _ = fmt.Fprintln(c.App.Writer, id)
	}
	return nil
}

func runClear(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	rng := jobstatus.All()
	var removed []string
	switch scope := c.String(flagScope); scope {
	case "all":
		removed, err = e.store.Clear(c.Context, rng)
	case string(jobstatus.StatusCompleted):
		removed, err = e.store.ClearCompleted(c.Context, rng)
	case string(jobstatus.StatusFailed):
		removed, err = e.store.ClearFailed(c.Context, rng)
	case string(jobstatus.StatusKilled):
		removed, err = e.store.ClearKilled(c.Context, rng)
	default:
		return fmt.Errorf("clear: invalid scope %q", scope)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "removed %d statuses\n", len(removed))
	return nil
}
