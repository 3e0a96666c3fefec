package main

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/simpledocs"
)

// Run executes the progress command.
func (c *ProgressCmd) Run(deps *Dependencies) error {
	snap, err := deps.ProgressStore.Load(deps.Ctx)
	if simpledocs.ErrorCode(err) == simpledocs.ENOTFOUND {
		idle := simpledocs.NewProgressSnapshot()
		snap = &idle
	} else if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	fmt.Fprintln(deps.Stdout, string(data))
	return nil
}
