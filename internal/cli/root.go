/*
Copyright 2025 The Portfolio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capbudget/portfolio/internal/config"
	"github.com/capbudget/portfolio/internal/logging"
)

// app carries the settings resolved before any sub-command runs.
type app struct {
	settings *config.Settings
}

// NewRootCommand builds the portfolio command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "portfolio",
		Short: "Select a capital budgeting portfolio under budget, resource and policy constraints",
		Long: `portfolio selects the subset of candidate projects with the highest value that
fits the budget, resource caps, exclusivity groups, dependencies, regional quotas and
a cardinality bound, and returns a ranked pool of distinct alternative selections.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newSolveCommand(a),
		newValidateCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) init(cmd *cobra.Command) error {
	settings, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(settings.LogLevel, settings.LogDevelopment)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logging.SetLogger(logger)
	cmd.SetContext(logging.IntoContext(cmd.Context(), logger))
	a.settings = settings

	logger.V(logging.DEBUG).Info("Resolved settings",
		"catalog", settings.CatalogFile,
		"profiles", settings.ProfilesPath(),
		"nativePool", settings.NativePool,
		"minRoundTime", settings.MinRoundTime)
	return nil
}
