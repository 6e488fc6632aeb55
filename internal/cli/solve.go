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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/internal/ingest"
	"github.com/capbudget/portfolio/internal/optimizer"
	solveconfig "github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/solver"
	"github.com/capbudget/portfolio/pkg/solver/bnb"
)

func newSolveCommand(a *app) *cobra.Command {
	var budget float64
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a catalog and print the ranked solution pool as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var override *float64
			if cmd.Flags().Changed("budget") {
				override = ptr.To(budget)
			}
			return a.solve(cmd, override)
		},
	}
	cmd.Flags().Float64Var(&budget, "budget", 0, "Budget; overrides the configuration and the profile.")
	return cmd
}

func (a *app) solve(cmd *cobra.Command, budget *float64) error {
	ctx := cmd.Context()
	s := a.settings
	if s.CatalogFile == "" {
		return fmt.Errorf("--catalog is required")
	}
	catalog, err := ingest.LoadCatalogFile(ctx, s.CatalogFile)
	if err != nil {
		return err
	}
	cfg, err := a.solveConfig(budget)
	if err != nil {
		return err
	}

	session := optimizer.NewSession(catalog,
		bnb.New(bnb.WithNativePool(s.NativePool)),
		optimizer.WithMinRoundTime(s.MinRoundTime))
	result, err := session.Solve(ctx, cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Response()); err != nil {
		return err
	}
	if result.Status == solver.StatusError {
		return fmt.Errorf("solve failed: %s", result.Message)
	}
	return nil
}

// solveConfig layers the configuration file over the profile, then applies the
// command line overrides.
func (a *app) solveConfig(budget *float64) (*solveconfig.SolveConfig, error) {
	s := a.settings
	request := &solveconfig.SolveConfig{}
	if s.ConfigFile != "" {
		doc, err := os.ReadFile(s.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("reading solve configuration: %w", err)
		}
		if request, err = solveconfig.ParseSolveConfig(doc); err != nil {
			return nil, err
		}
	}
	if budget != nil {
		request.Budget = budget
	}
	if s.PoolSize > 0 {
		request.PoolSize = ptr.To(s.PoolSize)
	}
	if s.TimeLimit > 0 {
		request.TimeLimit = ptr.To(s.TimeLimit)
	}

	profiles, err := s.LoadProfiles()
	if err != nil {
		return nil, err
	}
	return profiles.Apply(s.Profile, request)
}
