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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/capbudget/portfolio/internal/ingest"
	"github.com/capbudget/portfolio/pkg/core"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a catalog and report every problem found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.settings.CatalogFile == "" {
				return fmt.Errorf("--catalog is required")
			}
			out := cmd.OutOrStdout()
			catalog, err := ingest.LoadCatalogFile(cmd.Context(), a.settings.CatalogFile)
			if err != nil {
				if !errors.Is(err, core.ErrDataValidation) {
					return err
				}
				problems := multierr.Errors(err)
				for _, p := range problems {
					fmt.Fprintln(out, p)
				}
				return fmt.Errorf("%d problem(s) found in %s", len(problems), a.settings.CatalogFile)
			}

			fmt.Fprintf(out, "%d projects\n", catalog.Len())
			fmt.Fprintf(out, "regions: %s\n", strings.Join(catalog.Regions(), ", "))
			fmt.Fprintf(out, "exclusive groups: %s\n", strings.Join(catalog.ExclusiveGroups(), ", "))
			fmt.Fprintf(out, "resources: %s\n", strings.Join(catalog.ResourceNames(), ", "))
			fmt.Fprintln(out, "catalog is valid")
			return nil
		},
	}
}
