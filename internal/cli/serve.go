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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/capbudget/portfolio/internal/ingest"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/internal/metrics"
	"github.com/capbudget/portfolio/internal/optimizer"
	"github.com/capbudget/portfolio/internal/server"
	"github.com/capbudget/portfolio/pkg/core"
	"github.com/capbudget/portfolio/pkg/solver/bnb"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the solve API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := a.settings

			var catalog *core.Catalog
			if s.CatalogFile != "" {
				var err error
				if catalog, err = ingest.LoadCatalogFile(ctx, s.CatalogFile); err != nil {
					return err
				}
			}
			profiles, err := s.LoadProfiles()
			if err != nil {
				return err
			}
			recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}

			session := optimizer.NewSession(catalog,
				bnb.New(bnb.WithNativePool(s.NativePool)),
				optimizer.WithRecorder(recorder),
				optimizer.WithMinRoundTime(s.MinRoundTime))
			logging.FromContext(ctx).Info("Created solve session",
				"session", session.ID(),
				"profiles", profiles.Names())

			return server.New(session, profiles).Run(ctx, s.ListenAddress)
		},
	}
}
