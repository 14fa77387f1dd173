// cmd/matchctl/retrain.go
package main

import (
	"encoding/json"
	"fmt"

	"caregiver-matching/internal/app"
	"caregiver-matching/internal/common/database"
	"caregiver-matching/internal/common/observability"

	"github.com/spf13/cobra"
)

var exportData bool

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Run one retrain: build, train, evaluate and promote if better",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		pg, err := openPostgres(cfg)
		if err != nil {
			return err
		}
		defer pg.Close()

		clients := app.Clients{DB: pg.GetDB(), Obs: observability.NewNoop()}
		if cfg.Database.Elasticsearch.GetURL() != "" {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				log.Warn("elasticsearch unavailable, evaluation history disabled", map[string]interface{}{"error": err.Error()})
			} else {
				clients.Elasticsearch = es
			}
		}

		res, runErr := app.NewRetrainJob(cfg, clients, exportData, log).Run(cmd.Context())

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(retrainCmd)

	retrainCmd.Flags().BoolVar(&exportData, "export-data", false, "write the training and validation splits as CSV next to the staged model")
}
