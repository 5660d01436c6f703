package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/glossgame/internal/catalog"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage glossary content",
}

var contentValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a glossary content file (the embedded glossary when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		content, err := catalog.LoadContent(path)
		if err != nil {
			return err
		}

		perTopic := make(map[string]int)
		for _, q := range content.Questions {
			perTopic[q.TopicID]++
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %-20s  %9s\n", "ID", "Slug", "Questions")
		for _, t := range content.Topics {
			fmt.Fprintf(out, "%-24s  %-20s  %9d\n", t.ID, t.Slug, perTopic[t.ID])
		}
		fmt.Fprintf(out, "\n%s is valid: %d topics, %d questions\n", contentSource(path), len(content.Topics), len(content.Questions))
		return nil
	},
}

var contentSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load glossary content into the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			cfg.ContentPath = path
		}

		repo, err := openRepository(cfg)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer repo.Close()

		return seedContent(context.Background(), catalog.New(repo), cfg.ContentPath)
	},
}

func init() {
	contentSeedCmd.Flags().String("file", "", "Glossary content file (defaults to CONTENT_PATH, then the embedded glossary)")

	contentCmd.AddCommand(contentValidateCmd)
	contentCmd.AddCommand(contentSeedCmd)
}
