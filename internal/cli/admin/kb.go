package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wildguard-ai/wildguard/internal/config"
	"github.com/wildguard-ai/wildguard/internal/database"
	"github.com/wildguard-ai/wildguard/internal/knowledge"
	"github.com/wildguard-ai/wildguard/internal/repository"
	"github.com/wildguard-ai/wildguard/internal/storage"
)

func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
		Long:  "Validate, inspect, seed, and publish the knowledge base file",
	}

	cmd.AddCommand(KBValidateCmd())
	cmd.AddCommand(KBShowCmd())
	cmd.AddCommand(KBSeedCmd())
	cmd.AddCommand(KBPushCmd())

	return cmd
}

func KBValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a knowledge base file",
		Long:  "Parse a knowledge base JSON file and report chunk statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBValidate,
	}
}

func runKBValidate(cmd *cobra.Command, args []string) error {
	store, err := knowledge.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	blank := 0
	for _, c := range store.Chunks() {
		if strings.TrimSpace(c.ContextText()) == "" {
			blank++
		}
	}

	fmt.Printf("OK: %d chunks (%d blank)\n", store.Count(), blank)
	return nil
}

func KBShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Show knowledge base chunks",
		Long:  "Print the titles and context text of every chunk in a knowledge base file",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBShow,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runKBShow(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")

	store, err := knowledge.LoadFile(args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		out, err := json.MarshalIndent(store.Chunks(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	for i, c := range store.Chunks() {
		title := c.Title()
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%3d  %s\n", i, title)
		if text := c.ContextText(); text != "" {
			fmt.Printf("     %s\n", strings.ReplaceAll(text, "\n", "\n     "))
		}
	}
	return nil
}

func KBSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a knowledge base file into the database",
		Long:  "Replace all chunks in the configured database with the contents of a knowledge base JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBSeed,
	}
}

func runKBSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := knowledge.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("WILDGUARD_DATABASE_URL is not set")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	repo := repository.NewChunkRepository(pool)
	if err := repo.ReplaceAll(ctx, store.Chunks()); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	fmt.Printf("Seeded %d chunks\n", store.Count())
	return nil
}

func KBPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Publish a knowledge base file to artifact storage",
		Long:  "Upload a validated knowledge base JSON file to the configured S3 bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runKBPush,
	}

	cmd.Flags().String("key", "", "Object key (defaults to WILDGUARD_S3_KB_KEY)")

	return cmd
}

func runKBPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	// Reject unparseable files before publishing them.
	if _, err := knowledge.LoadFile(path); err != nil {
		return fmt.Errorf("refusing to push: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return fmt.Errorf("S3 is not configured (WILDGUARD_S3_ENDPOINT required)")
	}

	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = cfg.S3KBKey
	}
	if key == "" {
		return fmt.Errorf("no object key: pass --key or set WILDGUARD_S3_KB_KEY")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	if err := s3Client.UploadFile(ctx, key, path, "application/json"); err != nil {
		return err
	}

	fmt.Printf("Pushed %s to s3://%s/%s\n", path, cfg.S3Bucket, key)
	return nil
}
