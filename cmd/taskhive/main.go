package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfields/taskhive/internal/config"
	"github.com/mfields/taskhive/internal/core"
	"github.com/mfields/taskhive/internal/db"
	"github.com/mfields/taskhive/internal/mcp"
	"github.com/mfields/taskhive/internal/seed"
	"github.com/mfields/taskhive/internal/web"
	"github.com/mfields/taskhive/pkg/models"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskhive",
		Short:   "TaskHive - hierarchical task tracking with automatic status propagation",
		Version: Version,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine opens the database from config and wraps it in the engine.
// The caller owns the returned DB and must close it.
func openEngine(ctx context.Context) (*core.Engine, *db.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, nil, nil, err
	}
	if cfg.Snapshot.Enabled {
		database.EnableAutoSnapshot(cfg.Snapshot.Path)
	}

	return core.NewEngine(database, nil), database, cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a .taskhive directory with a database and config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir := "."
			if len(args) > 0 {
				targetDir = args[0]
			}

			hiveDir := filepath.Join(targetDir, ".taskhive")
			if err := os.MkdirAll(hiveDir, 0755); err != nil {
				return fmt.Errorf("failed to create .taskhive directory: %w", err)
			}
			fmt.Println("✓ Created .taskhive/ directory")

			gitignorePath := filepath.Join(hiveDir, ".gitignore")
			if err := os.WriteFile(gitignorePath, []byte("taskhive.db*\n"), 0644); err != nil {
				return fmt.Errorf("failed to create .gitignore: %w", err)
			}
			fmt.Println("✓ Created .taskhive/.gitignore")

			configPath := filepath.Join(hiveDir, "config.yaml")
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.WriteProjectDefault(configPath); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				fmt.Println("✓ Created .taskhive/config.yaml")
			}

			database, err := db.Open(filepath.Join(hiveDir, "taskhive.db"))
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("✓ Initialized database")

			if err := database.ExportSnapshot(cmd.Context(), filepath.Join(hiveDir, "snapshot.jsonl")); err != nil {
				return err
			}
			fmt.Println("✓ Wrote initial snapshot")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, database, cfg, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := web.NewServer(engine)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(addr)
			}()
			fmt.Printf("Serving on %s\n", addr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, database, _, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			return mcp.Serve(mcp.NewServer(engine))
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a YAML seed file or a JSONL snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, database, _, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			path := args[0]
			switch filepath.Ext(path) {
			case ".yaml", ".yml":
				res, err := seed.ImportFile(cmd.Context(), engine, path)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d groups, %d tags, %d tasks\n", res.Groups, res.Tags, res.Tasks)
			case ".jsonl":
				if err := database.ImportSnapshot(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Println("Snapshot imported")
			default:
				return fmt.Errorf("unsupported import format %q (want .yaml or .jsonl)", filepath.Ext(path))
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the database to a JSONL snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, cfg, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			path := cfg.Snapshot.Path
			if len(args) > 0 {
				path = args[0]
			}
			if err := database.ExportSnapshot(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Snapshot written to %s\n", path)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var statusFilter string
	var groupFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, database, _, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			var status *models.TaskStatus
			if statusFilter != "" {
				st := models.TaskStatus(statusFilter)
				status = &st
			}
			var groupID *string
			if groupFilter != "" {
				groupID = &groupFilter
			}

			tasks, err := engine.ListTasks(cmd.Context(), status, groupID)
			if err != nil {
				return err
			}

			printTaskTree(tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (pending|ongoing|completed)")
	cmd.Flags().StringVar(&groupFilter, "group", "", "filter by group id")
	return cmd
}

// printTaskTree prints root tasks with their subtasks indented beneath
// them. Subtasks whose parent was filtered out are printed at top level.
func printTaskTree(tasks []*models.Task) {
	byParent := make(map[string][]*models.Task)
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var roots []*models.Task
	for _, t := range tasks {
		if t.ParentID != nil {
			if _, ok := byID[*t.ParentID]; ok {
				byParent[*t.ParentID] = append(byParent[*t.ParentID], t)
				continue
			}
		}
		roots = append(roots, t)
	}

	for _, t := range roots {
		printTask(t, 0)
		for _, c := range byParent[t.ID] {
			printTask(c, 1)
			for _, gc := range byParent[c.ID] {
				printTask(gc, 2)
			}
		}
	}
}

func printTask(t *models.Task, depth int) {
	marker := " "
	switch t.Status {
	case models.TaskStatusOngoing:
		marker = "~"
	case models.TaskStatusCompleted:
		marker = "x"
	}
	due := ""
	if t.DueDate != nil {
		due = "  due " + t.DueDate.Format("2006-01-02")
	}
	fmt.Printf("%s[%s] %s (%s)%s\n", strings.Repeat("  ", depth), marker, t.Title, t.Priority, due)
}
