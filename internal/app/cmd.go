package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションのサブコマンドを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandIngest はwriteupを1回取り込んで終了することを示す。
	CommandIngest Command = "ingest"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はサブコマンドを登録したルートコマンドを返す。
// サブコマンド省略時はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "writeuptracker",
		Short:         "Bug bounty writeup tracker API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(w)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(serveCmd(w))
	root.AddCommand(migrateCmd(w))
	root.AddCommand(ingestCmd(w))
	root.AddCommand(healthcheckCmd())

	return root
}

func serveCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(w)
		},
	}
}

func migrateCmd(w io.Writer) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       string(CommandMigrate) + " [up|down]",
		Short:     "Apply or roll back database migrations",
		ValidArgs: []string{"up", "down"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runMigrate(cfg, direction, steps)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of versions to roll back with down (0 = all)")
	return cmd
}

func ingestCmd(w io.Writer) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   string(CommandIngest),
		Short: "Ingest writeups once from the feed or a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Init(w)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			return runIngest(cmd.Context(), cfg, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file to import instead of fetching the feed")
	return cmd
}

func healthcheckCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe the /health endpoint of a running server",
		Args:  cobra.NoArgs,
		// 軽量サブコマンドのため、フル初期化をスキップする
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = defaultHealthcheckURL()
			}
			return runHealthcheck(url)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "health endpoint URL (default http://localhost:$PORT/health)")
	return cmd
}

func defaultHealthcheckURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}
