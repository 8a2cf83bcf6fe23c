package cmds

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/archive"
	"github.com/go-go-golems/shinkai/pkg/conversation"
)

func (e *Env) openArchive(path string) (*archive.SQLiteStore, error) {
	if path == "" {
		p, err := e.Settings.Archive.ExpandedPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return archive.Open(path)
}

type exportResult struct {
	InboxID  string `json:"inbox_id"`
	Messages int    `json:"messages"`
	SQLite   string `json:"sqlite,omitempty"`
	JSON     string `json:"json,omitempty"`
}

func newExportCommand(env *Env) *cobra.Command {
	var sqlitePath, jsonPath, jsonDir string
	var newestOnly bool

	cmd := &cobra.Command{
		Use:   "export <inbox>",
		Short: "Save the whole history of an inbox locally",
		Long: "Save the history of an inbox to the sqlite archive, to a JSON file, or to a JSON " +
			"file under --json-dir named after the export template. Without any target the " +
			"configured archive is used.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inboxID := args[0]
			v, err := loadHistory(ctx, env, inboxID, !newestOnly)
			if err != nil {
				return err
			}

			res := exportResult{InboxID: inboxID, Messages: v.Len()}
			fs := afero.NewOsFs()

			if jsonDir != "" {
				p, err := archive.PathFor(env.Settings.Archive.ExportTemplate, inboxID, time.Now())
				if err != nil {
					return err
				}
				jsonPath = filepath.Join(jsonDir, p)
			}
			if jsonPath != "" {
				if err := archive.ExportJSON(fs, jsonPath, inboxID, v.Messages); err != nil {
					return err
				}
				res.JSON = jsonPath
			}

			if sqlitePath != "" || jsonPath == "" {
				store, err := env.openArchive(sqlitePath)
				if err != nil {
					return err
				}
				defer func() {
					_ = store.Close()
				}()
				if err := store.Save(ctx, inboxID, v.Messages); err != nil {
					return err
				}
				res.SQLite = sqlitePath
				if res.SQLite == "" {
					res.SQLite, _ = env.Settings.Archive.ExpandedPath()
				}
			}

			return env.print(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sqlitePath, "sqlite", "", "Save into this sqlite archive")
	f.StringVar(&jsonPath, "json", "", "Write a JSON document to this path")
	f.StringVar(&jsonDir, "json-dir", "", "Write a JSON document under this directory")
	f.BoolVar(&newestOnly, "newest-only", false, "Only export the newest page")
	return cmd
}

func newArchiveCommand(env *Env) *cobra.Command {
	var sqlitePath string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse conversations saved locally",
	}
	cmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Path of the sqlite archive (default from settings)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.openArchive(sqlitePath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <inbox>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.openArchive(sqlitePath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			msgs, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), conversation.View{InboxID: args[0], Messages: msgs})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <inbox>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.openArchive(sqlitePath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			return store.Delete(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Save an exported JSON document into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := archive.ImportJSON(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			store, err := env.openArchive(sqlitePath)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			if err := store.Save(cmd.Context(), doc.InboxID, doc.Messages); err != nil {
				return errors.Wrapf(err, "could not import %s", args[0])
			}
			return env.print(cmd.OutOrStdout(), exportResult{InboxID: doc.InboxID, Messages: len(doc.Messages)})
		},
	})

	return cmd
}
