package cmds

import (
	"github.com/spf13/cobra"

	"github.com/go-go-golems/shinkai/pkg/conversation"
	"github.com/go-go-golems/shinkai/pkg/inbox"
)

type inboxRow struct {
	InboxID     string                 `json:"inbox_id"`
	Name        string                 `json:"name,omitempty"`
	Job         bool                   `json:"job"`
	Finished    bool                   `json:"finished"`
	Created     string                 `json:"created,omitempty"`
	LastMessage string                 `json:"last_message,omitempty"`
	Preview     []conversation.Message `json:"preview,omitempty"`
}

func newInboxesCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inboxes",
		Short: "Work with the inboxes of the node",
	}

	var preview int
	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List inboxes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inboxes, err := env.Client.GetInboxes(ctx)
			if err != nil {
				return err
			}

			rows := []inboxRow{}
			var ids []string
			for _, i := range inboxes {
				ok, err := matchAny(filter, i.InboxID, i.CustomName)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				row := inboxRow{
					InboxID:  i.InboxID,
					Name:     i.CustomName,
					Job:      inbox.IsJobInbox(i.InboxID),
					Finished: i.IsFinished,
					Created:  i.DatetimeCreated,
				}
				if i.LastMessage != nil {
					row.LastMessage = i.LastMessage.JobMessage.Content
				}
				rows = append(rows, row)
				ids = append(ids, i.InboxID)
			}

			if preview > 0 && len(ids) > 0 {
				latest, err := conversation.LoadLatest(ctx, env.fetcher(), ids, preview)
				if err != nil {
					return err
				}
				for i := range rows {
					rows[i].Preview = latest[rows[i].InboxID]
				}
			}

			return env.print(cmd.OutOrStdout(), rows)
		},
	}
	listCmd.Flags().IntVar(&preview, "preview", 0, "Include the newest N messages of every inbox")
	listCmd.Flags().StringVar(&filter, "filter", "", "Glob matched against inbox id and name")
	cmd.AddCommand(listCmd)

	return cmd
}
