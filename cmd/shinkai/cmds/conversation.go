package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/conversation"
	"github.com/go-go-golems/shinkai/pkg/events"
	"github.com/go-go-golems/shinkai/pkg/inbox"
	"github.com/go-go-golems/shinkai/pkg/render"
	"github.com/go-go-golems/shinkai/pkg/settings"
)

func newConversationCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Read and write the messages of an inbox",
	}

	pf := cmd.PersistentFlags()
	pf.Int(settings.KeyPageSize, conversation.DefaultPageSize, "Messages per page")
	pf.Duration(settings.KeyRefreshInterval, conversation.DefaultRefreshInterval, "Delay before polling for an agent reply")
	pf.String(settings.KeyCursorStrategy, "pinned", "Cursor used for older pages (pinned, oldest)")

	cmd.AddCommand(
		newHistoryCommand(env),
		newTailCommand(env),
		newSendCommand(env),
		newCreateCommand(env),
		newRenameCommand(env),
		newExportCommand(env),
	)
	return cmd
}

// loadHistory loads the newest page of inboxID and, if all is set, every
// older page.
func loadHistory(ctx context.Context, env *Env, inboxID string, all bool) (conversation.View, error) {
	options := append(env.Settings.Conversation.ControllerOptions(), conversation.WithRefreshEnabled(false))
	if all {
		options = append(options, conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	}
	c := conversation.NewController(inboxID, env.fetcher(), options...)
	defer c.Close()

	if err := c.LoadInitial(ctx); err != nil {
		return conversation.View{}, err
	}
	for all {
		err := c.LoadOlder(ctx)
		if errors.Is(err, conversation.ErrNoMoreHistory) {
			break
		}
		if err != nil {
			return conversation.View{}, err
		}
		log.Debug().Str("inbox_id", inboxID).Int("count", c.View().Len()).Msg("loaded older page")
	}
	return c.View(), nil
}

type codeBlockRow struct {
	Hash     string `json:"hash"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

func codeBlocks(v conversation.View, languages []string) ([]codeBlockRow, error) {
	rows := []codeBlockRow{}
	for _, m := range v.Messages {
		blocks, err := render.ExtractCodeBlocks(m.Content, languages...)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse message %s", m.Hash)
		}
		for _, b := range blocks {
			rows = append(rows, codeBlockRow{Hash: m.Hash, Language: b.Language, Code: b.Code})
		}
	}
	return rows, nil
}

func markdownTranscript(v conversation.View, localName string) string {
	var sb strings.Builder
	for _, m := range v.Messages {
		sender := m.Sender
		if m.IsLocal && localName != "" {
			sender = localName
		}
		fmt.Fprintf(&sb, "### %s, %s\n\n%s\n\n", sender, m.Timestamp.UTC().Format("2006-01-02 15:04:05"), strings.TrimSpace(m.Content))
	}
	return sb.String()
}

func newHistoryCommand(env *Env) *cobra.Command {
	var all, raw, concise, renderMarkdown bool
	var style, localName string
	var code []string
	var codeOnly bool

	cmd := &cobra.Command{
		Use:   "history <inbox>",
		Short: "Print the messages of an inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadHistory(cmd.Context(), env, args[0], all)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case raw:
				return env.print(out, v)
			case codeOnly || len(code) > 0:
				rows, err := codeBlocks(v, code)
				if err != nil {
					return err
				}
				return env.print(out, rows)
			case renderMarkdown:
				if style == "" {
					style = "notty"
					if env.isTerminal() {
						style = render.DefaultStyle
					}
				}
				s, err := render.Markdown(markdownTranscript(v, localName), style)
				if err != nil {
					return errors.Wrap(err, "could not render markdown")
				}
				_, err = io.WriteString(out, s)
				return err
			default:
				return render.Transcript(out, v, render.TranscriptOptions{
					Concise:   concise,
					LocalName: localName,
				})
			}
		},
	}

	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "Walk back to the first message")
	f.BoolVar(&raw, "raw", false, "Print the view in the output format")
	f.BoolVar(&concise, "concise", false, "One line per message")
	f.BoolVar(&renderMarkdown, "render", false, "Render message contents as markdown")
	f.StringVar(&style, "style", "", "Glamour style used by --render (default dark on a terminal)")
	f.StringVar(&localName, "local-name", "", "Name shown for local messages")
	f.BoolVar(&codeOnly, "code", false, "Only print the fenced code blocks of the messages")
	f.StringSliceVar(&code, "code-language", nil, "Only print code blocks in these languages")
	return cmd
}

func newTailCommand(env *Env) *cobra.Command {
	var noRefresh, exitOnReply, rawEvents, concise bool
	var older int
	var localName string

	cmd := &cobra.Command{
		Use:   "tail <inbox>",
		Short: "Print new messages of an inbox as they arrive",
		Long: "Print the newest page of an inbox, then every new message. Job inboxes are " +
			"polled while an agent reply is pending.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inboxID := args[0]
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			options := env.Settings.Conversation.ControllerOptions()
			if noRefresh {
				options = append(options, conversation.WithRefreshEnabled(false))
			}
			registry := conversation.NewRegistry(env.fetcher(), options...)
			defer registry.Close()

			obs, err := registry.Observe(ctx, inboxID)
			if err != nil {
				return err
			}
			defer obs.Release()

			router, err := events.NewEventRouter(events.WithLogger(events.NewWatermillLogger(log.Logger)))
			if err != nil {
				return err
			}
			defer func() {
				_ = router.Close()
			}()

			out := cmd.OutOrStdout()
			printer := router.EventPrinter(out)
			router.AddHandler("tail", events.TopicForInbox(inboxID), func(msg *message.Message) error {
				if rawEvents {
					if err := printer(msg); err != nil {
						return err
					}
				}
				e, err := events.NewEventFromJSON(msg.Payload)
				if err != nil {
					return err
				}
				switch ev := e.(type) {
				case *events.EventViewUpdated:
					if !rawEvents {
						msgs := append(append([]conversation.Message(nil), ev.Older...), ev.New...)
						err := render.Transcript(out, conversation.View{InboxID: inboxID, Messages: msgs}, render.TranscriptOptions{
							Concise:   concise,
							LocalName: localName,
						})
						if err != nil {
							return err
						}
					}
					if exitOnReply && ev.Latest != nil && !ev.Latest.IsLocal {
						cancel()
					}
				case *events.EventFetchFailed:
					log.Warn().Str("inbox_id", inboxID).Str("cursor", ev.Cursor).Msg(ev.Error)
				}
				return nil
			})

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				select {
				case <-router.Running():
				case <-ctx.Done():
					return nil
				}
				// older pages are loaded before watching so that the first
				// update prints the whole history in order
				var olderErr error
				for i := 0; i < older; i++ {
					err := obs.Controller().LoadOlder(ctx)
					if errors.Is(err, conversation.ErrNoMoreHistory) {
						break
					}
					if err != nil {
						olderErr = err
						break
					}
				}

				w := events.NewViewPublisher(router.Publisher).Watch(obs.Controller())
				defer w.Stop()
				if olderErr != nil && ctx.Err() == nil {
					w.PublishError(olderErr)
				}

				<-ctx.Done()
				return nil
			})
			return eg.Wait()
		},
	}

	f := cmd.Flags()
	f.BoolVar(&noRefresh, "no-refresh", false, "Never poll for agent replies")
	f.BoolVar(&exitOnReply, "exit-on-reply", false, "Exit once the newest message is not a local one")
	f.BoolVar(&rawEvents, "events", false, "Print the raw events instead of messages")
	f.BoolVar(&concise, "concise", false, "One line per message")
	f.IntVar(&older, "older", 0, "Also load this many older pages")
	f.StringVar(&localName, "local-name", "", "Name shown for local messages")
	return cmd
}

func newSendCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <inbox> <text>",
		Short: "Send a message to the agent of a job inbox",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := inbox.JobID(args[0])
			if err != nil {
				return err
			}
			resp, err := env.Client.SendJobMessage(cmd.Context(), api.SendJobMessageRequest{
				JobMessage: api.JobMessage{
					JobID:   jobID,
					Content: strings.Join(args[1:], " "),
				},
			})
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), resp)
		},
	}
}

type createdJob struct {
	JobID   string `json:"job_id"`
	InboxID string `json:"inbox_id"`
}

func newCreateCommand(env *Env) *cobra.Command {
	var hidden bool
	cmd := &cobra.Command{
		Use:   "create <agent>",
		Short: "Start a job conversation with an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := env.Client.CreateJob(cmd.Context(), api.CreateJobRequest{
				LLMProvider:     args[0],
				JobCreationInfo: api.JobCreationInfo{IsHidden: hidden},
			})
			if err != nil {
				return err
			}
			return env.print(cmd.OutOrStdout(), createdJob{JobID: resp.JobID, InboxID: inbox.JobInboxID(resp.JobID)})
		},
	}
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Hide the job from inbox listings")
	return cmd
}

func newRenameCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <inbox> <name>",
		Short: "Set the display name of an inbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.Client.UpdateInboxName(cmd.Context(), api.UpdateInboxNameRequest{
				InboxName:  args[0],
				CustomName: args[1],
			})
		},
	}
}
