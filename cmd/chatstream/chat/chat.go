// Package chatcmder provides the chat command for talking to a streaming
// chat backend.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/dotdir"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// chatFlags are the registry flags the chat command binds.
var chatFlags = []string{
	config.FlagTarget,
	config.FlagPath,
	config.FlagFraming,
	config.FlagTimeout,
	config.FlagMarkdownImages,
	config.FlagReadSize,
	config.FlagMaxPending,
	config.FlagPublisher,
	config.FlagBrokers,
	config.FlagTopic,
}

type chatCommander struct {
	target         string
	path           string
	framing        string
	timeout        string
	markdownImages bool
	readSize       int
	maxPending     int
	publisher      string
	brokers        string
	topic          string

	message    string
	resume     bool
	newSession bool
	markdown   bool
	debug      bool
	configDir  string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	color  bool

	v      *viper.Viper
	logger *slog.Logger
}

const chatLongDesc string = `Chat with a streaming chat backend.

Each message is posted to the backend and the reply is rendered as it
streams in. Progress markers, metadata markers and inline control objects
are separated from the reply text: progress and thoughts are shown on their
own lines, and every structured event is forwarded to the configured
publisher.

The conversation id assigned by the backend is saved in the .chatstream/
directory. Use --resume to continue the saved conversation, or --new to
forget it.

Examples:
  chatstream chat
  chatstream chat --target http://localhost:8080 --framing sse
  chatstream chat -m "summarize the report" --markdown
  chatstream chat --resume --publisher kafka --brokers localhost:9092`

const chatShortDesc string = "Chat with a streaming chat backend"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.color = cliui.IsTerminal(cmder.out)

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagPath, &cmder.path)
	config.AddStringFlag(cmd, config.Flags, config.FlagFraming, &cmder.framing)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdownImages, &cmder.markdownImages)
	config.AddIntFlag(cmd, config.Flags, config.FlagReadSize, &cmder.readSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxPending, &cmder.maxPending)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Resume the saved conversation")
	cmd.Flags().BoolVar(&cmder.newSession, "new", false, "Forget the saved conversation before starting")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each complete reply as markdown")
	cmd.MarkFlagsMutuallyExclusive("resume", "new")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	timeout := c.v.GetDuration("client.timeout")
	if timeout <= 0 {
		return fmt.Errorf("invalid client.timeout %q", c.v.GetString("client.timeout"))
	}

	client, err := chat.NewClient(chat.Config{
		Target:         c.v.GetString("client.target"),
		Path:           c.v.GetString("client.path"),
		Framing:        c.v.GetString("client.framing"),
		Timeout:        timeout,
		MarkdownImages: c.v.GetBool("stream.markdown_images"),
		ReadSize:       c.v.GetInt("stream.read_size"),
		MaxPending:     c.v.GetInt("stream.max_pending"),
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating chat client: %w", err)
	}

	publisher, err := chat.NewPublisher(chat.PublishConfig{
		Provider: c.v.GetString("publish.provider"),
		Brokers:  config.StringList(c.v, "publish.brokers"),
		Topic:    c.v.GetString("publish.topic"),
	}, c.logger)
	if err != nil {
		return err
	}
	forwarder := chat.NewForwarder(publisher, c.logger)
	defer func() {
		if err := forwarder.Close(); err != nil {
			c.logger.Warn("closing publisher", "error", err)
		}
	}()

	conv, err := c.loadConversation(client.URL())
	if err != nil {
		return err
	}

	if c.message != "" {
		return c.turn(ctx, client, forwarder, conv, c.message)
	}

	return c.loop(ctx, client, forwarder, conv)
}

// loadConversation applies --new and --resume to the saved session.
func (c *chatCommander) loadConversation(target string) (*chat.Conversation, error) {
	ddm := dotdir.NewManager()

	if c.newSession {
		if err := ddm.ClearSession(c.configDir); err != nil {
			return nil, fmt.Errorf("clearing session: %w", err)
		}
	}

	if !c.resume {
		return chat.NewConversation(""), nil
	}

	session, err := ddm.LoadSession(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if session == nil || session.ConversationID == "" {
		fmt.Fprintf(c.out, "  %s No saved conversation, starting a new one\n", c.render(cliui.DimStyle, "●"))
		return chat.NewConversation(""), nil
	}

	if session.Target != "" && session.Target != target {
		c.logger.Warn("saved conversation belongs to a different backend",
			"saved", session.Target,
			"current", target,
		)
	}

	fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
		c.prompt(cliui.SuccessMark),
		c.render(cliui.NameStyle, utils.Truncate(session.ConversationID, 32)),
		c.render(cliui.DimStyle, fmt.Sprintf("(saved %s)", session.UpdatedAt.Format(time.DateTime))),
	)
	return chat.NewConversation(session.ConversationID), nil
}

func (c *chatCommander) loop(ctx context.Context, client *chat.Client, forwarder *chat.Forwarder, conv *chat.Conversation) error {
	fmt.Fprintf(c.out, "  %s %s\n\n",
		c.render(cliui.KeyStyle, "Backend:"),
		c.render(cliui.NameStyle, client.URL()),
	)
	fmt.Fprintf(c.out, "  %s\n\n", c.render(cliui.DimStyle, "Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, c.prompt(userPrompt))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.turn(ctx, client, forwarder, conv, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(c.errOut, "  %s %v\n", c.prompt(cliui.FailMark), err)
			continue
		}

		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// turn sends one message and renders its reply. The session is saved once
// the backend has assigned a conversation id.
func (c *chatCommander) turn(ctx context.Context, client *chat.Client, forwarder *chat.Forwarder, conv *chat.Conversation, message string) error {
	conv.BeginTurn()

	var stream *chat.Stream
	err := cliui.Step(c.errOut, "Sending to "+client.URL(), c.color, func() error {
		var err error
		stream, err = client.Send(ctx, &chat.Request{
			Message:        message,
			ConversationID: conv.ID,
		})
		return err
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	printer := cliui.NewPrinter(c.out, c.color)
	fmt.Fprint(c.out, c.prompt(assistantPrompt))

	var streamErr error
	for ev, err := range stream.All() {
		if err != nil {
			streamErr = err
			break
		}

		if ev.IsJSON() {
			if err := forwarder.Forward(ctx, ev, stream.RequestID(), conv.ID); err != nil {
				c.logger.Warn("forwarding event", "error", err)
			}
		}

		update := conv.Apply(ev)
		if c.markdown {
			update.Text = ""
		}
		printer.Update(update)
	}
	printer.Finish()

	if c.markdown && conv.Reply() != "" {
		rendered, err := cliui.RenderMarkdown(conv.Reply(), cliui.MarkdownStyle(c.color), 0)
		if err != nil {
			c.logger.Debug("rendering markdown", "error", err)
		}
		fmt.Fprint(c.out, rendered)
	}

	if streamErr != nil {
		printer.Error(streamErr)
		return fmt.Errorf("reading reply: %w", streamErr)
	}

	fmt.Fprintln(c.out)
	return c.saveSession(conv, client.URL())
}

func (c *chatCommander) saveSession(conv *chat.Conversation, target string) error {
	if conv.ID == "" {
		return nil
	}

	err := dotdir.NewManager().SaveSession(&dotdir.Session{
		ConversationID: conv.ID,
		Target:         target,
		UpdatedAt:      time.Now().UTC(),
	}, c.configDir)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (c *chatCommander) prompt(styled string) string {
	if c.color {
		return styled
	}
	return ansi.Strip(styled)
}

func (c *chatCommander) render(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}
