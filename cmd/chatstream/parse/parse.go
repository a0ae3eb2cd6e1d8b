// Package parsecmder provides the parse command, which splits a recorded or
// live reply transcript into text and structured events.
package parsecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/follow"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// parseFlags are the registry flags the parse command binds.
var parseFlags = []string{
	config.FlagMarkdownImages,
	config.FlagReadSize,
	config.FlagMaxPending,
	config.FlagPublisher,
	config.FlagBrokers,
	config.FlagTopic,
}

type parseCommander struct {
	markdownImages bool
	readSize       int
	maxPending     int
	publisher      string
	brokers        string
	topic          string

	follow   bool
	sse      bool
	format   string
	coalesce bool
	debug    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v      *viper.Viper
	logger *slog.Logger
}

const parseLongDesc string = `Parse a reply transcript into events.

Reads a transcript from a file, or from stdin when no file or "-" is given,
and splits it into text events and JSON events. Progress and metadata
markers and inline control objects become JSON events; everything else is
text.

By default each event is written as one JSON line. With --format text the
reply is rendered the way "chatstream chat" renders it. Structured events
are also forwarded to the configured publisher.

Use --follow to keep reading a file that is still being written, and --sse
when the transcript is a server-sent events stream.

Examples:
  chatstream parse reply.txt
  chatstream parse --sse --format text < reply.sse
  chatstream parse --follow --publisher kafka --brokers localhost:9092 live.txt`

const parseShortDesc string = "Parse a reply transcript into events"

func NewParseCmd() *cobra.Command {
	cmder := &parseCommander{}

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: parseShortDesc,
		Long:  parseLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.format != formatJSON && cmder.format != formatText {
				return fmt.Errorf("unknown format %q (expected json or text)", cmder.format)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, parseFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			path := ""
			if len(args) == 1 && args[0] != "-" {
				path = args[0]
			}
			return cmder.run(cmd.Context(), path)
		},
	}

	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdownImages, &cmder.markdownImages)
	config.AddIntFlag(cmd, config.Flags, config.FlagReadSize, &cmder.readSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxPending, &cmder.maxPending)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	cmd.Flags().BoolVarP(&cmder.follow, "follow", "f", false, "Keep reading the file as it grows")
	cmd.Flags().BoolVar(&cmder.sse, "sse", false, "Input is a server-sent events stream")
	cmd.Flags().StringVar(&cmder.format, "format", formatJSON, "Output format (json or text)")
	cmd.Flags().BoolVar(&cmder.coalesce, "coalesce", false, "Merge consecutive text events before writing them (json format only)")

	return cmd
}

func (c *parseCommander) run(ctx context.Context, path string) error {
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

	src, err := c.open(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close()

	var payload io.Reader = src
	if c.follow {
		payload = followEOF{src}
	}
	if c.sse {
		payload = sse.NewDataReader(payload, nil)
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

	requestID := uuid.NewString()
	opts := []streamparser.Option{
		streamparser.WithMarkdownImages(c.v.GetBool("stream.markdown_images")),
		streamparser.WithReadSize(c.v.GetInt("stream.read_size")),
		streamparser.WithLogger(c.logger.With("request_id", requestID)),
	}
	if n := c.v.GetInt("stream.max_pending"); n != 0 {
		opts = append(opts, streamparser.WithMaxPending(n))
	}
	parser := streamparser.New(payload, opts...)

	sink := c.newSink()
	conv := chat.NewConversation("")

	for ev, err := range parser.All() {
		if err != nil {
			sink.fail(err)
			return fmt.Errorf("parsing transcript: %w", err)
		}

		conv.Apply(ev)
		if ev.IsJSON() {
			if err := forwarder.Forward(ctx, ev, requestID, conv.ID); err != nil {
				c.logger.Warn("forwarding event", "error", err)
			}
		}

		if err := sink.write(ev); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
	}

	return sink.close()
}

func (c *parseCommander) open(ctx context.Context, path string) (io.ReadCloser, error) {
	switch {
	case path == "" && c.follow:
		return nil, errors.New("--follow requires a file")

	case path == "":
		return io.NopCloser(c.in), nil

	case c.follow:
		r, err := follow.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("following transcript: %w", err)
		}
		return r, nil

	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		return f, nil
	}
}

// followEOF ends a followed file cleanly on interrupt or removal, so the
// parser still flushes the text it was holding back.
type followEOF struct {
	io.Reader
}

func (f followEOF) Read(p []byte) (int, error) {
	n, err := f.Reader.Read(p)
	if errors.Is(err, context.Canceled) || errors.Is(err, follow.ErrRemoved) {
		err = io.EOF
	}
	return n, err
}

// sink writes events in the selected output format.
type sink interface {
	write(ev *streamparser.Event) error
	fail(err error)
	close() error
}

func (c *parseCommander) newSink() sink {
	if c.format == formatText {
		return &textSink{printer: cliui.NewPrinter(c.out, cliui.IsTerminal(c.out))}
	}
	return &jsonSink{enc: json.NewEncoder(c.out), coalesce: c.coalesce}
}

type jsonSink struct {
	enc      *json.Encoder
	coalesce bool
	text     *streamparser.Event
}

func (s *jsonSink) write(ev *streamparser.Event) error {
	if !s.coalesce {
		return s.enc.Encode(ev)
	}

	if ev.IsText() {
		if s.text == nil {
			s.text = streamparser.TextEvent(ev.Text)
		} else {
			s.text.Text += ev.Text
		}
		return nil
	}

	if err := s.flush(); err != nil {
		return err
	}
	return s.enc.Encode(ev)
}

func (s *jsonSink) flush() error {
	if s.text == nil {
		return nil
	}
	text := s.text
	s.text = nil
	return s.enc.Encode(text)
}

func (s *jsonSink) fail(_ error) {
	_ = s.flush()
}

func (s *jsonSink) close() error {
	return s.flush()
}

type textSink struct {
	printer *cliui.Printer
	conv    *chat.Conversation
}

func (s *textSink) write(ev *streamparser.Event) error {
	if s.conv == nil {
		s.conv = chat.NewConversation("")
	}
	s.printer.Update(s.conv.Apply(ev))
	return nil
}

func (s *textSink) fail(err error) {
	s.printer.Error(err)
}

func (s *textSink) close() error {
	s.printer.Finish()
	return nil
}
