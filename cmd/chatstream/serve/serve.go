// Package servecmder provides the serve command, which runs a mock chat
// backend that streams a transcript.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/mockserver"
)

// serveFlags are the registry flags the serve command binds.
var serveFlags = []string{
	config.FlagListen,
	config.FlagChunkSize,
	config.FlagDelay,
	config.FlagMockFraming,
	config.FlagTranscript,
}

type ServeCommander struct {
	listen     string
	chunkSize  int
	delay      string
	framing    string
	transcript string
	debug      bool

	v      *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run a mock chat backend.

The mock backend answers every POST /api/chat with the same transcript,
streamed in small chunks with a pause between them so that markers and
multi-byte characters are split across network reads. The built-in demo
transcript is used unless --transcript names a file.

Examples:
  chatstream serve
  chatstream serve --listen :9090 --framing sse
  chatstream serve --chunk-size 3 --delay 50ms --transcript reply.txt`

const serveShortDesc string = "Run a mock chat backend"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagDelay, &cmder.delay)
	config.AddStringFlag(cmd, config.Flags, config.FlagMockFraming, &cmder.framing)
	config.AddStringFlag(cmd, config.Flags, config.FlagTranscript, &cmder.transcript)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	var server *mockserver.Server
	err := cliui.Step(os.Stderr, "Preparing mock server", cliui.IsTerminal(os.Stderr), func() error {
		var err error
		server, err = c.newServer()
		return err
	})
	if err != nil {
		return err
	}
	defer server.Close()

	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("mock server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

func (c *ServeCommander) newServer() (*mockserver.Server, error) {
	cfg := mockserver.Config{
		ListenAddr: c.v.GetString("mock.listen"),
		ChunkSize:  c.v.GetInt("mock.chunk_size"),
		Delay:      c.v.GetDuration("mock.delay"),
		Framing:    c.v.GetString("mock.framing"),
	}

	if path := c.v.GetString("mock.transcript"); path != "" {
		transcript, err := mockserver.LoadTranscript(path)
		if err != nil {
			return nil, err
		}
		cfg.Transcript = transcript
		c.logger.Debug("loaded transcript", "path", path, "bytes", len(transcript))
	}

	server, err := mockserver.New(cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating mock server: %w", err)
	}
	return server, nil
}
