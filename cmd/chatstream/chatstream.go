// Package chatstreamcmder
package chatstreamcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatstream/cmd/chatstream/chat"
	configcmder "github.com/papercomputeco/chatstream/cmd/chatstream/config"
	initcmder "github.com/papercomputeco/chatstream/cmd/chatstream/init"
	parsecmder "github.com/papercomputeco/chatstream/cmd/chatstream/parse"
	servecmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve"
	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
)

const chatstreamLongDesc string = `Chatstream splits streamed chat replies into text and structured events.

Chat backends interleave reply text with progress markers, metadata markers
and inline JSON control objects. Chatstream separates them as the reply
arrives:
  chatstream chat      Chat with a backend, rendering the reply live
  chatstream parse     Parse a recorded or live transcript into events
  chatstream serve     Run a mock backend that streams a transcript
  chatstream config    Manage persistent configuration
  chatstream init      Initialize a local .chatstream/ directory`

const chatstreamShortDesc string = "Chatstream - streamed chat reply parser"

func NewChatstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatstream",
		Short:         chatstreamShortDesc,
		Long:          chatstreamLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(parsecmder.NewParseCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
