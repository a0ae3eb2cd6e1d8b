package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline.
type Flag struct {
	// Name is the long flag name (e.g. "target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "t"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagTarget         = "target"
	FlagPath           = "path"
	FlagFraming        = "framing"
	FlagTimeout        = "timeout"
	FlagMarkdownImages = "markdown-images"
	FlagReadSize       = "read-size"
	FlagMaxPending     = "max-pending"
	FlagPublisher      = "publisher"
	FlagBrokers        = "brokers"
	FlagTopic          = "topic"
	FlagListen         = "listen"
	FlagChunkSize      = "chunk-size"
	FlagDelay          = "delay"
	FlagTranscript     = "transcript"

	// The mock server's framing uses the "framing" flag name but binds to
	// its own viper key.
	FlagMockFraming = "mock-framing"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagTarget:         {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Chat backend base URL"},
	FlagPath:           {Name: "path", ViperKey: "client.path", Description: "Chat endpoint path"},
	FlagFraming:        {Name: "framing", ViperKey: "client.framing", Description: "Reply framing (raw or sse)"},
	FlagTimeout:        {Name: "timeout", ViperKey: "client.timeout", Description: "Request timeout including the streamed reply"},
	FlagMarkdownImages: {Name: "markdown-images", ViperKey: "stream.markdown_images", Description: "Hold back text until markdown image tags complete"},
	FlagReadSize:       {Name: "read-size", ViperKey: "stream.read_size", Description: "Bytes per read from the reply body"},
	FlagMaxPending:     {Name: "max-pending", ViperKey: "stream.max_pending", Description: "Bytes an unresolved structure may hold back (negative disables)"},
	FlagPublisher:      {Name: "publisher", ViperKey: "publish.provider", Description: "Control event publisher (nop or kafka)"},
	FlagBrokers:        {Name: "brokers", ViperKey: "publish.brokers", Description: "Comma-separated Kafka brokers"},
	FlagTopic:          {Name: "topic", ViperKey: "publish.topic", Description: "Kafka topic for control events"},
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "mock.listen", Description: "Address for the mock backend to listen on"},
	FlagChunkSize:      {Name: "chunk-size", ViperKey: "mock.chunk_size", Description: "Transcript bytes per streamed write"},
	FlagDelay:          {Name: "delay", ViperKey: "mock.delay", Description: "Pause between streamed writes"},
	FlagTranscript:     {Name: "transcript", ViperKey: "mock.transcript", Description: "Reply transcript file (defaults to the built-in demo)"},
	FlagMockFraming:    {Name: "framing", ViperKey: "mock.framing", Description: "Reply framing (raw or sse)"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
