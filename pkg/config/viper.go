package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "CHATSTREAM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATSTREAM_CLIENT_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// StringList reads a list key that may come from TOML as an array or from
// the environment or a flag as a comma-separated string.
func StringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, SplitList(item)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("client.target", d.Client.Target)
	v.SetDefault("client.path", d.Client.Path)
	v.SetDefault("client.framing", d.Client.Framing)
	v.SetDefault("client.timeout", d.Client.Timeout)

	v.SetDefault("stream.markdown_images", d.Stream.MarkdownImages)
	v.SetDefault("stream.read_size", d.Stream.ReadSize)
	v.SetDefault("stream.max_pending", d.Stream.MaxPending)

	v.SetDefault("publish.provider", d.Publish.Provider)
	v.SetDefault("publish.brokers", d.Publish.Brokers)
	v.SetDefault("publish.topic", d.Publish.Topic)

	v.SetDefault("mock.listen", d.Mock.Listen)
	v.SetDefault("mock.chunk_size", d.Mock.ChunkSize)
	v.SetDefault("mock.delay", d.Mock.Delay)
	v.SetDefault("mock.framing", d.Mock.Framing)
	v.SetDefault("mock.transcript", d.Mock.Transcript)
}
