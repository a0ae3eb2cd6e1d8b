package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/chatstream/cmd/chatstream/init"
	"github.com/papercomputeco/chatstream/pkg/config"
)

func newInitCmd(out *bytes.Buffer, args ...string) *cobra.Command {
	cmd := initcmder.NewInitCmd()
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatstream/ config directory")
	cmd.SetOut(out)
	cmd.SetArgs(args)
	return cmd
}

func loadConfig(dir string) *config.Config {
	cfger, err := config.NewConfiger(dir)
	Expect(err).NotTo(HaveOccurred())
	cfg, err := cfger.LoadConfig()
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("init command", func() {
	var dir string

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), ".chatstream")
	})

	It("writes the local preset by default", func() {
		var out bytes.Buffer
		Expect(newInitCmd(&out, "--config-dir", dir).Execute()).To(Succeed())

		_, err := os.Stat(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(loadConfig(dir).Client.Framing).To(Equal("raw"))
	})

	It("writes the named preset", func() {
		var out bytes.Buffer
		Expect(newInitCmd(&out, "--config-dir", dir, "--preset", "kafka").Execute()).To(Succeed())

		cfg := loadConfig(dir)
		Expect(cfg.Publish.Provider).To(Equal("kafka"))
		Expect(cfg.Publish.Brokers).To(Equal([]string{"localhost:9092"}))
	})

	It("keeps an existing config unless forced", func() {
		var out bytes.Buffer
		Expect(newInitCmd(&out, "--config-dir", dir, "--preset", "sse").Execute()).To(Succeed())
		Expect(newInitCmd(&out, "--config-dir", dir, "--preset", "kafka").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
		Expect(loadConfig(dir).Publish.Provider).To(Equal("nop"))

		Expect(newInitCmd(&out, "--config-dir", dir, "--preset", "kafka", "--force").Execute()).To(Succeed())
		Expect(loadConfig(dir).Publish.Provider).To(Equal("kafka"))
	})

	It("rejects unknown presets", func() {
		var out bytes.Buffer
		Expect(newInitCmd(&out, "--config-dir", dir, "--preset", "cloud").Execute()).To(MatchError(ContainSubstring("cloud")))
	})
})
