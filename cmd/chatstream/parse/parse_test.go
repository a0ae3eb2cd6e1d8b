package parsecmder_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	parsecmder "github.com/papercomputeco/chatstream/cmd/chatstream/parse"
	"github.com/papercomputeco/chatstream/pkg/mockserver"
	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

const transcript = `Hi __PROGRESS__{"type":"progress","message":"working"}__PROGRESS__` +
	`{"conversation_id":"c-1"}there __METADATA__{"model":"m"}__METADATA__`

func newParseCmd(stdin string, stdout *bytes.Buffer, args ...string) *cobra.Command {
	cmd := parsecmder.NewParseCmd()
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "Override path to .chatstream/ config directory")
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd
}

func decodeLines(out *bytes.Buffer) []*streamparser.Event {
	var events []*streamparser.Event
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		ev := &streamparser.Event{}
		Expect(json.Unmarshal(scanner.Bytes(), ev)).To(Succeed())
		events = append(events, ev)
	}
	Expect(scanner.Err()).NotTo(HaveOccurred())
	return events
}

var _ = Describe("parse command", func() {
	It("writes stdin events as JSON lines", func() {
		var out bytes.Buffer
		cmd := newParseCmd(transcript, &out, "--coalesce")
		Expect(cmd.Execute()).To(Succeed())

		events := decodeLines(&out)
		Expect(events).To(HaveLen(5))
		Expect(events[0]).To(Equal(streamparser.TextEvent("Hi ")))
		Expect(events[1].Origin).To(Equal(streamparser.OriginProgress))
		Expect(events[1].JSON).To(HaveKeyWithValue("message", "working"))
		Expect(events[2].Origin).To(Equal(streamparser.OriginInline))
		Expect(events[2].JSON).To(HaveKeyWithValue("conversation_id", "c-1"))
		Expect(events[3]).To(Equal(streamparser.TextEvent("there ")))
		Expect(events[4].Origin).To(Equal(streamparser.OriginMetadata))
	})

	It("reads a transcript file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "reply.txt")
		Expect(os.WriteFile(path, []byte(transcript), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := newParseCmd("", &out, path, "--read-size", "3")
		Expect(cmd.Execute()).To(Succeed())

		events := decodeLines(&out)
		Expect(streamparser.Text(events)).To(Equal("Hi there "))
		structured := 0
		for _, ev := range events {
			if ev.IsJSON() {
				structured++
			}
		}
		Expect(structured).To(Equal(3))
	})

	It("unwraps server-sent events", func() {
		var framed strings.Builder
		for _, chunk := range mockserver.Split([]byte(transcript), 7) {
			framed.Write(mockserver.SSEFrame(chunk))
		}
		framed.WriteString("data: [DONE]\n\n")

		var out bytes.Buffer
		cmd := newParseCmd(framed.String(), &out, "--sse", "--coalesce")
		Expect(cmd.Execute()).To(Succeed())

		events := decodeLines(&out)
		Expect(events).To(HaveLen(5))
		Expect(streamparser.Text(events)).To(Equal("Hi there "))
	})

	It("renders events as text", func() {
		var out bytes.Buffer
		cmd := newParseCmd(transcript, &out, "--format", "text")
		Expect(cmd.Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Hi"))
		Expect(out.String()).To(ContainSubstring("working"))
		Expect(out.String()).To(ContainSubstring("c-1"))
		Expect(out.String()).To(ContainSubstring("model:"))
		Expect(out.String()).NotTo(ContainSubstring("__METADATA__"))
	})

	It("rejects unknown formats", func() {
		var out bytes.Buffer
		cmd := newParseCmd(transcript, &out, "--format", "yaml")
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("yaml")))
	})

	It("requires a file to follow", func() {
		var out bytes.Buffer
		cmd := newParseCmd(transcript, &out, "--follow")
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("--follow")))
	})

	It("follows a growing file until it is removed", func() {
		path := filepath.Join(GinkgoT().TempDir(), "live.txt")
		Expect(os.WriteFile(path, []byte("Hi "), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := newParseCmd("", &out, "--follow", "--coalesce", path)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- cmd.ExecuteContext(ctx)
		}()

		time.Sleep(200 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.WriteString(`__PROGRESS__{"type":"progress","message":"m"}__PROGRESS__there`)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Close()).To(Succeed())

		time.Sleep(200 * time.Millisecond)
		Expect(os.Remove(path)).To(Succeed())

		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))

		events := decodeLines(&out)
		Expect(streamparser.Text(events)).To(Equal("Hi there"))
		Expect(events).To(ContainElement(HaveField("Origin", streamparser.OriginProgress)))
	})
})
