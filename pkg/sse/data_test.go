package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	g "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = g.Describe("DataReader", func() {
	g.It("concatenates data payloads without separators", func() {
		input := "data: Hello \n\ndata: __PROGRESS__{\"type\":\"progress\"}\n\ndata: __PROGRESS__ world\n\n"
		out, err := io.ReadAll(NewDataReader(strings.NewReader(input), nil))

		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("Hello __PROGRESS__{\"type\":\"progress\"}__PROGRESS__ world"))
	})

	g.It("restores newlines carried as multiple data lines", func() {
		input := "data: first line\ndata: second line\n\n"
		out, err := io.ReadAll(NewDataReader(strings.NewReader(input), nil))

		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("first line\nsecond line"))
	})

	g.It("stops at the sentinel event", func() {
		input := "data: kept\n\ndata: [DONE]\n\ndata: ignored\n\n"
		out, err := io.ReadAll(NewDataReader(strings.NewReader(input), nil))

		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("kept"))
	})

	g.It("serves payloads through small reads", func() {
		input := "data: abcdefgh\n\ndata: ij\n\n"
		r := NewDataReader(strings.NewReader(input), nil)

		buf := make([]byte, 3)
		var got []string
		for {
			n, err := r.Read(buf)
			if n > 0 {
				got = append(got, string(buf[:n]))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(got).To(Equal([]string{"abc", "def", "gh", "ij"}))
	})

	g.It("tees the raw framing", func() {
		input := "data: a\n\ndata: [DONE]\n\n"
		dst := &bytes.Buffer{}
		_, err := io.ReadAll(NewDataReader(strings.NewReader(input), dst))

		Expect(err).NotTo(HaveOccurred())
		Expect(dst.String()).To(Equal(input))
	})

	g.It("propagates source errors", func() {
		src := io.MultiReader(strings.NewReader("data: a\n\n"), iotest.ErrReader(errors.New("reset by peer")))
		out, err := io.ReadAll(NewDataReader(src, nil))

		Expect(err).To(MatchError("reset by peer"))
		Expect(string(out)).To(Equal("a"))
	})
})
