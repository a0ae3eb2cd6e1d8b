package follow_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/follow"
)

var _ = Describe("Reader", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "reply.log")
		Expect(os.WriteFile(path, []byte("Hello "), 0o600)).To(Succeed())
	})

	appendTo := func(data string) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.WriteString(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Close()).To(Succeed())
	}

	It("reads existing content then appended content until removal", func() {
		r, err := follow.Open(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		go func() {
			defer GinkgoRecover()
			time.Sleep(50 * time.Millisecond)
			appendTo("world")
			time.Sleep(50 * time.Millisecond)
			Expect(os.Remove(path)).To(Succeed())
		}()

		data, err := io.ReadAll(r)
		Expect(err).To(MatchError(follow.ErrRemoved))
		Expect(string(data)).To(Equal("Hello world"))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		r, err := follow.Open(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		data, err := io.ReadAll(r)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(string(data)).To(Equal("Hello "))
	})

	It("fails for a missing file", func() {
		_, err := follow.Open(context.Background(), filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
