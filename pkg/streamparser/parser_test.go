package streamparser_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/logger"
	sp "github.com/papercomputeco/chatstream/pkg/streamparser"
	testutils "github.com/papercomputeco/chatstream/pkg/utils/test"
)

func drain(p *sp.Parser) []*sp.Event {
	var events []*sp.Event
	for {
		ev, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, ev)
	}
}

func parseChunks(chunks []string, opts ...sp.Option) []*sp.Event {
	return drain(sp.New(testutils.NewStringChunkReader(chunks...), opts...))
}

func jsonPayloads(events []*sp.Event) []map[string]any {
	var out []map[string]any
	for _, ev := range events {
		if ev.IsJSON() {
			out = append(out, ev.JSON)
		}
	}
	return out
}

var _ = Describe("Parser", func() {
	Describe("inline control objects", func() {
		It("splits text around an inline object", func() {
			events := parseChunks([]string{`Hello {"conversation_id":"abc"} world`})

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("Hello "),
				sp.JSONEvent(map[string]any{"conversation_id": "abc"}, sp.OriginInline),
				sp.TextEvent(" world"),
			}))
		})

		It("handles back-to-back objects in one read", func() {
			events := parseChunks([]string{`{"a":1}{"b":2}`})

			Expect(events).To(HaveLen(2))
			Expect(jsonPayloads(events)).To(Equal([]map[string]any{
				{"a": float64(1)},
				{"b": float64(2)},
			}))
		})

		It("ignores braces inside string literals", func() {
			events := parseChunks([]string{`x {"thoughts":["a}","b{","c\"}"]} y`})

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("x "),
				sp.JSONEvent(map[string]any{"thoughts": []any{"a}", "b{", `c"}`}}, sp.OriginInline),
				sp.TextEvent(" y"),
			}))
		})

		It("waits for an object split across reads", func() {
			p := sp.New(testutils.NewStringChunkReader(`start {"conver`, `sation_id":`, `"xyz"} end`))

			ev, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(sp.TextEvent("start ")))

			ev, err = p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(sp.JSONEvent(map[string]any{"conversation_id": "xyz"}, sp.OriginInline)))

			ev, err = p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(sp.TextEvent(" end")))

			ev, err = p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("defers a balanced but invalid candidate and flushes it as text", func() {
			events := parseChunks([]string{`use {oops} here`, ` and {"ok":true} later`})

			Expect(jsonPayloads(events)).To(BeEmpty())
			Expect(sp.Text(events)).To(Equal(`use {oops} here and {"ok":true} later`))
		})

		It("flushes an unterminated object as literal text", func() {
			events := parseChunks([]string{`Complete text and {"a":`, `1`})

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent(`Complete text and {"a":1`),
			}))
		})
	})

	Describe("markers", func() {
		DescribeTable("round-trips a progress payload",
			func(obj map[string]any) {
				payload, err := json.Marshal(obj)
				Expect(err).NotTo(HaveOccurred())

				input := "prefix" + "__PROGRESS__" + string(payload) + "__PROGRESS__" + "suffix"
				events := parseChunks([]string{input})

				// Round-trip through encoding/json to normalise numbers.
				var want map[string]any
				Expect(json.Unmarshal(payload, &want)).To(Succeed())

				Expect(events).To(Equal([]*sp.Event{
					sp.TextEvent("prefix"),
					sp.JSONEvent(want, sp.OriginProgress),
					sp.TextEvent("suffix"),
				}))
			},
			Entry("message only", map[string]any{"type": "progress", "message": "Searching documents"}),
			Entry("all fields", map[string]any{
				"type": "progress", "message": "Reading", "step": "retrieval",
				"progress": 0.5, "timestamp": 1735689600,
			}),
			Entry("nested values", map[string]any{"type": "progress", "detail": map[string]any{"files": []any{"a.pdf", "b.docx"}}}),
			Entry("unicode message", map[string]any{"type": "progress", "message": "Étape 2 ✓"}),
			Entry("message containing braces", map[string]any{"type": "progress", "message": "{not} a }{ problem"}),
		)

		It("emits metadata markers with their origin", func() {
			events := parseChunks([]string{`a__METADATA__{"sources":[{"id":1}]}__METADATA__b`})

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("a"),
				sp.JSONEvent(map[string]any{"sources": []any{map[string]any{"id": float64(1)}}}, sp.OriginMetadata),
				sp.TextEvent("b"),
			}))
		})

		It("drops a malformed marker without failing the stream", func() {
			var logs bytes.Buffer
			l := logger.New(logger.WithWriter(&logs), logger.WithJSON(true))

			events := parseChunks(
				[]string{"before __PROGRESS__not json__PROGRESS__ after"},
				sp.WithLogger(l),
			)

			Expect(jsonPayloads(events)).To(BeEmpty())
			Expect(sp.Text(events)).To(Equal("before  after"))
			Expect(logs.String()).To(ContainSubstring("dropping malformed marker"))
		})

		It("drops markers whose payload is not an object", func() {
			events := parseChunks([]string{"x__METADATA__[1,2]__METADATA__y__PROGRESS__null__PROGRESS__z"})

			Expect(jsonPayloads(events)).To(BeEmpty())
			Expect(sp.Text(events)).To(Equal("xyz"))
		})

		It("reassembles a marker token split across reads", func() {
			events := parseChunks([]string{`one __PRO`, `GRESS__{"type":"progress","message":"m"}__PROG`, `RESS__ two`})

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("one "),
				sp.JSONEvent(map[string]any{"type": "progress", "message": "m"}, sp.OriginProgress),
				sp.TextEvent(" two"),
			}))
		})

		It("emits text preceding a marker before the marker's payload", func() {
			p := sp.New(strings.NewReader(`lead __METADATA__{"k":"v"}__METADATA__`))

			first, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IsText()).To(BeTrue())

			second, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(second.IsJSON()).To(BeTrue())
		})

		It("extracts a marker that follows a code snippet with braces", func() {
			events, err := sp.Parse(strings.NewReader("Use `func f() { return 1 }` here. __METADATA__{\"sources\":[1]}__METADATA__ bye"))
			Expect(err).NotTo(HaveOccurred())

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("Use `func f() "),
				sp.JSONEvent(map[string]any{"sources": []any{float64(1)}}, sp.OriginMetadata),
				sp.TextEvent("{ return 1 }` here.  bye"),
			}))
		})

		It("extracts a marker that follows an unbalanced brace", func() {
			events := parseChunks([]string{`Open brace { alone __PROGRESS__{"type":"progress",`, `"message":"m"}__PROGRESS__ end`})

			Expect(jsonPayloads(events)).To(Equal([]map[string]any{{"type": "progress", "message": "m"}}))
			Expect(sp.Text(events)).To(Equal("Open brace { alone  end"))
			Expect(sp.Text(events)).NotTo(ContainSubstring("progress"))
		})

		It("resolves an object once a marker inside it is extracted", func() {
			events := parseChunks([]string{`{"a":1, __PROGRESS__{"type":"progress"}__PROGRESS__"b":2}`})

			Expect(events).To(Equal([]*sp.Event{
				sp.JSONEvent(map[string]any{"type": "progress"}, sp.OriginProgress),
				sp.JSONEvent(map[string]any{"a": float64(1), "b": float64(2)}, sp.OriginInline),
			}))
		})

		It("extracts a complete marker behind an unterminated one at end of stream", func() {
			events := parseChunks([]string{`a __PROGRESS__ b __METADATA__{"k":1}__METADATA__ c`})

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("a  b "),
				sp.JSONEvent(map[string]any{"k": float64(1)}, sp.OriginMetadata),
				sp.TextEvent(" c"),
			}))
		})

		It("strips a bare token left at end of stream", func() {
			events := parseChunks([]string{"hello __METADATA__ world"})

			Expect(sp.Text(events)).To(Equal("hello  world"))
		})

		It("keeps underscores that never become a token", func() {
			events := parseChunks([]string{"snake_case and __init__ and __PROG", "RAM_"})

			Expect(sp.Text(events)).To(Equal("snake_case and __init__ and __PROGRAM_"))
		})
	})

	Describe("decoding", func() {
		It("reassembles a UTF-8 sequence split across reads", func() {
			r := testutils.NewChunkReader([]byte{'a', 0xc3}, []byte{0xbc, 'b'})
			events := drain(sp.New(r))

			Expect(sp.Text(events)).To(Equal("aüb"))
		})

		It("splits a four byte rune over every boundary", func() {
			r := testutils.NewChunkReader(testutils.SplitEvery([]byte("🎉 done"), 1)...)
			events := drain(sp.New(r))

			Expect(sp.Text(events)).To(Equal("🎉 done"))
		})

		It("replaces invalid bytes instead of failing", func() {
			events := parseChunks([]string{"\xff ok \xc3"})

			Expect(sp.Text(events)).To(Equal("\uFFFD ok \uFFFD"))
		})
	})

	Describe("markdown images", func() {
		It("never splits an image tag across text events", func() {
			events := parseChunks(
				[]string{"Some text ![incomplete", "](https://example.com/image.png) complete image"},
				sp.WithMarkdownImages(true),
			)

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("Some text "),
				sp.TextEvent("![incomplete](https://example.com/image.png) complete image"),
			}))
		})

		It("flushes an incomplete tag at end of stream", func() {
			events := parseChunks(
				[]string{"Complete text and ![incomplete"},
				sp.WithMarkdownImages(true),
			)

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("Complete text and "),
				sp.TextEvent("![incomplete"),
			}))
		})

		It("holds a tag with a title until it closes", func() {
			events := parseChunks(
				[]string{`a ![x](u "ti`, `tle") b`},
				sp.WithMarkdownImages(true),
			)

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("a "),
				sp.TextEvent(`![x](u "title") b`),
			}))
		})

		It("emits complete tags and holds only the trailing one", func() {
			events := parseChunks(
				[]string{"![a](1) mid ![b](", "2) end"},
				sp.WithMarkdownImages(true),
			)

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("![a](1) mid "),
				sp.TextEvent("![b](2) end"),
			}))
		})

		It("releases a candidate once it can no longer be a tag", func() {
			events := parseChunks(
				[]string{"Wow![", "not an image\n", "next"},
				sp.WithMarkdownImages(true),
			)

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("Wow"),
				sp.TextEvent("![not an image\n"),
				sp.TextEvent("next"),
			}))
		})

		It("flushes a held tail before a JSON event", func() {
			events := parseChunks(
				[]string{"see ![a", `{"conversation_id":"c"}`, "](u)"},
				sp.WithMarkdownImages(true),
			)

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("see ![a"),
				sp.JSONEvent(map[string]any{"conversation_id": "c"}, sp.OriginInline),
				sp.TextEvent("](u)"),
			}))
		})

		It("keeps a brace in an image URL inside the tag", func() {
			events, err := sp.Parse(strings.NewReader("See ![a](http://x/{id}.png) ok"), sp.WithMarkdownImages(true))
			Expect(err).NotTo(HaveOccurred())

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("See "),
				sp.TextEvent("![a](http://x/{id}.png) ok"),
			}))
		})

		It("keeps a brace in an image URL inside the tag for any split", func() {
			input := []byte("See ![a](http://x/{id}.png) ok")

			for seed := uint64(1); seed <= 30; seed++ {
				chunks := testutils.SplitRandom(input, seed, 1+int(seed%5))
				events := drain(sp.New(testutils.NewChunkReader(chunks...), sp.WithMarkdownImages(true)))

				Expect(events).To(ContainElement(WithTransform(func(ev *sp.Event) bool {
					return strings.Contains(ev.Text, "![a](http://x/{id}.png)")
				}, BeTrue())), "seed %d", seed)
			}
		})

		It("flushes a held tag and a token prefix as one event", func() {
			events := parseChunks([]string{"see ![a](u__"}, sp.WithMarkdownImages(true))

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("see "),
				sp.TextEvent("![a](u__"),
			}))
		})

		It("does not hold back in the plain variant", func() {
			events := parseChunks([]string{"Some text ![incomplete", "](u)"})

			Expect(events).To(Equal([]*sp.Event{
				sp.TextEvent("Some text ![incomplete"),
				sp.TextEvent("](u)"),
			}))
		})
	})

	Describe("pending bound", func() {
		It("releases an unterminated object", func() {
			events := parseChunks(
				[]string{"a {never closed and quite long"},
				sp.WithMaxPending(8),
			)

			Expect(jsonPayloads(events)).To(BeEmpty())
			Expect(sp.Text(events)).To(Equal("a {never closed and quite long"))
		})

		It("releases an unterminated marker", func() {
			events := parseChunks(
				[]string{`x __PROGRESS__ dangling text then {"a":1}`},
				sp.WithMaxPending(8),
			)

			Expect(sp.Coalesce(events)).To(Equal([]*sp.Event{
				sp.TextEvent("x  dangling text then "),
				sp.JSONEvent(map[string]any{"a": float64(1)}, sp.OriginInline),
			}))
		})
	})

	Describe("stream errors", func() {
		It("returns classified events before the read error", func() {
			boom := errors.New("connection reset")
			r := testutils.NewStringChunkReader("hello {")
			r.Err = boom
			p := sp.New(r)

			ev, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(sp.TextEvent("hello ")))

			_, err = p.Next()
			Expect(err).To(MatchError(boom))

			_, err = p.Next()
			Expect(err).To(MatchError(boom))
		})

		It("surfaces the error through All and Parse", func() {
			boom := errors.New("timeout")
			r := testutils.NewStringChunkReader("partial")
			r.Err = boom

			events, err := sp.Parse(r)
			Expect(err).To(MatchError(boom))
			Expect(sp.Text(events)).To(Equal("partial"))
		})
	})

	Describe("iteration", func() {
		It("stops reading when the consumer breaks", func() {
			r := testutils.NewStringChunkReader("one ", `{"a":1}`, " two", " three")
			p := sp.New(r)

			var seen []*sp.Event
			for ev, err := range p.All() {
				Expect(err).NotTo(HaveOccurred())
				seen = append(seen, ev)
				if ev.IsJSON() {
					break
				}
			}

			Expect(seen).To(HaveLen(2))
			// The remaining chunks were never pulled.
			rest, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(Equal(sp.TextEvent(" two")))
		})

		It("produces identical events on repeated runs", func() {
			input := `x {"a":[1,2]} __METADATA__{"m":true}__METADATA__ ![i](u) y`

			first, err := sp.Parse(strings.NewReader(input), sp.WithMarkdownImages(true))
			Expect(err).NotTo(HaveOccurred())
			second, err := sp.Parse(strings.NewReader(input), sp.WithMarkdownImages(true))
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
		})
	})
})
