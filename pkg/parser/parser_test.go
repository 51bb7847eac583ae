package parser_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/parser"
)

var _ = Describe("TextParser", func() {
	It("splits a 2400-character document into three overlapping chunks", func() {
		data := []byte(strings.Repeat("a", 800) + strings.Repeat("b", 800) + strings.Repeat("c", 800))
		Expect(data).To(HaveLen(2400))

		chunks, err := parser.NewTextParser(0, 0).Parse("doc.txt", data)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(3))

		Expect(chunks[0].Metadata["offset"]).To(Equal("0"))
		Expect(chunks[1].Metadata["offset"]).To(Equal("800"))
		Expect(chunks[2].Metadata["offset"]).To(Equal("1600"))

		Expect(chunks[0].Text).To(HaveLen(1000))
		Expect(chunks[1].Text).To(HaveLen(1000))
		Expect(chunks[2].Text).To(HaveLen(800))

		// Overlap: chunk 2 begins inside chunk 1.
		Expect(chunks[1].Text[:200]).To(Equal(chunks[0].Text[800:]))
	})

	It("returns a single chunk for short documents", func() {
		chunks, err := parser.NewTextParser(0, 0).Parse("short.txt", []byte("hello world"))
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Text).To(Equal("hello world"))
		Expect(chunks[0].Metadata["source"]).To(Equal("short.txt"))
	})

	It("returns nothing for empty input", func() {
		chunks, err := parser.NewTextParser(0, 0).Parse("empty.txt", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})

	It("counts characters, not bytes", func() {
		// 4 runes per repetition, 12 bytes.
		data := []byte(strings.Repeat("héllo", 100))
		chunks, err := parser.NewTextParser(100, 0).Parse("uni.txt", data)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(5))
	})
})

var _ = Describe("CSVParser", func() {
	It("emits one chunk per data row with header-prefixed values", func() {
		data := []byte("name,city\nada,london\ngrace,dc\n")

		chunks, err := parser.NewCSVParser().Parse("people.csv", data)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].Text).To(Equal("name: ada\ncity: london"))
		Expect(chunks[0].Metadata["row"]).To(Equal("1"))
		Expect(chunks[1].Metadata["type"]).To(Equal("csv"))
	})

	It("returns nothing for a header-only file", func() {
		chunks, err := parser.NewCSVParser().Parse("empty.csv", []byte("a,b,c\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})
})

var _ = Describe("Registry", func() {
	It("routes by extension", func() {
		r := parser.NewRegistry()

		p, err := r.For("notes.md")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).NotTo(BeNil())

		_, err = r.For("image.png")
		Expect(err).To(MatchError(parser.ErrUnsupportedFormat))
	})
})
