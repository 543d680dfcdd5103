package framer

import (
	"bytes"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFramer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Framer Suite")
}

var _ = Describe("Framer", func() {
	var framer *Framer

	BeforeEach(func() {
		framer = New()
	})

	Context("Complete lines", func() {
		When("Given a single CRLF-terminated line", func() {
			It("emits the line without the delimiter", func() {
				lines := framer.Push([]byte("PING :tmi.example.org\r\n"))

				Expect(lines).To(HaveLen(1))
				Expect(lines[0]).To(Equal([]byte("PING :tmi.example.org")))
				Expect(framer.Pending()).To(Equal(0))
			})
		})

		When("Given bare LF-terminated lines", func() {
			It("accepts LF as a delimiter too", func() {
				lines := framer.Push([]byte("NICK alice\nUSER alice 0 * :alice\n"))

				Expect(lines).To(HaveLen(2))
				Expect(lines[0]).To(Equal([]byte("NICK alice")))
				Expect(lines[1]).To(Equal([]byte("USER alice 0 * :alice")))
			})
		})

		When("Given an empty line", func() {
			It("emits an empty line rather than dropping it", func() {
				lines := framer.Push([]byte("\r\n"))

				Expect(lines).To(HaveLen(1))
				Expect(lines[0]).To(BeEmpty())
			})
		})
	})

	Context("Partial lines", func() {
		When("No delimiter is present", func() {
			It("emits nothing and retains every byte", func() {
				lines := framer.Push([]byte("PRIVMSG #go :no newline yet"))

				Expect(lines).To(BeEmpty())
				Expect(framer.Pending()).To(Equal(len("PRIVMSG #go :no newline yet")))
			})
		})

		When("A line is split across two pushes", func() {
			It("carries the prefix over and joins it with the suffix", func() {
				first := framer.Push([]byte("LINE1\r\nPART"))
				second := framer.Push([]byte("IAL\r\n"))

				Expect(first).To(HaveLen(1))
				Expect(first[0]).To(Equal([]byte("LINE1")))
				Expect(second).To(HaveLen(1))
				Expect(second[0]).To(Equal([]byte("PARTIAL")))
			})
		})

		When("The CRLF pair itself is split across pushes", func() {
			It("still emits exactly one line", func() {
				first := framer.Push([]byte("LINE1\r"))
				second := framer.Push([]byte("\nLINE2\r\n"))

				Expect(first).To(BeEmpty())
				Expect(second).To(HaveLen(2))
				Expect(second[0]).To(Equal([]byte("LINE1")))
				Expect(second[1]).To(Equal([]byte("LINE2")))
			})
		})
	})

	Context("Chunking invariance", func() {
		stream := []byte(":irc.example.org 001 alice :Welcome\r\nPING :12345\r\nPRIVMSG #go :hello there\r\n:irc.example.org 372 alice :- motd line\r\n")

		wholeStream := func() [][]byte {
			reference := New()
			return reference.Push(stream)
		}

		It("yields identical lines for every chunk size", func() {
			expected := wholeStream()
			Expect(expected).To(HaveLen(4))

			for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
				chunked := New()
				var lines [][]byte
				for start := 0; start < len(stream); start += chunkSize {
					end := start + chunkSize
					if end > len(stream) {
						end = len(stream)
					}
					lines = append(lines, chunked.Push(stream[start:end])...)
				}

				Expect(lines).To(HaveLen(len(expected)), fmt.Sprintf("line count diverged at chunk size %d", chunkSize))
				for i := range expected {
					Expect(bytes.Equal(lines[i], expected[i])).To(BeTrue(), fmt.Sprintf("line %d diverged at chunk size %d", i, chunkSize))
				}
			}
		})
	})

	Context("Reset", func() {
		It("drops buffered bytes", func() {
			framer.Push([]byte("unfinished"))
			framer.Reset()

			Expect(framer.Pending()).To(Equal(0))

			lines := framer.Push([]byte("fresh\r\n"))
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(Equal([]byte("fresh")))
		})
	})
})
