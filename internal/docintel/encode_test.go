package docintel

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EncodeDocument", func() {
	DescribeTable("round trips through DecodeDocument",
		func(document []byte) {
			decoded, err := DecodeDocument(EncodeDocument(document))
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(document))
		},
		Entry("empty payload", []byte{}),
		Entry("ascii text", []byte("hello receipt")),
		Entry("binary with padding", []byte{0x00, 0xff, 0x10}),
		Entry("pdf header", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")),
		Entry("every byte value", func() []byte {
			b := make([]byte, 256)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}()),
	)

	It("produces standard base64 text", func() {
		Expect(EncodeDocument([]byte("hello"))).To(Equal("aGVsbG8="))
	})

	When("decoding invalid text", func() {
		It("returns an error", func() {
			_, err := DecodeDocument("not base64!")
			Expect(err).To(HaveOccurred())
		})
	})
})
