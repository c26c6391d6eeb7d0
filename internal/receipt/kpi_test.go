package receipt

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseCents", func() {
	DescribeTable("printed amounts",
		func(input string, expected int64) {
			cents, err := parseCents(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(cents).To(Equal(expected))
		},
		Entry("plain", "42.50", int64(4250)),
		Entry("currency symbol", "$104.40", int64(10440)),
		Entry("thousands separator", "$1,203.39", int64(120339)),
		Entry("decimal comma", "12,50 €", int64(1250)),
		Entry("european thousands", "1.234,56", int64(123456)),
		Entry("whole number with comma grouping", "1,000", int64(100000)),
		Entry("integer", "7", int64(700)),
		Entry("negative", "-3.10", int64(-310)),
	)

	DescribeTable("unreadable amounts",
		func(input string) {
			_, err := parseCents(input)
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("letters only", "N/A"),
		Entry("only a sign", "-"),
	)
})

var _ = Describe("KPIs", func() {
	var (
		db      *mockDB
		service *Service
		from    time.Time
		to      time.Time
		kpi     *KPI
		err     error
	)

	BeforeEach(func() {
		db = newMockDB()
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), &mockIDGenerator{id: "x"}, &mockTimeSource{})
		from, to = time.Time{}, time.Time{}

		db.receipts["jan"] = &Receipt{ID: "jan", TransactionDate: "2024-01-15", Amount: "42.50", VAT: "3.50"}
		db.receipts["feb"] = &Receipt{ID: "feb", TransactionDate: "2/10/2024", Amount: "$10.00", VAT: ""}
		db.receipts["mar"] = &Receipt{ID: "mar", TransactionDate: "15.03.2024", Amount: "1,000.00", VAT: "200,00"}
		db.receipts["nodate"] = &Receipt{ID: "nodate", TransactionDate: "", Amount: "5.00", VAT: "1.00"}
	})

	JustBeforeEach(func() {
		kpi, err = service.KPIs(context.Background(), from, to)
	})

	When("no range is given", func() {
		It("totals every readable receipt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(kpi.Receipts).To(Equal(4))
			Expect(kpi.AmountCents).To(Equal(int64(4250 + 1000 + 100000 + 500)))
			Expect(kpi.VATCents).To(Equal(int64(350 + 20000 + 100)))
			Expect(kpi.Skipped).To(BeZero())
		})
	})

	When("a range is given", func() {
		BeforeEach(func() {
			from = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			to = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		})

		It("includes receipts within the inclusive bounds", func() {
			Expect(kpi.Receipts).To(Equal(2))
			Expect(kpi.AmountCents).To(Equal(int64(1000 + 100000)))
		})

		It("skips receipts without a readable date", func() {
			Expect(kpi.Skipped).To(Equal(1))
		})

		It("echoes the bounds", func() {
			Expect(kpi.From).To(Equal("2024-02-01"))
			Expect(kpi.To).To(Equal("2024-03-15"))
		})
	})

	When("an amount cannot be read", func() {
		BeforeEach(func() {
			db.receipts["bad"] = &Receipt{ID: "bad", TransactionDate: "2024-01-01", Amount: "illegible"}
		})

		It("counts it as skipped", func() {
			Expect(kpi.Receipts).To(Equal(4))
			Expect(kpi.Skipped).To(Equal(1))
		})
	})

	When("the database fails", func() {
		BeforeEach(func() {
			db.listErr = errors.New("boom")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError("listing receipts: boom"))
		})
	})
})
