package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/vat-recogniser/internal/docintel"
)

func multipartBody(field string, files map[string][]byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		scanner   *mockScanner
		idGen     *mockIDGenerator
		basicAuth BasicAuth
		server    *Server
		req       *http.Request
		rec       *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		idGen = &mockIDGenerator{id: "test-id"}
		basicAuth = BasicAuth{}
		rec = httptest.NewRecorder()
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, scanner, storage, idGen, &mockTimeSource{})
		server = NewServer(service, basicAuth)
		server.ServeHTTP(rec, req)
	})

	Describe("GET /healthz", func() {
		BeforeEach(func() {
			req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
		})

		It("returns ok", func() {
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("ok"))
		})
	})

	Describe("POST /api/receipts", func() {
		When("uploading a multipart file", func() {
			BeforeEach(func() {
				body, contentType := multipartBody("file", map[string][]byte{"receipt.pdf": []byte("%PDF-1.4")})
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", body)
				req.Header.Set("Content-Type", contentType)
			})

			It("returns the created receipt", func() {
				Expect(rec.Code).To(Equal(http.StatusCreated))
				var receipt Receipt
				Expect(json.Unmarshal(rec.Body.Bytes(), &receipt)).To(Succeed())
				Expect(receipt.ID).To(Equal("test-id"))
				Expect(receipt.Amount).To(Equal("25.99"))
				Expect(receipt.VAT).To(Equal("2.08"))
			})

			It("detects the content type from the extension", func() {
				Expect(db.receipts["test-id"].ContentType).To(Equal("application/pdf"))
			})
		})

		When("uploading a raw body", func() {
			BeforeEach(func() {
				req = httptest.NewRequest(http.MethodPost, "/api/receipts?filename=till.png", bytes.NewReader([]byte("\x89PNG\r\n\x1a\n")))
			})

			It("processes the document", func() {
				Expect(rec.Code).To(Equal(http.StatusCreated))
				Expect(storage.files).To(HaveKey("test-id_till.png"))
				Expect(db.receipts["test-id"].ContentType).To(Equal("image/png"))
			})
		})

		When("the body is empty", func() {
			BeforeEach(func() {
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", nil)
			})

			It("returns bad request", func() {
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring("please provide a document"))
			})
		})

		When("the multipart form has no file", func() {
			BeforeEach(func() {
				body, contentType := multipartBody("other", map[string][]byte{"x.jpg": []byte("x")})
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", body)
				req.Header.Set("Content-Type", contentType)
			})

			It("returns bad request", func() {
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("polling is exhausted", func() {
			BeforeEach(func() {
				scanner.scanErr = &docintel.PollExhaustedError{JobID: "job", Attempts: 5, LastStatus: docintel.StatusRunning}
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewReader([]byte("data")))
			})

			It("returns gateway timeout", func() {
				Expect(rec.Code).To(Equal(http.StatusGatewayTimeout))
			})
		})

		When("submission is rejected", func() {
			BeforeEach(func() {
				scanner.scanErr = &docintel.SubmissionError{StatusCode: http.StatusUnauthorized, Body: "denied"}
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewReader([]byte("data")))
			})

			It("returns bad gateway", func() {
				Expect(rec.Code).To(Equal(http.StatusBadGateway))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("connection refused")
				req = httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewReader([]byte("data")))
			})

			It("returns internal server error", func() {
				Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("POST /api/receipts/batch", func() {
		BeforeEach(func() {
			idGen.sequential = true
			body, contentType := multipartBody("files", map[string][]byte{
				"a.jpg": []byte("a"),
				"b.jpg": []byte("b"),
			})
			req = httptest.NewRequest(http.MethodPost, "/api/receipts/batch", body)
			req.Header.Set("Content-Type", contentType)
		})

		It("returns a result per file", func() {
			Expect(rec.Code).To(Equal(http.StatusOK))
			var results []BatchResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &results)).To(Succeed())
			Expect(results).To(HaveLen(2))
			Expect(db.receipts).To(HaveLen(2))
		})
	})

	Describe("GET /api/receipts", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1"}
			req = httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
		})

		It("lists receipts", func() {
			Expect(rec.Code).To(Equal(http.StatusOK))
			var receipts []Receipt
			Expect(json.Unmarshal(rec.Body.Bytes(), &receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(1))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		When("the receipt exists", func() {
			BeforeEach(func() {
				db.receipts["r1"] = &Receipt{ID: "r1", TransactionDate: "2024-01-01"}
				req = httptest.NewRequest(http.MethodGet, "/api/receipts/r1", nil)
			})

			It("returns it", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring(`"transaction_date":"2024-01-01"`))
			})
		})

		When("the receipt does not exist", func() {
			BeforeEach(func() {
				req = httptest.NewRequest(http.MethodGet, "/api/receipts/missing", nil)
			})

			It("returns not found", func() {
				Expect(rec.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("GET /api/receipts/{id}/file", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Filename: "r1_a.png", ContentType: "image/png"}
			storage.files["r1_a.png"] = []byte("png")
			req = httptest.NewRequest(http.MethodGet, "/api/receipts/r1/file", nil)
		})

		It("serves the stored document", func() {
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(rec.Body.String()).To(Equal("png"))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Filename: "r1_a.png"}
			storage.files["r1_a.png"] = []byte("png")
			req = httptest.NewRequest(http.MethodDelete, "/api/receipts/r1", nil)
		})

		It("deletes the receipt", func() {
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})
	})

	Describe("GET /api/kpis", func() {
		When("dates are valid", func() {
			BeforeEach(func() {
				db.receipts["r1"] = &Receipt{ID: "r1", TransactionDate: "2024-01-15", Amount: "10.00", VAT: "2.00"}
				db.receipts["r2"] = &Receipt{ID: "r2", TransactionDate: "2023-12-31", Amount: "99.00", VAT: "9.00"}
				req = httptest.NewRequest(http.MethodGet, "/api/kpis?from=2024-01-01&to=2024-01-31", nil)
			})

			It("returns the totals", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
				var kpi KPI
				Expect(json.Unmarshal(rec.Body.Bytes(), &kpi)).To(Succeed())
				Expect(kpi.Receipts).To(Equal(1))
				Expect(kpi.AmountCents).To(Equal(int64(1000)))
				Expect(kpi.VATCents).To(Equal(int64(200)))
			})
		})

		When("a date is invalid", func() {
			BeforeEach(func() {
				req = httptest.NewRequest(http.MethodGet, "/api/kpis?from=yesterday", nil)
			})

			It("returns bad request", func() {
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			basicAuth = BasicAuth{Username: "user", Password: "pass"}
			req = httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
		})

		When("credentials are missing", func() {
			It("returns unauthorized", func() {
				Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			})
		})

		When("credentials are valid", func() {
			BeforeEach(func() {
				req.SetBasicAuth("user", "pass")
			})

			It("allows the request", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
			})
		})

		When("requesting the health check", func() {
			BeforeEach(func() {
				req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
			})

			It("does not require credentials", func() {
				Expect(rec.Code).To(Equal(http.StatusOK))
			})
		})
	})

	Describe("CORS preflight", func() {
		BeforeEach(func() {
			req = httptest.NewRequest(http.MethodOptions, "/api/receipts", nil)
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		})

		It("allows the origin", func() {
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
