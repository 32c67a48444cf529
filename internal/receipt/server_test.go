package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/splitit/internal/scanning"
)

type parseResponse struct {
	OK    bool    `json:"ok"`
	Data  Receipt `json:"data"`
	Error string  `json:"error"`
}

func imageJSON(data string, mediaType string) string {
	return fmt.Sprintf(`{"image_b64":%q,"media_type":%q}`, base64.StdEncoding.EncodeToString([]byte(data)), mediaType)
}

var _ = Describe("Server", func() {
	var (
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server

		method string
		path   string
		body   string
		header http.Header

		resp     *http.Response
		respBody []byte
	)

	BeforeEach(func() {
		scanner = newMockScanner()
		service = NewServiceWithDeps(scanner, "test-model", &mockIDGenerator{id: "req"}, &mockTimeSource{})
		auth = BasicAuth{}
		header = http.Header{}
		body = ""
	})

	// Every It performs exactly one request against a fresh server
	JustBeforeEach(func() {
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)

		req, err := http.NewRequest(method, ghttpServer.URL()+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err = http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		respBody, err = io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	decode := func() parseResponse {
		var out parseResponse
		Expect(json.Unmarshal(respBody, &out)).To(Succeed())
		return out
	}

	Describe("GET /", func() {
		BeforeEach(func() {
			method, path = http.MethodGet, "/"
		})

		It("should serve the HTML interface", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(string(respBody)).To(ContainSubstring("splitit"))
		})

		It("should set CORS headers", func() {
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		When("basic auth is configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "secret"}
			})

			It("should reject requests without credentials", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})

			When("credentials are valid", func() {
				BeforeEach(func() {
					header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))
				})

				It("should serve the page", func() {
					Expect(resp.StatusCode).To(Equal(http.StatusOK))
				})
			})
		})
	})

	Describe("GET /health", func() {
		BeforeEach(func() {
			method, path = http.MethodGet, "/health"
		})

		It("should report the extraction status", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var health Health
			Expect(json.Unmarshal(respBody, &health)).To(Succeed())
			Expect(health).To(Equal(Health{OK: true, HasSDK: true, HasKey: true, Model: "test-model"}))
		})

		When("no scanner is configured", func() {
			BeforeEach(func() {
				service = NewServiceWithDeps(nil, "gemini-3-flash-preview", &mockIDGenerator{}, &mockTimeSource{})
			})

			It("should report the missing key", func() {
				var health Health
				Expect(json.Unmarshal(respBody, &health)).To(Succeed())
				Expect(health.HasKey).To(BeFalse())
				Expect(health.Model).To(Equal("gemini-3-flash-preview"))
			})
		})
	})

	Describe("OPTIONS preflight", func() {
		BeforeEach(func() {
			method, path = http.MethodOptions, "/parse"
		})

		It("should answer with no content", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})
	})

	Describe("unknown routes", func() {
		BeforeEach(func() {
			method, path = http.MethodGet, "/missing"
		})

		It("should return a JSON not found error", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode().Error).To(Equal("not found"))
		})

		When("the method does not match a known path", func() {
			BeforeEach(func() {
				method, path = http.MethodGet, "/parse"
			})

			It("should return not found", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("POST /parse", func() {
		BeforeEach(func() {
			method, path = http.MethodPost, "/parse"
			body = imageJSON("fake image data", "image/png")
		})

		When("extraction succeeds", func() {
			It("should return the receipt", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				out := decode()
				Expect(out.OK).To(BeTrue())
				Expect(out.Data.Store).To(Equal("Test Store"))
				Expect(out.Data.Items).To(Equal([]LineItem{{Name: "Milk", Price: 3.99}}))
			})

			It("should set Content-Type to application/json", func() {
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
			})

			It("should pass the decoded image to the scanner", func() {
				Expect(scanner.calls).To(HaveLen(1))
				Expect(string(scanner.calls[0].data)).To(Equal("fake image data"))
				Expect(scanner.calls[0].contentType).To(Equal("image/png"))
			})
		})

		When("the media type is omitted", func() {
			BeforeEach(func() {
				body = fmt.Sprintf(`{"image_b64":%q}`, base64.StdEncoding.EncodeToString([]byte("fake")))
			})

			It("should default to a generic image type", func() {
				Expect(scanner.calls[0].contentType).To(Equal(scanning.DefaultMediaType))
			})
		})

		When("the image is a data URL", func() {
			BeforeEach(func() {
				body = fmt.Sprintf(`{"image_b64":"data:image/webp;base64,%s"}`, base64.StdEncoding.EncodeToString([]byte("webp")))
			})

			It("should use the media type from the URL", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(string(scanner.calls[0].data)).To(Equal("webp"))
				Expect(scanner.calls[0].contentType).To(Equal("image/webp"))
			})
		})

		When("the body is empty", func() {
			BeforeEach(func() {
				body = ""
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Empty request body"))
			})
		})

		When("the body is not JSON", func() {
			BeforeEach(func() {
				body = "not json"
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Invalid JSON body"))
			})
		})

		When("the image is missing", func() {
			BeforeEach(func() {
				body = `{"media_type":"image/png"}`
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Missing image_b64"))
			})

			It("should not call the scanner", func() {
				Expect(scanner.calls).To(BeEmpty())
			})
		})

		When("the image is not valid base64", func() {
			BeforeEach(func() {
				body = `{"image_b64":"not*base64"}`
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(ContainSubstring("Invalid base64"))
			})
		})

		When("the provider quota is exhausted", func() {
			BeforeEach(func() {
				scanner.errs[0] = &scanning.ProviderError{Provider: "gemini", Err: errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")}
			})

			It("should return renewal guidance", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal(quotaMessage))
			})
		})

		When("the provider fails otherwise", func() {
			BeforeEach(func() {
				scanner.errs[0] = &scanning.ProviderError{Provider: "gemini", Err: errors.New("empty response from model")}
			})

			It("should return the provider message", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("gemini: empty response from model"))
			})
		})

		When("extraction is not configured", func() {
			BeforeEach(func() {
				service = NewServiceWithDeps(nil, "test-model", &mockIDGenerator{}, &mockTimeSource{})
			})

			It("should report the missing key", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(ContainSubstring("GEMINI_API_KEY not set"))
			})
		})
	})

	Describe("POST /parse_multi", func() {
		BeforeEach(func() {
			method, path = http.MethodPost, "/parse_multi"
			body = fmt.Sprintf(`{"images":[%s,%s]}`, imageJSON("page 1", "image/jpeg"), imageJSON("page 2", "image/jpeg"))
			scanner.answers = []any{
				map[string]any{"store": "Target", "items": []any{map[string]any{"name": "Socks", "price": 5}}},
				map[string]any{"items": []any{map[string]any{"name": "Shirt", "price": 12}}, "tax": 1.36, "total": 18.36},
			}
		})

		When("every image is extracted", func() {
			It("should return the merged receipt", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				out := decode()
				Expect(out.OK).To(BeTrue())
				Expect(out.Data).To(Equal(Receipt{
					Store: "Target",
					Items: []LineItem{{Name: "Socks", Price: 5}, {Name: "Shirt", Price: 12}},
					Tax:   1.36,
					Total: 18.36,
				}))
			})
		})

		When("some entries carry no image", func() {
			BeforeEach(func() {
				body = fmt.Sprintf(`{"images":["junk",{"media_type":"image/png"},%s]}`, imageJSON("page 1", "image/jpeg"))
			})

			It("should skip them", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(scanner.calls).To(HaveLen(1))
			})
		})

		When("no entry carries an image", func() {
			BeforeEach(func() {
				body = `{"images":[{"media_type":"image/png"}]}`
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("No valid images in images[]"))
			})
		})

		When("the image list is empty", func() {
			BeforeEach(func() {
				body = `{"images":[]}`
			})

			It("should return a bad request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Missing images[]"))
			})
		})

		When("images is a string", func() {
			BeforeEach(func() {
				body = `{"images":"abc"}`
			})

			It("should report the missing list", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Missing images[]"))
				Expect(scanner.calls).To(BeEmpty())
			})
		})

		When("images is an object", func() {
			BeforeEach(func() {
				body = fmt.Sprintf(`{"images":%s}`, imageJSON("page 1", "image/jpeg"))
			})

			It("should report the missing list", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Missing images[]"))
				Expect(scanner.calls).To(BeEmpty())
			})
		})

		When("images is absent", func() {
			BeforeEach(func() {
				body = `{}`
			})

			It("should report the missing list", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode().Error).To(Equal("Missing images[]"))
			})
		})

		When("one image fails", func() {
			BeforeEach(func() {
				scanner.errs[1] = &scanning.ProviderError{Provider: "gemini", Err: errors.New("deadline exceeded")}
			})

			It("should fail the whole request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				out := decode()
				Expect(out.OK).To(BeFalse())
				Expect(out.Error).To(ContainSubstring("deadline exceeded"))
			})
		})
	})
})

var _ = Describe("Server request size limit", func() {
	var (
		scanner *mockScanner
		server  *Server
		rec     *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		scanner = newMockScanner()
		service := NewServiceWithDeps(scanner, "test-model", &mockIDGenerator{}, &mockTimeSource{})
		server = NewServer(service, BasicAuth{})
		rec = httptest.NewRecorder()
	})

	oversized := func() string {
		return `{"image_b64":"` + strings.Repeat("A", MaxRequestBytes) + `"}`
	}

	It("rejects a declared length over the limit before extraction", func() {
		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(oversized()))
		server.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(rec.Body.String()).To(ContainSubstring("Request too large"))
		Expect(scanner.calls).To(BeEmpty())
	})

	It("rejects a body of unknown length once it passes the limit", func() {
		req := httptest.NewRequest(http.MethodPost, "/parse_multi", io.NopCloser(strings.NewReader(oversized())))
		req.ContentLength = -1
		server.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(scanner.calls).To(BeEmpty())
	})
})

var _ = Describe("decodeImage", func() {
	It("rejects data URLs that are not base64", func() {
		_, err := decodeImage(imagePayload{ImageB64: "data:image/png,rawbytes"})
		Expect(err).To(MatchError("Invalid image_b64 data URL"))
	})

	It("prefers an explicit media type over the data URL", func() {
		img, err := decodeImage(imagePayload{
			ImageB64:  "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("x")),
			MediaType: "image/jpeg",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(img.MediaType).To(Equal("image/jpeg"))
		Expect(bytes.Equal(img.Data, []byte("x"))).To(BeTrue())
	})
})

var _ = Describe("Server lifecycle", func() {
	It("treats Shutdown before Start as a no-op", func() {
		service := NewServiceWithDeps(newMockScanner(), "test-model", &mockIDGenerator{}, &mockTimeSource{})
		server := NewServer(service, BasicAuth{})
		Expect(server.Shutdown(context.Background())).To(Succeed())
	})
})
