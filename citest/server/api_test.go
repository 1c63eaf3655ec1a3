package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/signature"
)

func doJSON(method, path string, body any) (*http.Response, map[string]any) {
	GinkgoHelper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, testServer.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	resp.Body.Close()

	var decoded map[string]any
	if len(data) > 0 {
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
	}
	return resp, decoded
}

var _ = Describe("Toolgate API", func() {
	AfterEach(func() {
		// Reset the persistent tier between specs
		if store.Len() > 0 {
			Expect(store.Clear()).To(Succeed())
		}
	})

	Describe("GET /health", func() {
		It("reports status and rule count", func() {
			resp, body := doJSON(http.MethodGet, "/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("Pattern endpoints", func() {
		It("adds, lists and removes a rule", func() {
			resp, created := doJSON(http.MethodPost, "/patterns", map[string]any{
				"pattern":     "git * in /repo",
				"toolName":    "bash",
				"description": "git anywhere in the repo",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			id, _ := created["id"].(string)
			Expect(id).NotTo(BeEmpty())

			resp, listed := doJSON(http.MethodGet, "/patterns", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			patterns, _ := listed["patterns"].([]any)
			Expect(patterns).To(HaveLen(1))

			resp, _ = doJSON(http.MethodDelete, "/patterns/"+id, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(store.Len()).To(BeZero())
		})

		It("rejects invalid rules", func() {
			resp, body := doJSON(http.MethodPost, "/patterns", map[string]any{
				"type":     "regex",
				"pattern":  "[unclosed",
				"toolName": "bash",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			errDetail, _ := body["error"].(map[string]any)
			Expect(errDetail["code"]).To(Equal("INVALID_REQUEST"))
		})

		It("returns 404 for unknown rule IDs", func() {
			resp, _ := doJSON(http.MethodDelete, "/patterns/no-such-id", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("requires confirmation to clear the store", func() {
			_, created := doJSON(http.MethodPost, "/patterns", map[string]any{
				"pattern":  "ls * in /tmp",
				"toolName": "bash",
			})
			Expect(created["id"]).NotTo(BeEmpty())

			resp, _ := doJSON(http.MethodDelete, "/patterns", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(store.Len()).To(Equal(1))

			resp, cleared := doJSON(http.MethodDelete, "/patterns?confirm=true", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(cleared["removed"]).To(BeEquivalentTo(1))
		})
	})

	Describe("Approval endpoints", func() {
		It("answers a blocked tool call", func() {
			sig := signature.Signature{
				ToolName:   "bash",
				ContextKey: "go test ./... in /repo",
				Command:    "go",
				Args:       "test ./...",
				Directory:  "/repo",
			}

			done := make(chan error, 1)
			go func() {
				_, err := coordinator.Authorize(context.Background(), sig)
				done <- err
			}()

			var id string
			Eventually(func() int {
				pending := coordinator.Pending()
				if len(pending) > 0 {
					id = pending[0].ID
				}
				return len(pending)
			}, time.Second, 5*time.Millisecond).Should(Equal(1))

			resp, listed := doJSON(http.MethodGet, "/approvals", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			approvals, _ := listed["approvals"].([]any)
			Expect(approvals).To(HaveLen(1))

			resp, _ = doJSON(http.MethodPost, "/approvals/"+id, map[string]any{
				"choice": string(approval.ChoiceOnce),
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Eventually(done).Should(Receive(BeNil()))
		})

		It("rejects answers to unknown requests", func() {
			resp, _ := doJSON(http.MethodPost, "/approvals/no-such-id", map[string]any{
				"choice": "once",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /event", func() {
		It("streams a connected event", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/event", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			reader := bufio.NewReader(resp.Body)
			var data string
			for {
				line, err := reader.ReadString('\n')
				Expect(err).NotTo(HaveOccurred())
				if strings.HasPrefix(line, "data: ") {
					data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
					break
				}
			}
			Expect(data).To(ContainSubstring("server.connected"))
		})
	})

	Describe("POST /run", func() {
		It("validates the prompt", func() {
			resp, body := doJSON(http.MethodPost, "/run", map[string]any{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			errDetail, _ := body["error"].(map[string]any)
			Expect(fmt.Sprint(errDetail["message"])).To(ContainSubstring("prompt"))
		})
	})
})
