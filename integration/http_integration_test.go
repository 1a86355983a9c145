package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// getBaseURL returns the base URL for API calls.
// Uses LIFEBOX_BASE_URL env var if set (for container tests),
// otherwise defaults to localhost:8080.
func getBaseURL() string {
	if url := os.Getenv("LIFEBOX_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// httpClient creates an HTTP client with sensible defaults.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// doRequest performs an HTTP request and returns the response.
func doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	url := getBaseURL() + path
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient().Do(req)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// cleanupTestData removes test data by making DELETE requests.
func cleanupTestData(ruleIDs []string) {
	for _, id := range ruleIDs {
		_, _ = doRequest("DELETE", "/v1/alarm-rules/"+id, nil)
	}
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var (
		ruleID         string
		eventID        string
		createdRuleIDs []string
	)

	BeforeAll(func() {
		// Check if the server is reachable
		resp, err := doRequest("GET", "/healthz", nil)
		if err != nil {
			Skip(fmt.Sprintf("Server not reachable at %s: %v", getBaseURL(), err))
		}
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	AfterAll(func() {
		cleanupTestData(createdRuleIDs)
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			resp, err := doRequest("GET", "/healthz", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Alarm Rules API", func() {
		It("should create an alarm rule", func() {
			payload := map[string]interface{}{
				"name":        "HTTP Test High Temperature",
				"device_id":   "http-test-device",
				"metric_name": "temperature",
				"operator":    "gt",
				"threshold":   85,
				"severity":    "critical",
				"reactions": []map[string]interface{}{
					{"type": "dashboard", "enabled": true},
				},
			}

			resp, err := doRequest("POST", "/v1/alarm-rules", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].(map[string]interface{})
			Expect(ok).To(BeTrue())
			ruleID = data["id"].(string)
			createdRuleIDs = append(createdRuleIDs, ruleID)

			Expect(data["name"]).To(Equal("HTTP Test High Temperature"))
			Expect(data["enabled"]).To(Equal(true))
		})

		It("should get the created alarm rule", func() {
			resp, err := doRequest("GET", "/v1/alarm-rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["metric_name"]).To(Equal("temperature"))
		})

		It("should list alarm rules filtered by device", func() {
			resp, err := doRequest("GET", "/v1/alarm-rules?device_id=http-test-device", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(len(data)).To(BeNumerically(">=", 1))
		})

		It("should reject an invalid rule", func() {
			payload := map[string]interface{}{
				"name":        "Broken Rule",
				"metric_name": "temperature",
				"operator":    "between",
				"threshold":   85,
				"severity":    "critical",
			}

			resp, err := doRequest("POST", "/v1/alarm-rules", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Telemetry Processing and Event Creation", func() {
		It("should trigger an alarm when telemetry breaches the threshold", func() {
			payload := map[string]interface{}{
				"device_id": "http-test-device",
				"data": map[string]interface{}{
					"temperature": 92.5,
				},
			}

			resp, err := doRequest("POST", "/v1/alarms/process-telemetry", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			triggered, ok := data["triggered"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(triggered).To(HaveLen(1))

			first := triggered[0].(map[string]interface{})
			Expect(first["rule_id"]).To(Equal(ruleID))
			eventID = first["event_id"].(string)
			Expect(eventID).NotTo(BeEmpty())
		})

		It("should suppress a duplicate breach while the event is open", func() {
			payload := map[string]interface{}{
				"device_id": "http-test-device",
				"data": map[string]interface{}{
					"temperature": 95.0,
				},
			}

			resp, err := doRequest("POST", "/v1/alarms/process-telemetry", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			triggered, ok := data["triggered"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(triggered).To(BeEmpty())
		})

		It("should accept telemetry for asynchronous evaluation", func() {
			payload := map[string]interface{}{
				"device_id": "http-test-device",
				"data": map[string]interface{}{
					"temperature": 40.0,
				},
			}

			resp, err := doRequest("POST", "/v1/alarms/ingest-telemetry", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["status"]).To(Equal("queued"))
			Expect(data["device_id"]).To(Equal("http-test-device"))
		})

		It("should list the recorded alarm event", func() {
			resp, err := doRequest("GET", "/v1/alarm-events?rule_id="+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(len(data)).To(BeNumerically(">=", 1))
		})
	})

	Describe("Alarm Event Lifecycle", func() {
		It("should acknowledge the event", func() {
			payload := map[string]interface{}{
				"acknowledged_by": "integration-test",
			}

			resp, err := doRequest("POST", "/v1/alarm-events/"+eventID+"/acknowledge", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["acknowledged_by"]).To(Equal("integration-test"))
		})

		It("should resolve the event", func() {
			resp, err := doRequest("POST", "/v1/alarm-events/"+eventID+"/resolve", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject resolving the event a second time", func() {
			resp, err := doRequest("POST", "/v1/alarm-events/"+eventID+"/resolve", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("should trigger again after the event is resolved", func() {
			payload := map[string]interface{}{
				"device_id": "http-test-device",
				"data": map[string]interface{}{
					"temperature": 97.0,
				},
			}

			resp, err := doRequest("POST", "/v1/alarms/process-telemetry", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			triggered, ok := data["triggered"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(triggered).To(HaveLen(1))
		})
	})

	Describe("Test Fire", func() {
		It("should fire a rule with a synthetic value", func() {
			// Resolve the open event first so the test fire is not suppressed.
			resp, err := doRequest("GET", "/v1/alarm-events?rule_id="+ruleID+"&open=true", nil)
			Expect(err).NotTo(HaveOccurred())

			var listing map[string]interface{}
			Expect(parseResponse(resp, &listing)).To(Succeed())
			for _, item := range listing["data"].([]interface{}) {
				id := item.(map[string]interface{})["id"].(string)
				r, err := doRequest("POST", "/v1/alarm-events/"+id+"/resolve", nil)
				Expect(err).NotTo(HaveOccurred())
				r.Body.Close()
			}

			resp, err = doRequest("POST", "/v1/alarm-rules/"+ruleID+"/trigger-test", map[string]interface{}{
				"test_value": 99.0,
			})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["triggered"]).To(Equal(true))
		})

		It("should report not triggered for a value below the threshold", func() {
			resp, err := doRequest("POST", "/v1/alarm-rules/"+ruleID+"/trigger-test", map[string]interface{}{
				"test_value": 10.0,
			})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["triggered"]).To(Equal(false))
		})
	})

	Describe("Rule Deletion", func() {
		It("should delete the rule", func() {
			resp, err := doRequest("DELETE", "/v1/alarm-rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("should return 404 for the deleted rule", func() {
			resp, err := doRequest("GET", "/v1/alarm-rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
