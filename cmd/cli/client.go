// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("DOCVERIFY_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(60 * time.Second)
	if token := os.Getenv("DOCVERIFY_TOKEN"); token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func verifyHash(hash string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/v1/verify/" + hash)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/v1/verify/%s: %s", hash, resp.String())
	}
	return out, nil
}

func verifyCertificate(certID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/v1/certificates/" + certID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/v1/certificates/%s: %s", certID, resp.String())
	}
	return out, nil
}

func certificateHistory(certID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/v1/certificates/" + certID + "/history")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET history: %s", resp.String())
	}
	return out, nil
}

func submitDocument(path, orgID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetFile("file", path).
		SetFormData(map[string]string{"organizationId": orgID}).
		SetResult(&out).
		Post("/api/v1/org/documents/verify")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("POST /api/v1/org/documents/verify: %s", resp.String())
	}
	return out, nil
}

func login(orgID, apiKey string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := newClient().R().
		SetBody(map[string]string{"orgId": orgID, "apiKey": apiKey}).
		SetResult(&out).
		Post("/api/v1/auth/login")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("POST /api/v1/auth/login: %s", resp.String())
	}
	return out.Token, nil
}

func syncStatus() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/v1/sync/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/v1/sync/status: %s", resp.String())
	}
	return out, nil
}

func downloadEvidence(certID, outPath string) error {
	resp, err := newClient().R().
		SetOutput(outPath).
		Get("/api/v1/certificates/" + certID + "/evidence")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET /api/v1/certificates/%s/evidence: status %d", certID, resp.StatusCode())
	}
	return nil
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
