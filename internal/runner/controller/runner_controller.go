// Package controller exposes the HTTP surface of the runner service.
package controller

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"exrun/internal/runner/backend"
	"exrun/internal/runner/model"
	"exrun/internal/runner/registry"
	"exrun/internal/runner/service"
	appErr "exrun/pkg/errors"
	"exrun/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	codeFileField   = "code_file"
	testConfigField = "test_config"
	runnerSuffix    = "-test-runner"

	// maxUploadBytes bounds each uploaded part.
	maxUploadBytes = 1 << 20
)

// RunnerController handles test-run requests.
type RunnerController struct {
	svc *service.Service
	reg *registry.Registry
}

// NewRunnerController creates a new controller.
func NewRunnerController(svc *service.Service, reg *registry.Registry) *RunnerController {
	return &RunnerController{svc: svc, reg: reg}
}

// Index returns the API descriptor document.
func (h *RunnerController) Index(c *gin.Context) {
	response.Success(c, gin.H{
		"name":        "Test Runner API",
		"description": "API service for orchestrating language test runners in Kubernetes",
		"version":     "1.0.0",
		"endpoints": gin.H{
			"/health": gin.H{
				"method":      "GET",
				"description": "Health check endpoint",
			},
			"/api/{language}-test-runner/start": gin.H{
				"method":              "POST",
				"description":         "Run tests for a specific language",
				"required_files":      []string{codeFileField, testConfigField},
				"supported_languages": h.reg.Languages(),
			},
		},
	})
}

// Health reports backend reachability and the supported language list.
func (h *RunnerController) Health(c *gin.Context) {
	status := h.svc.BackendStatus(c.Request.Context())
	body := gin.H{
		"backend":             string(status),
		"supported_languages": h.reg.Languages(),
	}
	if status == backend.StatusUnreachable {
		response.ErrorWithCode(c, appErr.BackendUnavailable, "execution backend unreachable")
		return
	}
	response.Success(c, body)
}

// StartRun accepts a multipart upload of candidate code plus a test-config
// document and runs the tests synchronously. Any completed run answers 200,
// including fail/error verdicts; only rejected requests answer 4xx.
func (h *RunnerController) StartRun(c *gin.Context) {
	language, ok := strings.CutSuffix(c.Param("runner"), runnerSuffix)
	if !ok || language == "" {
		response.NotFound(c, "")
		return
	}
	if _, err := h.reg.Lookup(language); err != nil {
		response.Error(c, err)
		return
	}

	code, err := readUpload(c, codeFileField)
	if err != nil {
		response.Error(c, err)
		return
	}
	rawConfig, err := readUpload(c, testConfigField)
	if err != nil {
		response.Error(c, err)
		return
	}

	var testConfig map[string]interface{}
	if err := json.Unmarshal(rawConfig, &testConfig); err != nil {
		response.ErrorWithCode(c, appErr.InvalidTestConfig, "Invalid JSON in test configuration")
		return
	}

	verdict, err := h.svc.RunOnce(c.Request.Context(), model.RunRequest{
		Language:   language,
		Code:       code,
		TestConfig: testConfig,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, verdict)
}

// readUpload materializes one multipart file field.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, appErr.Newf(appErr.MissingUpload, "Missing required file: %s", field)
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "open uploaded file %s failed", field)
	}
	defer func(f multipart.File) {
		_ = f.Close()
	}(file)

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "read uploaded file %s failed", field)
	}
	if len(data) > maxUploadBytes {
		return nil, appErr.Newf(appErr.InvalidParams, "uploaded file %s is too large", field)
	}
	return data, nil
}
