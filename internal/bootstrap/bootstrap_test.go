package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academia/gradebot/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Storage.Driver = "memory"
	cfg.Storage.Seed = true
	cfg.JWT.Secret = "bootstrap-secret"
	cfg.JWT.AccessTokenExpiration = "1h"
	cfg.JWT.Issuer = "gradebot"
	cfg.Grading.ApprovalCutoff = 7.0
	cfg.Grading.Partial1Weight = 0.4
	cfg.Grading.Partial2Weight = 0.4
	cfg.Grading.ProjectWeight = 0.2
	cfg.Assistant.Enabled = false
	return cfg
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := memoryConfig()
	policy, err := PolicyFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 7.0, policy.Cutoff)

	cfg.Grading.ProjectWeight = 0.5
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Grading.ApprovalCutoff = 12
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)
}

func TestSetupStorageUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Driver = "sqlite"
	_, _, err := SetupStorage(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestMigrationSourceFallsBackToEmbedded(t *testing.T) {
	src := migrationSource("does-not-exist", zerolog.Nop())
	entries, err := fs.ReadDir(src, ".")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestMemoryStackServesSeededData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := memoryConfig()
	deps, err := BuildDependencies(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer deps.Close()

	assert.Nil(t, deps.AssistantController)
	assert.Nil(t, deps.WSHandler)
	go deps.Hub.Run(ctx)

	router, err := SetupRouter(cfg, deps, zerolog.Nop())
	require.NoError(t, err)

	post := func(path, token string, body interface{}) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/auth/login", "", map[string]string{
		"enrollment": "P1001", "password": "helen-admin", "role": "instructor", "securityCode": "7305",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	w = post("/api/v1/students/A2024001/courses/Calculus%20I/partials", login.Data.AccessToken, map[string]interface{}{"partial": "partial1", "score": 8.5})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := deps.Repos.Grades.GetRecord(ctx, "A2024001", "Calculus I")
	require.NoError(t, err)
	require.NotNil(t, rec.Partial1)
	assert.Equal(t, 8.5, *rec.Partial1)

	// assistant routes are not mounted
	w = post("/api/v1/assistant/messages", login.Data.AccessToken, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

}
