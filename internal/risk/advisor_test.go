package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebdris/venue-booking/pkg/config"
)

func advisorConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:         "sk-test",
		APIURL:         url,
		Model:          "gpt-4o-mini",
		TimeoutSeconds: 2,
		MaxTokens:      500,
	}
}

func chatReply(t *testing.T, content map[string]interface{}) []byte {
	t.Helper()
	inner, err := json.Marshal(content)
	require.NoError(t, err)

	reply, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": string(inner)}},
		},
	})
	require.NoError(t, err)
	return reply
}

func TestLLMAdvisorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Write(chatReply(t, map[string]interface{}{
			"risk_score": 65,
			"reasons":    []string{"velocity pattern", "throwaway email"},
			"confidence": "high",
			"analysis":   "Likely automated submission.",
		}))
	}))
	defer server.Close()

	advisor := NewLLMAdvisor(advisorConfig(server.URL))
	advice := advisor.Advise(context.Background(), testSubmission(), nil)

	assert.True(t, advice.UsedLLM)
	assert.Equal(t, 65, advice.RiskScore)
	assert.Equal(t, "high", advice.Confidence)
	assert.Equal(t, []string{"velocity pattern", "throwaway email"}, advice.Reasons)
}

func TestLLMAdvisorClampsAndTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, map[string]interface{}{
			"risk_score": 250,
			"reasons":    []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"},
			"confidence": "certain",
		}))
	}))
	defer server.Close()

	advisor := NewLLMAdvisor(advisorConfig(server.URL))
	advice := advisor.Advise(context.Background(), testSubmission(), nil)

	assert.True(t, advice.UsedLLM)
	assert.Equal(t, 100, advice.RiskScore)
	assert.Len(t, advice.Reasons, 5)
	assert.Equal(t, "medium", advice.Confidence, "unknown confidence normalizes to medium")
}

func TestLLMAdvisorNoAPIKeyUsesFallback(t *testing.T) {
	advisor := NewLLMAdvisor(config.LLMConfig{TimeoutSeconds: 1})

	features := map[string]interface{}{"disposable_email": true}
	advice := advisor.Advise(context.Background(), testSubmission(), features)

	assert.False(t, advice.UsedLLM)
	assert.Equal(t, FallbackAdvice(testSubmission(), features).RiskScore, advice.RiskScore)
}

func TestLLMAdvisorServerErrorUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	advisor := NewLLMAdvisor(advisorConfig(server.URL))
	features := map[string]interface{}{"test_phone": true, "tor_exit": true}

	advice := advisor.Advise(context.Background(), testSubmission(), features)

	assert.False(t, advice.UsedLLM)
	assert.Equal(t, 45, advice.RiskScore, "fallback must equal the rule table applied to the same features")
}

func TestLLMAdvisorMalformedContentUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "I think this looks risky."}},
			},
		})
		w.Write(reply)
	}))
	defer server.Close()

	advisor := NewLLMAdvisor(advisorConfig(server.URL))
	advice := advisor.Advise(context.Background(), testSubmission(), nil)

	assert.False(t, advice.UsedLLM)
}

func TestLLMAdvisorMissingRiskScoreUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(t, map[string]interface{}{
			"reasons": []string{"no score provided"},
		}))
	}))
	defer server.Close()

	advisor := NewLLMAdvisor(advisorConfig(server.URL))
	advice := advisor.Advise(context.Background(), testSubmission(), nil)

	assert.False(t, advice.UsedLLM)
}

func TestLLMAdvisorTimeoutUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write(chatReply(t, map[string]interface{}{"risk_score": 10}))
	}))
	defer server.Close()

	cfg := advisorConfig(server.URL)
	advisor := NewLLMAdvisor(cfg)
	advisor.client.Timeout = 50 * time.Millisecond

	advice := advisor.Advise(context.Background(), testSubmission(), nil)

	assert.False(t, advice.UsedLLM)
}
