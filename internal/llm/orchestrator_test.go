package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/internal/common"
)

const validJSON = `{"actividad":"MR101-Limpieza de Calzada","progresivas":"0+100","ubicacion":"Sector 1","etapa":"durante","descripcion":"Limpieza manual"}`

type scripted struct {
	mu      sync.Mutex
	replies []func(ctx context.Context) ([]byte, error)
	models  []string
	prompts []string
}

func (s *scripted) Complete(ctx context.Context, req CompletionRequest) ([]byte, error) {
	s.mu.Lock()
	i := len(s.models)
	s.models = append(s.models, req.Model)
	s.prompts = append(s.prompts, req.User)
	s.mu.Unlock()
	if i >= len(s.replies) {
		return nil, errors.New("unexpected call")
	}
	return s.replies[i](ctx)
}

func reply(b string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return []byte(b), nil }
}

func hang(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testLLMConfig() common.LLMConfig {
	cfg := common.DefaultConfig().LLM
	cfg.Retries = 2
	cfg.RetryBackoff = 0
	cfg.CallTimeout = 50 * time.Millisecond
	cfg.FallbackModel = ""
	return cfg
}

func TestAnalyzeFirstAttempt(t *testing.T) {
	m := &scripted{replies: []func(context.Context) ([]byte, error){reply(validJSON)}}
	rec, raw, err := NewOrchestrator(m, testLLMConfig(), nil).Analyze(context.Background(), AnalyzeRequest{PageIndex: 1, Text: "texto"})
	require.NoError(t, err)
	assert.Equal(t, "MR101-Limpieza de Calzada", rec.Actividad)
	assert.JSONEq(t, validJSON, string(raw))
	assert.Len(t, m.models, 1)
}

func TestAnalyzeRetriesSamePrompt(t *testing.T) {
	m := &scripted{replies: []func(context.Context) ([]byte, error){
		reply("no es json"),
		hang,
		reply(validJSON),
	}}
	rec, _, err := NewOrchestrator(m, testLLMConfig(), nil).Analyze(context.Background(), AnalyzeRequest{PageIndex: 2, Text: "texto"})
	require.NoError(t, err)
	assert.Equal(t, "Sector 1", rec.Ubicacion)
	require.Len(t, m.prompts, 3)
	assert.Equal(t, m.prompts[0], m.prompts[1])
	assert.Equal(t, m.prompts[0], m.prompts[2])
}

func TestAnalyzeExhausted(t *testing.T) {
	m := &scripted{replies: []func(context.Context) ([]byte, error){
		reply(`{"actividad":"A"}`),
		reply(`{"actividad":"B"}`),
		reply(`{"actividad":"C","extra":1}`),
	}}
	_, _, err := NewOrchestrator(m, testLLMConfig(), nil).Analyze(context.Background(), AnalyzeRequest{PageIndex: 7, Text: "texto"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAnalysis))

	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 7, ae.PageIndex)
	assert.Equal(t, 3, ae.Attempts)
	assert.Equal(t, `{"actividad":"C","extra":1}`, string(ae.RawResponse))
}

func TestAnalyzeTimeoutsExhaust(t *testing.T) {
	m := &scripted{replies: []func(context.Context) ([]byte, error){hang, hang, hang}}
	_, _, err := NewOrchestrator(m, testLLMConfig(), nil).Analyze(context.Background(), AnalyzeRequest{PageIndex: 3})
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 3, ae.Attempts)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAnalyzeFallbackModel(t *testing.T) {
	cfg := testLLMConfig()
	cfg.Retries = 0
	cfg.FallbackModel = "gpt-4o"
	m := &scripted{replies: []func(context.Context) ([]byte, error){reply("{}"), reply(validJSON)}}
	_, _, err := NewOrchestrator(m, cfg, nil).Analyze(context.Background(), AnalyzeRequest{PageIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.Model, "gpt-4o"}, m.models)
}

func TestAnalyzeStopsOnCancel(t *testing.T) {
	cfg := testLLMConfig()
	cfg.CallTimeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	m := &scripted{replies: []func(context.Context) ([]byte, error){
		func(ctx context.Context) ([]byte, error) {
			cancel()
			return hang(ctx)
		},
	}}

	start := time.Now()
	_, _, err := NewOrchestrator(m, cfg, nil).Analyze(ctx, AnalyzeRequest{PageIndex: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, m.models, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}
