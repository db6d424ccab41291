package scorelead

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/llm/llmtest"
	"lead-intake-workers/internal/common/logger"
)

const (
	hotLead = `[8:02 am] Ricardo: Buenos días, es urgente, necesitamos empezar de inmediato con la impermeabilización de la cubierta industrial de nuestra planta.
[8:03 am] Asistente: Claro, ¿de qué tamaño es la cubierta?
[8:05 am] Ricardo: Son 3,000 m2. Tenemos presupuesto flexible. Ya hablamos la semana pasada, ahora necesito la cotización formal con especificaciones técnicas del sistema.
[8:06 am] Asistente: Perfecto, se la preparo hoy.
[8:07 am] Ricardo: ¡Excelente! Queremos cerrar cuanto antes.`

	coldLead = `[4:40 pm] Usuario: Hola, ¿qué servicios ofrecen?
[4:41 pm] Asistente: Impermeabilización, mantenimiento e instalación.
[4:42 pm] Usuario: Ok.`
)

// rubric scores a transcript the way the prompt asks a model to, using
// keyword cues for each factor.
func rubric(messages []llm.Message) (string, error) {
	text := strings.ToLower(messages[len(messages)-1].Content)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	total := 0
	switch {
	case has("de inmediato", "urgente"):
		total += 20
	case has("1-2 meses", "próximo mes"):
		total += 15
	case has("próximos meses"):
		total += 10
	}
	switch {
	case has("industrial", "plataforma", "sótano"):
		total += 20
	case has("azotea", "techo verde"):
		total += 10
	case has("terraza", "balcón"):
		total += 5
	}
	switch {
	case has("industrial", "planta"):
		total += 10
	case has("local", "oficina", "comercial"):
		total += 7
	case has("casa", "residencial"):
		total += 5
	}
	switch {
	case has("presupuesto flexible", "presupuesto alto"):
		total += 15
	case has("presupuesto medio"):
		total += 10
	case has("presupuesto bajo"):
		total += 5
	}
	switch {
	case has("cotización") && has("especificaciones"):
		total += 20
	case has("semana pasada", "otra vez"):
		total += 15
	case has("me interesa", "interesad"):
		total += 10
	default:
		total += 5
	}
	switch {
	case has("¡excelente", "cuanto antes"):
		total += 15
	case has("gracias", "perfecto"):
		total += 10
	default:
		total += 5
	}

	return fmt.Sprintf("Análisis completo.\n```json\n{\n    \"score_total\": %d\n}\n```\n", total), nil
}

func TestScorer_Score(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		fake       *llmtest.Fake
		check      func(t *testing.T, got *int)
	}{
		{
			name:       "every factor at top weight",
			transcript: hotLead,
			fake:       &llmtest.Fake{Respond: rubric},
			check: func(t *testing.T, got *int) {
				require.NotNil(t, got)
				assert.InDelta(t, 100, *got, 5)
			},
		},
		{
			name:       "neutral question",
			transcript: coldLead,
			fake:       &llmtest.Fake{Respond: rubric},
			check: func(t *testing.T, got *int) {
				require.NotNil(t, got)
				assert.GreaterOrEqual(t, *got, 5)
				assert.LessOrEqual(t, *got, 15)
			},
		},
		{
			name:       "bare object",
			transcript: coldLead,
			fake:       &llmtest.Fake{Response: `{"score_total": 42}`},
			check: func(t *testing.T, got *int) {
				require.NotNil(t, got)
				assert.Equal(t, 42, *got)
			},
		},
		{
			name:       "out of range is not clamped",
			transcript: hotLead,
			fake:       &llmtest.Fake{Response: `{"score_total": 130}`},
			check: func(t *testing.T, got *int) {
				require.NotNil(t, got)
				assert.Equal(t, 130, *got)
			},
		},
		{
			name:       "garbage",
			transcript: coldLead,
			fake:       &llmtest.Fake{Response: "No puedo calificar esta conversación."},
			check:      func(t *testing.T, got *int) { assert.Nil(t, got) },
		},
		{
			name:       "missing key",
			transcript: coldLead,
			fake:       &llmtest.Fake{Response: `{"total": 50}`},
			check:      func(t *testing.T, got *int) { assert.Nil(t, got) },
		},
		{
			name:       "not an integer",
			transcript: coldLead,
			fake:       &llmtest.Fake{Response: `{"score_total": 72.5}`},
			check:      func(t *testing.T, got *int) { assert.Nil(t, got) },
		},
		{
			name:       "text value",
			transcript: coldLead,
			fake:       &llmtest.Fake{Response: `{"score_total": "alto"}`},
			check:      func(t *testing.T, got *int) { assert.Nil(t, got) },
		},
		{
			name:       "transport failure",
			transcript: coldLead,
			fake:       &llmtest.Fake{Err: fmt.Errorf("503 service unavailable")},
			check:      func(t *testing.T, got *int) { assert.Nil(t, got) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(tt.fake, nil, logger.NewTestLogger(t), time.Minute)
			tt.check(t, s.Score(context.Background(), tt.transcript))
		})
	}
}

func TestScorer_Exchange(t *testing.T) {
	fake := &llmtest.Fake{Response: `{"score_total": 10}`}
	s := NewScorer(fake, nil, logger.NewNoOpLogger(), time.Minute)
	s.Score(context.Background(), coldLead)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, llm.RoleSystem, calls[0][0].Role)
	assert.Contains(t, calls[0][0].Content, "Urgencia de la Solicitud")
	assert.Contains(t, calls[0][0].Content, `"score_total": 75`)
	assert.Equal(t, llm.RoleHuman, calls[0][1].Role)
	assert.Contains(t, calls[0][1].Content, "¿qué servicios ofrecen?")
}

func TestScorer_NoCacheIsStateless(t *testing.T) {
	responses := []string{`{"score_total": 10}`, `{"score_total": 90}`}
	calls := 0
	fake := &llmtest.Fake{Respond: func([]llm.Message) (string, error) {
		r := responses[calls]
		calls++
		return r, nil
	}}
	s := NewScorer(fake, nil, logger.NewNoOpLogger(), time.Minute)

	first := s.Score(context.Background(), hotLead)
	second := s.Score(context.Background(), hotLead)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 10, *first)
	assert.Equal(t, 90, *second)

	exchanges := fake.Calls()
	require.Len(t, exchanges, 2)
	for _, ex := range exchanges {
		assert.Contains(t, ex[1].Content, "3,000 m2")
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestScorer_Cache(t *testing.T) {
	t.Run("hit skips the completion", func(t *testing.T) {
		mr, client := newRedis(t)
		fake := &llmtest.Fake{Response: `{"score_total": 64}`}
		s := NewScorer(fake, NewRedisScoreCache(client, time.Hour), logger.NewNoOpLogger(), time.Minute)

		first := s.Score(context.Background(), hotLead)
		second := s.Score(context.Background(), hotLead)

		require.NotNil(t, first)
		require.NotNil(t, second)
		assert.Equal(t, 64, *second)
		assert.Len(t, fake.Calls(), 1)

		key := CacheKey(hotLead)
		assert.True(t, strings.HasPrefix(key, "lead:score:"))
		assert.Len(t, strings.TrimPrefix(key, "lead:score:"), 64)
		got, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "64", got)
		assert.Equal(t, time.Hour, mr.TTL(key))
	})

	t.Run("failures are not cached", func(t *testing.T) {
		mr, client := newRedis(t)
		fake := &llmtest.Fake{Response: "???"}
		s := NewScorer(fake, NewRedisScoreCache(client, time.Hour), logger.NewNoOpLogger(), time.Minute)

		assert.Nil(t, s.Score(context.Background(), coldLead))
		assert.False(t, mr.Exists(CacheKey(coldLead)))
	})

	t.Run("unreachable cache falls back to the completion", func(t *testing.T) {
		mr, client := newRedis(t)
		mr.Close()
		fake := &llmtest.Fake{Response: `{"score_total": 33}`}
		s := NewScorer(fake, NewRedisScoreCache(client, time.Hour), logger.NewNoOpLogger(), time.Minute)

		got := s.Score(context.Background(), coldLead)
		require.NotNil(t, got)
		assert.Equal(t, 33, *got)
	})
}

func TestParseScore(t *testing.T) {
	n, err := parseScore("```json\n{\"score_total\": 75.0}\n```")
	require.NoError(t, err)
	assert.Equal(t, 75, n)

	n, err = parseScore(`{"score_total": -3}`)
	require.NoError(t, err)
	assert.Equal(t, -3, n)

	_, err = parseScore("")
	assert.Error(t, err)

	for _, raw := range []string{
		`{"score_total": 1e19}`,
		`{"score_total": 99999999999999999999}`,
		`{"score_total": -1e19}`,
		`{"score_total": 1e400}`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseScore(raw)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeScoringFailed, errors.Normalize(err).Code)
		})
	}
}
