package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-sentiment/internal/decision"
)

func TestTop(t *testing.T) {
	got, err := Top([]Prediction{{Label: " positive ", Score: 0.97}, {Label: "NEGATIVE", Score: 0.03}})
	require.NoError(t, err)
	assert.Equal(t, decision.Result{Label: decision.LabelPositive, Score: 0.97}, got)

	got, err = Top([]Prediction{{Label: "NEGATIVE", Score: 1 + 1e-12}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)

	cases := [][]Prediction{
		nil,
		{{Label: "  ", Score: 0.5}},
		{{Label: "POSITIVE", Score: math.NaN()}},
		{{Label: "POSITIVE", Score: 1.2}},
		{{Label: "POSITIVE", Score: -0.1}},
	}
	for _, tc := range cases {
		_, err := Top(tc)
		assert.ErrorIs(t, err, ErrMalformed, "%v", tc)
	}
}

func newTestClient(t *testing.T, url string) *HuggingFaceClient {
	t.Helper()
	client, err := NewHuggingFaceClient(Config{
		APIToken:       "hf_test",
		BaseURL:        url,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestHuggingFaceClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+DefaultModel, r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Loved it", body["inputs"])
		_, _ = w.Write([]byte(`[[{"label":"NEGATIVE","score":0.02},{"label":"POSITIVE","score":0.98}]]`))
	}))
	defer srv.Close()

	predictions, err := newTestClient(t, srv.URL).Classify(context.Background(), "  Loved it ")
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, "POSITIVE", predictions[0].Label)
	assert.InDelta(t, 0.98, predictions[0].Score, 1e-9)
}

func TestHuggingFaceFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"label":"NEGATIVE","score":0.91},{"label":"POSITIVE","score":0.09}]`))
	}))
	defer srv.Close()

	predictions, err := newTestClient(t, srv.URL).Classify(context.Background(), "meh")
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", predictions[0].Label)
}

func TestHuggingFaceRetriesWhileLoading(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading","estimated_time":0.001}`))
			return
		}
		_, _ = w.Write([]byte(`[[{"label":"POSITIVE","score":0.8}]]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.Warmup(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestHuggingFaceDoesNotWaitAfterLastAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewHuggingFaceClient(Config{
		APIToken:       "hf_test",
		BaseURL:        srv.URL,
		MaxRetries:     1,
		InitialBackoff: 5 * time.Second,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Classify(context.Background(), "text")
	elapsed := time.Since(start)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Less(t, elapsed, 2*time.Second)
}

func TestHuggingFaceErrors(t *testing.T) {
	_, err := NewHuggingFaceClient(Config{})
	assert.ErrorIs(t, err, ErrDisabled)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err = client.Classify(context.Background(), "text")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, "Invalid token", statusErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")

	_, err = client.Classify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestDecodePredictionsRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`[]`, `[[]]`, `{"label":"x"}`, `nope`} {
		_, err := decodePredictions([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestLexicon(t *testing.T) {
	lex := NewLexicon()
	ctx := context.Background()

	cases := []struct {
		text  string
		label string
	}{
		{"Great blender, works perfectly. Love it!", decision.LabelPositive},
		{"Terrible. It broke after a week, want a refund.", decision.LabelNegative},
		{"It is a blender.", decision.LabelNeutral},
		{"Not good at all", decision.LabelNegative},
	}
	for _, tc := range cases {
		predictions, err := lex.Classify(ctx, tc.text)
		require.NoError(t, err)
		top, err := Top(predictions)
		require.NoError(t, err)
		assert.Equal(t, tc.label, top.Label, tc.text)
	}

	_, err := lex.Classify(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

type stubClassifier struct {
	name        string
	enabled     bool
	predictions []Prediction
	err         error
	calls       int
}

func (s *stubClassifier) Name() string  { return s.name }
func (s *stubClassifier) Enabled() bool { return s.enabled }
func (s *stubClassifier) Classify(ctx context.Context, text string) ([]Prediction, error) {
	s.calls++
	return s.predictions, s.err
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	good := []Prediction{{Label: "POSITIVE", Score: 0.9}}
	fallback := &stubClassifier{name: "fallback", enabled: true, predictions: []Prediction{{Label: "NEGATIVE", Score: 0.7}}}

	primary := &stubClassifier{name: "primary", enabled: true, predictions: good}
	got, err := WithFallback(primary, fallback).Classify(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, good, got)
	assert.Equal(t, 0, fallback.calls)

	failing := &stubClassifier{name: "primary", enabled: true, err: errors.New("boom")}
	got, err = WithFallback(failing, fallback).Classify(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", got[0].Label)

	malformed := &stubClassifier{name: "primary", enabled: true, predictions: []Prediction{{Label: "", Score: 0.5}}}
	got, err = WithFallback(malformed, fallback).Classify(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", got[0].Label)

	disabled := &stubClassifier{name: "primary"}
	chain := WithFallback(disabled, fallback)
	assert.Equal(t, "fallback", chain.Name())
	assert.True(t, chain.Enabled())

	assert.Same(t, fallback, WithFallback(nil, fallback))
	_, err = WithFallback(disabled, &stubClassifier{}).Classify(ctx, "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCachedWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubClassifier{name: "model", enabled: true, predictions: []Prediction{{Label: "POSITIVE", Score: 0.9}}}
	cached := Cached(inner, NewRedisCache(rdb), time.Hour)

	for i := 0; i < 3; i++ {
		got, err := cached.Classify(context.Background(), "same text")
		require.NoError(t, err)
		assert.Equal(t, "POSITIVE", got[0].Label)
	}
	assert.Equal(t, 1, inner.calls)
	assert.True(t, mr.Exists(CacheKey("model", "same text")))

	mr.FastForward(2 * time.Hour)
	_, err = cached.Classify(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSkipsFallbackAnswers(t *testing.T) {
	ctx := context.Background()
	good := []Prediction{{Label: "POSITIVE", Score: 0.9}}

	compositions := map[string]func(primary Classifier, cache Cache) Classifier{
		"cache outside chain": func(primary Classifier, cache Cache) Classifier {
			return Cached(WithFallback(primary, NewLexicon()), cache, time.Hour)
		},
		"cache around primary": func(primary Classifier, cache Cache) Classifier {
			return WithFallback(Cached(primary, cache, time.Hour), NewLexicon())
		},
	}
	for name, compose := range compositions {
		t.Run(name, func(t *testing.T) {
			primary := &stubClassifier{name: "huggingface:model", enabled: true, err: errors.New("503")}
			clf := compose(primary, NewMemoryCache())

			_, answeredBy, err := ClassifyNamed(ctx, clf, "It is a blender.")
			require.NoError(t, err)
			assert.Equal(t, "lexicon", answeredBy)

			primary.err = nil
			primary.predictions = good
			got, answeredBy, err := ClassifyNamed(ctx, clf, "It is a blender.")
			require.NoError(t, err)
			assert.Equal(t, "huggingface:model", answeredBy)
			assert.Equal(t, good, got)

			_, answeredBy, err = ClassifyNamed(ctx, clf, "It is a blender.")
			require.NoError(t, err)
			assert.Equal(t, "huggingface:model", answeredBy)
			assert.Equal(t, 2, primary.calls)
		})
	}
}

func TestCachedSkipsInvalidOutput(t *testing.T) {
	inner := &stubClassifier{name: "model", enabled: true, predictions: []Prediction{{Label: "POSITIVE", Score: 1.5}}}
	cached := Cached(inner, NewMemoryCache(), time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.Classify(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestClassifyNamed(t *testing.T) {
	ctx := context.Background()
	fallback := &stubClassifier{name: "fallback", enabled: true, predictions: []Prediction{{Label: "NEGATIVE", Score: 0.7}}}
	primary := &stubClassifier{name: "primary", enabled: true, predictions: []Prediction{{Label: "POSITIVE", Score: 0.9}}}

	_, name, err := ClassifyNamed(ctx, WithFallback(primary, fallback), "x")
	require.NoError(t, err)
	assert.Equal(t, "primary", name)

	primary.err = errors.New("boom")
	_, name, err = ClassifyNamed(ctx, WithFallback(primary, fallback), "x")
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)

	_, name, err = ClassifyNamed(ctx, fallback, "x")
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)

	_, _, err = ClassifyNamed(ctx, nil, "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	inner := &stubClassifier{name: "model", enabled: true, err: errors.New("offline")}
	cached := Cached(inner, NewMemoryCache(), time.Minute)

	_, err := cached.Classify(context.Background(), "x")
	assert.Error(t, err)
	_, err = cached.Classify(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []Prediction{{Label: "POSITIVE", Score: 1}}, time.Minute))
	_, ok, _ := cache.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, CacheKey("a", "text"), CacheKey("b", "text"))
	assert.Equal(t, CacheKey("a", "text"), CacheKey("a", "text"))
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.json")
	terms := LexiconTerms{Positive: []string{" Stellar "}, Negative: []string{"meh"}}
	raw, err := json.Marshal(terms)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)

	predictions, err := lex.Classify(context.Background(), "A stellar kettle")
	require.NoError(t, err)
	assert.Equal(t, decision.LabelPositive, predictions[0].Label)

	predictions, err = lex.Classify(context.Background(), "Not stellar, rather meh")
	require.NoError(t, err)
	assert.Equal(t, decision.LabelNegative, predictions[0].Label)

	predictions, err = lex.Classify(context.Background(), "great")
	require.NoError(t, err)
	assert.Equal(t, decision.LabelNeutral, predictions[0].Label, "custom list replaces the built-in positives")

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
