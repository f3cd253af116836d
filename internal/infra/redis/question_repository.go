package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"sat-daily-quiz/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store (file, Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

var allSubjects = []domain.Subject{domain.SubjectEnglish, domain.SubjectMath}

// QuestionRepository caches the question pool in Redis, one JSON document per subject,
// and falls back to the loader on a miss.
//
//	SET questions:{subject} <json array> EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListQuestions(ctx context.Context, filter domain.SubjectFilter) ([]domain.Question, error) {
	subjects := filter.Subjects
	if len(subjects) == 0 {
		subjects = allSubjects
	}

	if out, ok := r.fromCache(ctx, subjects); ok {
		return out, nil
	}

	_, err, _ := r.sf.Do("pool", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if _, ok := r.fromCache(ctx, allSubjects); ok {
			return nil, nil
		}

		pool, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		bySubject := make(map[domain.Subject][]domain.Question, len(allSubjects))
		for _, q := range pool {
			bySubject[q.Subject] = append(bySubject[q.Subject], q)
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, subject := range allSubjects {
			questions := bySubject[subject]
			if questions == nil {
				questions = []domain.Question{}
			}
			raw, err := json.Marshal(questions)
			if err != nil {
				return nil, err
			}
			pipe.Set(ctx, r.key(subject), raw, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if out, ok := r.fromCache(ctx, subjects); ok {
		return out, nil
	}
	// Redis unavailable: serve straight from the loader.
	pool, err := r.loader.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if filter.Matches(q.Subject) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *QuestionRepository) fromCache(ctx context.Context, subjects []domain.Subject) ([]domain.Question, bool) {
	keys := make([]string, len(subjects))
	for i, s := range subjects {
		keys[i] = r.key(s)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false
	}

	var out []domain.Question
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, false
		}
		var questions []domain.Question
		if err := json.Unmarshal([]byte(raw), &questions); err != nil {
			return nil, false
		}
		out = append(out, questions...)
	}
	return out, true
}

func (r *QuestionRepository) key(subject domain.Subject) string {
	return "questions:" + string(subject)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
