package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/goccy/go-json"
)

type ProblemRepository interface {
	// Exists reports whether a problem with the remote id is already stored.
	Exists(ctx context.Context, id int) (bool, error)
	// Upsert inserts p or, when its slug is already stored, overwrites the
	// mutable fields and keeps the stored id. It returns the stored id.
	Upsert(ctx context.Context, tx *sql.Tx, p *model.Problem) (int, error)
	FindBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, topicSlug string) ([]model.Problem, int, error)
	Count(ctx context.Context) (int, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) Exists(ctx context.Context, id int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM problems WHERE id = $1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("pgProblemRepository.Exists: %v: %w", err, common.ErrLocalStore)
	}
	return true, nil
}

const upsertProblemQuery = `
	INSERT INTO problems
		(id, frontend_id, title, title_slug, difficulty, is_paid_only, content, topic_tags, example_testcases, similar_questions)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (title_slug) DO UPDATE SET
		title = EXCLUDED.title,
		difficulty = EXCLUDED.difficulty,
		is_paid_only = EXCLUDED.is_paid_only,
		content = EXCLUDED.content,
		topic_tags = EXCLUDED.topic_tags,
		example_testcases = EXCLUDED.example_testcases,
		similar_questions = EXCLUDED.similar_questions,
		updated_at = CURRENT_TIMESTAMP
	RETURNING id`

// Upsert writes the problem row and its topic index in one transaction. When
// tx is nil a transaction is opened and committed here.
func (r *pgProblemRepository) Upsert(ctx context.Context, tx *sql.Tx, p *model.Problem) (int, error) {
	if tx == nil {
		own, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("pgProblemRepository.Upsert begin: %v: %w", err, common.ErrLocalStore)
		}
		defer own.Rollback()

		id, err := r.Upsert(ctx, own, p)
		if err != nil {
			return 0, err
		}
		if err := own.Commit(); err != nil {
			return 0, fmt.Errorf("pgProblemRepository.Upsert commit: %v: %w", err, common.ErrLocalStore)
		}
		return id, nil
	}

	topicTags, err := marshalJSONList(p.TopicTags)
	if err != nil {
		return 0, fmt.Errorf("encode topic tags for %s: %w", p.TitleSlug, err)
	}
	similar, err := marshalJSONList(p.SimilarQuestions)
	if err != nil {
		return 0, fmt.Errorf("encode similar questions for %s: %w", p.TitleSlug, err)
	}

	var storedID int
	err = tx.QueryRowContext(ctx, upsertProblemQuery,
		p.ID, p.FrontendID, p.Title, p.TitleSlug, p.Difficulty, p.IsPaidOnly,
		p.Content, topicTags, p.ExampleTestcases, similar,
	).Scan(&storedID)
	if err != nil {
		if common.IsUniqueViolation(err) { // id already used by a different slug
			return 0, fmt.Errorf("problem id %d already stored under another slug: %w", p.ID, common.ErrConflict)
		}
		return 0, fmt.Errorf("pgProblemRepository.Upsert %s: %v: %w", p.TitleSlug, err, common.ErrLocalStore)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM problems_topic WHERE problem_id = $1`, storedID); err != nil {
		return 0, fmt.Errorf("pgProblemRepository.Upsert clear topics: %v: %w", err, common.ErrLocalStore)
	}
	for _, topic := range p.TopicSlugs() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO problems_topic (problem_id, topic_slug) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			storedID, topic)
		if err != nil {
			return 0, fmt.Errorf("pgProblemRepository.Upsert topic %s: %v: %w", topic, err, common.ErrLocalStore)
		}
	}
	return storedID, nil
}

const problemColumns = `p.id, COALESCE(p.frontend_id, ''), p.title, p.title_slug, p.difficulty, p.is_paid_only,
	p.content, p.topic_tags, p.example_testcases, p.similar_questions, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	var (
		p                 model.Problem
		topicTags, simRaw []byte
	)
	err := row.Scan(&p.ID, &p.FrontendID, &p.Title, &p.TitleSlug, &p.Difficulty, &p.IsPaidOnly,
		&p.Content, &topicTags, &p.ExampleTestcases, &simRaw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(topicTags, &p.TopicTags); err != nil {
		return nil, fmt.Errorf("decode topic tags for %s: %w", p.TitleSlug, err)
	}
	if err := json.Unmarshal(simRaw, &p.SimilarQuestions); err != nil {
		return nil, fmt.Errorf("decode similar questions for %s: %w", p.TitleSlug, err)
	}
	return &p, nil
}

func (r *pgProblemRepository) FindBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems p WHERE p.title_slug = $1`, slug)
	p, err := scanProblem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindBySlug: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, topicSlug string) ([]model.Problem, int, error) {
	var from strings.Builder
	from.WriteString(` FROM problems p`)

	var conditions []string
	var args []interface{}
	argID := 1

	if topicSlug != "" {
		from.WriteString(` JOIN problems_topic pt ON pt.problem_id = p.id`)
		conditions = append(conditions, fmt.Sprintf("pt.topic_slug = $%d", argID))
		args = append(args, topicSlug)
		argID++
	}
	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}
	if len(conditions) > 0 {
		from.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT ` + problemColumns + from.String() +
		fmt.Sprintf(" ORDER BY p.id LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows: %w", err)
	}
	return problems, total, nil
}

func (r *pgProblemRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgProblemRepository.Count: %w", err)
	}
	return n, nil
}

// marshalJSONList encodes a nil slice as [] so the JSONB columns never hold null.
func marshalJSONList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
