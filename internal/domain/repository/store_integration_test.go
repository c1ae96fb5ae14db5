//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
	"study_sync/internal/domain/repository"
	"study_sync/internal/platform/testinfra"
)

func TestProblemUpsertIsIdempotentBySlug(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := repository.NewPgProblemRepository(db)
	ctx := context.Background()

	p := &model.Problem{
		ID: 1, FrontendID: "1", Title: "Two Sum", TitleSlug: "two-sum",
		Difficulty: model.DifficultyEasy,
		TopicTags:  []model.TopicTag{{Name: "Array", Slug: "array"}, {Name: "Hash Table", Slug: "hash-table"}},
	}
	if _, err := repo.Upsert(ctx, nil, p); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Refetch with a different id and changed fields keeps the stored id.
	updated := *p
	updated.ID = 999
	updated.Title = "Two Sum (renamed)"
	updated.Difficulty = model.DifficultyMedium
	updated.TopicTags = []model.TopicTag{{Name: "Array", Slug: "array"}}
	storedID, err := repo.Upsert(ctx, nil, &updated)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if storedID != 1 {
		t.Errorf("stored id = %d, want 1", storedID)
	}

	got, err := repo.FindBySlug(ctx, "two-sum")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 1 || got.Title != "Two Sum (renamed)" || got.Difficulty != model.DifficultyMedium {
		t.Errorf("stored = %+v", got)
	}
	if got.SimilarQuestions == nil || len(got.SimilarQuestions) != 0 {
		t.Errorf("SimilarQuestions = %#v, want empty list", got.SimilarQuestions)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	// The topic index follows the latest tag set.
	if _, total, _ := repo.ListProblems(ctx, 10, 0, "", "hash-table"); total != 0 {
		t.Errorf("stale topic row remains: total = %d", total)
	}
	if list, total, _ := repo.ListProblems(ctx, 10, 0, model.DifficultyMedium, "array"); total != 1 || list[0].TitleSlug != "two-sum" {
		t.Errorf("topic filter = %+v (total %d)", list, total)
	}

	exists, err := repo.Exists(ctx, 1)
	if err != nil || !exists {
		t.Errorf("Exists(1) = %v, %v", exists, err)
	}
}

func TestProblemUpsertRejectsReusedID(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := repository.NewPgProblemRepository(db)
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, nil, &model.Problem{ID: 7, TitleSlug: "reverse-integer", Title: "Reverse Integer", Difficulty: model.DifficultyMedium}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.Upsert(ctx, nil, &model.Problem{ID: 7, TitleSlug: "other", Title: "Other", Difficulty: model.DifficultyEasy})
	if !errors.Is(err, common.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, err := repo.FindBySlug(ctx, "other"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("rolled back row is visible: %v", err)
	}
}

func TestSubmissionRecordDeduplicates(t *testing.T) {
	db := testinfra.StartPostgres(t)
	users := repository.NewPgUserRepository(db)
	subs := repository.NewPgSubmissionRepository(db)
	ctx := context.Background()

	user := &model.User{ID: "u1", Username: "julius", LeetcodeUsername: "celana"}
	if err := users.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := users.Create(ctx, &model.User{ID: "u2", Username: "julius"}); !errors.Is(err, common.ErrConflict) {
		t.Errorf("duplicate username: err = %v", err)
	}

	remote := model.RemoteSubmission{ID: "900", Title: "Two Sum", TitleSlug: "two-sum", Timestamp: 1700000000}
	for i, wantCreated := range []bool{true, false} {
		created, err := subs.Record(ctx, nil, model.NewSubmission(user.ID, remote))
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if created != wantCreated {
			t.Errorf("record %d: created = %v, want %v", i, created, wantCreated)
		}
	}
	if n, _ := subs.CountByRemoteID(ctx, "900"); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	list, err := subs.ListByUser(ctx, user.ID, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByUser = %+v, %v", list, err)
	}
	if !list[0].SubmittedAt.Equal(time.Unix(1700000000, 0)) || list[0].ID != "leetcode-900" {
		t.Errorf("row = %+v", list[0])
	}

	found, err := users.FindByUsername(ctx, "julius")
	if err != nil || found.ID != "u1" || found.LeetcodeUsername != "celana" {
		t.Errorf("FindByUsername = %+v, %v", found, err)
	}
}
