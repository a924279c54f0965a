package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"adaptive_quiz/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput(topic string, difficulty int) QuestionInput {
	return QuestionInput{
		Topic:       topic,
		Difficulty:  difficulty,
		Question:    "Pick b",
		Choices:     []string{"a", "b", "c"},
		AnswerIndex: intPtr(1),
		Explain:     "b is second",
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*QuestionInput)
	}{
		{"missing topic", func(in *QuestionInput) { in.Topic = "  " }},
		{"missing question", func(in *QuestionInput) { in.Question = "" }},
		{"one choice", func(in *QuestionInput) { in.Choices = []string{"only"} }},
		{"missing answer", func(in *QuestionInput) { in.AnswerIndex = nil }},
		{"answer out of range", func(in *QuestionInput) { in.AnswerIndex = intPtr(3) }},
		{"negative answer", func(in *QuestionInput) { in.AnswerIndex = intPtr(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput("Math", 2)
			tc.mutate(&in)
			_, err := s.Create(ctx, in)
			assert.ErrorIs(t, err, util.ErrInvalidQuestion)
		})
	}

	count, err := s.QuestionRepo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateQuestionClampsDifficulty(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	for in, want := range map[int]int{0: 1, -3: 1, 3: 3, 9: 5} {
		q, err := s.Create(ctx, validInput("Math", in))
		require.NoError(t, err)
		assert.Equal(t, want, q.Difficulty, "difficulty %d", in)
	}
}

func TestQuestionCRUD(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	q, err := s.Create(ctx, validInput("Math", 2))
	require.NoError(t, err)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string(got.Choices))
	assert.Equal(t, "b is second", got.Explanation)

	in := validInput("Science", 4)
	in.AnswerIndex = intPtr(2)
	updated, err := s.Update(ctx, q.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Science", updated.Topic)
	assert.Equal(t, 2, updated.AnswerIndex)

	_, err = s.Update(ctx, 999, in)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)

	require.NoError(t, s.Delete(ctx, q.ID))
	assert.ErrorIs(t, s.Delete(ctx, q.ID), util.ErrQuestionNotFound)
	_, err = s.Get(ctx, q.ID)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestListQuestionsNewestFirst(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	for _, topic := range []string{"Math", "Science", "Math", "Math"} {
		_, err := s.Create(ctx, validInput(topic, 1))
		require.NoError(t, err)
	}

	list, total, err := s.List(ctx, "Math", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)

	list, _, err = s.List(ctx, "Math", 2, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, total, err = s.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
}

func TestImportIsAllOrNothing(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	bad := validInput("Math", 1)
	bad.Choices = nil
	_, err := s.Import(ctx, []QuestionInput{validInput("Math", 1), bad})
	assert.ErrorIs(t, err, util.ErrInvalidQuestion)
	assert.Contains(t, err.Error(), "question 2")

	count, _ := s.QuestionRepo.Count(ctx)
	assert.Zero(t, count)

	n, err := s.Import(ctx, []QuestionInput{validInput("Math", 1), validInput("Science", 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Import(ctx, nil)
	assert.ErrorIs(t, err, util.ErrInvalidQuestion)
}

func TestSeedIfEmpty(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.json")
	data, err := json.Marshal(SeedFile{Questions: []QuestionInput{validInput("Math", 1), validInput("Math", 3)}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	n, err := s.SeedIfEmpty(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.SeedIfEmpty(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedIfEmpty(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Seed(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBankAndTopics(t *testing.T) {
	s := newQuestionService(t, newTestDB(t))
	ctx := context.Background()

	for _, topic := range []string{"Science", "Math", "Math"} {
		_, err := s.Create(ctx, validInput(topic, 2))
		require.NoError(t, err)
	}

	topics, err := s.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Math", "Science"}, topics)

	entries, err := s.Bank(ctx, []string{"Math"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "answerIndex")
	assert.NotContains(t, string(raw), "explain")

	bank, err := s.LoadBank(ctx, nil)
	require.NoError(t, err)
	require.Len(t, bank, 3)
	assert.Equal(t, 1, bank[0].AnswerIndex)
}

func TestExport(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig(t)
	storage := NewStorageService(cfg)
	s := NewQuestionService(newQuestionService(t, db).QuestionRepo, storage)
	ctx := context.Background()

	_, err := s.Create(ctx, validInput("Math", 2))
	require.NoError(t, err)

	res, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "/api/admin/exports/"+res.Filename, res.URL)

	data, err := os.ReadFile(filepath.Join(cfg.Storage.LocalPath, res.Filename))
	require.NoError(t, err)

	var file SeedFile
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Questions, 1)
	assert.Equal(t, 1, *file.Questions[0].AnswerIndex)
	assert.NotNil(t, file.ExportedAt)
}
