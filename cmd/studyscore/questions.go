package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/pavelanni/studyscore/internal/model"
	"github.com/pavelanni/studyscore/internal/scoring"
	"github.com/pavelanni/studyscore/internal/store"
)

// parseQuestions converts a question bank file into questions. Entries without
// an ID get one derived from the file path and position so re-imports update
// the same rows. With skipMalformed, entries that fail validation are logged
// and skipped; otherwise only entries that cannot be converted at all are
// errors and validation is left to the scoring engine.
func parseQuestions(path string, data []byte, skipMalformed bool) ([]model.Question, error) {
	var imports []model.QuestionImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	questions := make([]model.Question, 0, len(imports))
	for i, qi := range imports {
		if qi.ID == "" {
			qi.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(path+"#"+strconv.Itoa(i))).String()
		}
		q, err := qi.Question()
		if err != nil && !skipMalformed {
			return nil, fmt.Errorf("%s entry %d: %w", path, i, err)
		}
		if err == nil && skipMalformed {
			err = scoring.ValidateQuestion(q)
		}
		if err != nil {
			slog.Warn("skipping malformed question", "path", path, "index", i, "error", err)
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func readQuestionFile(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseQuestions(path, data, false)
}

// loadQuestions imports question bank files into the store. Files whose
// content hash matches the last import are skipped.
func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Info("questions file changed since last import, updating", "path", path)
		}

		questions, err := parseQuestions(path, data, true)
		if err != nil {
			return err
		}
		for _, q := range questions {
			if err := db.UpsertQuestion(q); err != nil {
				return fmt.Errorf("store question %s from %s: %w", q.ID, path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
