package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/database"
	"github.com/stemsi/jlpt-proctor/internal/logger"
	"github.com/stemsi/jlpt-proctor/internal/model"
	"github.com/stemsi/jlpt-proctor/internal/repository"
)

type seedFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Level   string            `yaml:"level"`
	Section string            `yaml:"section"`
	Prompt  string            `yaml:"question"`
	Options map[string]string `yaml:"options"`
	Correct string            `yaml:"correct"`
}

func main() {
	var path string
	flag.StringVar(&path, "file", "seeds/questions.yaml", "YAML file with questions to load")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read seed file")
	}
	questions, err := parseSeed(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Invalid seed file")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	n, err := repository.NewQuestionRepository(pool).CopyQuestions(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load questions")
	}
	log.Info().Int64("questions", n).Str("file", path).Msg("Seed completed")
}

func parseSeed(data []byte) ([]model.Question, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	out := make([]model.Question, 0, len(f.Questions))
	for i, sq := range f.Questions {
		level, err := model.ParseLevel(sq.Level)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		correct := model.Answer(sq.Correct)
		if !correct.Valid() {
			return nil, fmt.Errorf("question %d: correct answer %q is not A-D", i+1, sq.Correct)
		}
		q := model.Question{
			Level:         level,
			Section:       sq.Section,
			Prompt:        sq.Prompt,
			CorrectAnswer: correct,
			Options: model.Options{
				A: sq.Options["A"],
				B: sq.Options["B"],
				C: sq.Options["C"],
				D: sq.Options["D"],
			},
		}
		if q.Section == "" {
			q.Section = "vocabulary"
		}
		if q.Prompt == "" || q.Options.A == "" || q.Options.B == "" || q.Options.C == "" || q.Options.D == "" {
			return nil, fmt.Errorf("question %d: prompt and all four options are required", i+1)
		}
		out = append(out, q)
	}
	return out, nil
}
