package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/app"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/service"
)

func main() {
	var participants int
	flag.IntVar(&participants, "participants", 10, "Number of participants to join and complete")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	gen, err := joincode.NewGenerator(app.JoinCodeConfig(cfg), store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid join code settings")
	}

	tests := service.NewTestService(store, store, gen, log)
	// Subjective essays are graded inline so the summary is final.
	submissions := service.NewSubmissionService(store, app.EssayGrader(cfg, log), nil, log)
	completion := service.NewCompletionService(store, nil, log)

	fmt.Println("=== Seeding demo test ===")

	test, err := tests.Create(ctx, "Ujian Demo IPA")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}
	fmt.Printf("Created test %s with join code %s\n", test.ID, test.JoinCode)

	d, err := seedQuestions(ctx, store, test)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed questions")
	}

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	}

	completed := 0
	for i := 0; i < participants; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}

		p, err := tests.Join(ctx, test.JoinCode, name)
		if err != nil {
			fmt.Printf("Error joining %s: %v\n", name, err)
			continue
		}
		if err := d.answer(ctx, submissions, p.ID, i); err != nil {
			fmt.Printf("Error answering for %s: %v\n", name, err)
			continue
		}
		if _, err := completion.Complete(ctx, p.ID); err != nil {
			fmt.Printf("Error completing %s: %v\n", name, err)
			continue
		}

		sum, err := submissions.ScoreSummary(ctx, p.ID)
		if err != nil {
			fmt.Printf("Error summarising %s: %v\n", name, err)
			continue
		}
		completed++
		fmt.Printf("%-20s %5.1f / %5.1f (pending %d)\n", name, sum.Total, sum.MaxTotal, sum.Pending)
	}

	fmt.Printf("\nSeed completed! %d/%d participants completed test %s.\n", completed, participants, test.JoinCode)
}

type demo struct {
	choice, multi, exact, subjective *model.Question
	right, wrong                     *model.Option
	multiOptions                     []*model.Option
}

func seedQuestions(ctx context.Context, store service.Store, test *model.Test) (*demo, error) {
	d := &demo{
		choice: &model.Question{TestID: test.ID, OrderNum: 1, QuestionType: model.QuestionTypeChoice, MaxScore: 10,
			QuestionText: "Planet terdekat dari Matahari adalah ..."},
		multi: &model.Question{TestID: test.ID, OrderNum: 2, QuestionType: model.QuestionTypeMultipleSelect, MaxScore: 20,
			QuestionText: "Pilih semua gas mulia."},
		exact: &model.Question{TestID: test.ID, OrderNum: 3, QuestionType: model.QuestionTypeEssay, MaxScore: 30,
			EssayMode: model.EssayModeExact, AnswerKey: "air menguap menjadi awan lalu turun sebagai hujan",
			QuestionText: "Jelaskan siklus air secara singkat."},
		subjective: &model.Question{TestID: test.ID, OrderNum: 4, QuestionType: model.QuestionTypeEssay, MinScore: 5, MaxScore: 40,
			EssayMode: model.EssayModeSubjective, AnswerKey: "tumbuhan mengubah cahaya, air dan karbon dioksida menjadi glukosa dan oksigen",
			QuestionText: "Apa yang terjadi pada fotosintesis?"},
	}
	for _, q := range []*model.Question{d.choice, d.multi, d.exact, d.subjective} {
		if err := store.CreateQuestion(ctx, q); err != nil {
			return nil, err
		}
	}

	d.right = &model.Option{QuestionID: d.choice.ID, OptionText: "Merkurius", IsCorrect: true}
	d.wrong = &model.Option{QuestionID: d.choice.ID, OptionText: "Venus"}
	d.multiOptions = []*model.Option{
		{QuestionID: d.multi.ID, OptionText: "Helium", IsCorrect: true},
		{QuestionID: d.multi.ID, OptionText: "Neon", IsCorrect: true},
		{QuestionID: d.multi.ID, OptionText: "Nitrogen"},
	}
	for _, o := range append([]*model.Option{d.right, d.wrong}, d.multiOptions...) {
		if err := store.CreateOption(ctx, o); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// answer varies the submission by participant index so scores differ.
func (d *demo) answer(ctx context.Context, s *service.SubmissionService, participantID uuid.UUID, i int) error {
	choice := d.right
	if i%3 == 2 {
		choice = d.wrong
	}
	if _, err := s.SelectChoice(ctx, participantID, d.choice.ID, choice.ID); err != nil {
		return err
	}

	// Toggle through the options; odd participants end on the exact set.
	toggles := []*model.Option{d.multiOptions[0], d.multiOptions[1]}
	if i%2 == 0 {
		toggles = append(toggles, d.multiOptions[2])
	}
	for _, o := range toggles {
		if _, err := s.ToggleMultipleSelect(ctx, participantID, d.multi.ID, o.ID); err != nil {
			return err
		}
	}

	essays := []string{
		"air menguap menjadi awan lalu turun sebagai hujan",
		"air menguap menjadi awan",
		"hujan turun",
	}
	if _, err := s.SetEssayText(ctx, participantID, d.exact.ID, essays[i%len(essays)]); err != nil {
		return err
	}
	_, err := s.SetEssayText(ctx, participantID, d.subjective.ID, "tumbuhan membuat makanan dari cahaya matahari")
	return err
}
