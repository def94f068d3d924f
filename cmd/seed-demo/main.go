package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/klasika/klasika-backend/internal/config"
	"github.com/klasika/klasika-backend/internal/database"
	"github.com/klasika/klasika-backend/internal/logger"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/repository"
	"github.com/klasika/klasika-backend/internal/service"
)

// Seeds a demo roster: one class, three students (password "student123"),
// one teacher account, and a published mathematics exam with five questions.
// Safe to re-run: existing rows are reused.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	classRepo := repository.NewClassRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	examService := service.NewExamService(examRepo, questionRepo, sessionRepo, rdb, log)

	// ─── Class ─────────────────────────────────────────────────────────
	class, err := classRepo.GetByNameAndStream(ctx, "JSS 2", "A")
	if errors.Is(err, pgx.ErrNoRows) {
		class = &model.Class{Name: "JSS 2", Stream: "A"}
		if err := classRepo.Create(ctx, class); err != nil {
			log.Fatal().Err(err).Msg("Failed to create class")
		}
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up class")
	}
	fmt.Printf("Class: %s %s (id %d)\n", class.Name, class.Stream, class.ID)

	// ─── Students ──────────────────────────────────────────────────────
	hash, err := bcrypt.GenerateFromPassword([]byte("student123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admissions := []struct{ no, name string }{
		{"KLS-2026-001", "Adaeze Okafor"},
		{"KLS-2026-002", "Tunde Balogun"},
		{"KLS-2026-003", "Chiamaka Eze"},
	}
	for _, a := range admissions {
		student := &model.Student{
			AdmissionNo:  a.no,
			Name:         a.name,
			PasswordHash: string(hash),
			ClassID:      class.ID,
		}
		err := studentRepo.Create(ctx, student)
		if errors.Is(err, repository.ErrDuplicateAdmissionNo) {
			fmt.Printf("Student %s already exists, skipping\n", a.no)
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("admission_no", a.no).Msg("Failed to create student")
		}
		fmt.Printf("Student: %s (%s)\n", a.name, a.no)
	}

	// ─── Teacher ───────────────────────────────────────────────────────
	teacher, err := staffRepo.GetByEmail(ctx, "teacher@klasika.example")
	if errors.Is(err, pgx.ErrNoRows) {
		teacherHash, herr := bcrypt.GenerateFromPassword([]byte("teacher123"), cfg.BcryptCost)
		if herr != nil {
			log.Fatal().Err(herr).Msg("Failed to hash password")
		}
		teacher = &model.Staff{
			Email:        "teacher@klasika.example",
			Name:         "Ngozi Adeyemi",
			PasswordHash: string(teacherHash),
			Role:         model.StaffRoleTeacher,
		}
		if err := staffRepo.Create(ctx, teacher); err != nil {
			log.Fatal().Err(err).Msg("Failed to create teacher")
		}
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up teacher")
	}
	fmt.Printf("Teacher: %s (id %d)\n", teacher.Name, teacher.ID)

	// ─── Exam ──────────────────────────────────────────────────────────
	startsAt := time.Now().Add(-time.Hour)
	endsAt := time.Now().Add(7 * 24 * time.Hour)
	exam := &model.Exam{
		Title:           "First Term Mathematics CA",
		Subject:         "Mathematics",
		ClassID:         class.ID,
		Term:            "First Term",
		AcademicYear:    "2026/2027",
		DurationMinutes: 30,
		TotalMarks:      6,
		StartsAt:        &startsAt,
		EndsAt:          &endsAt,
		Instructions:    "Answer all questions. Each question has exactly one correct option.",
		CreatedBy:       teacher.ID,
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	questions := []model.Question{
		{Text: "What is 12 x 8?", OptionA: "96", OptionB: "86", OptionC: "108", OptionD: "92", CorrectOption: "A", Marks: 1, Position: 1},
		{Text: "Simplify: 3/4 + 1/8", OptionA: "4/12", OptionB: "7/8", OptionC: "1/2", OptionD: "5/8", CorrectOption: "B", Marks: 1, Position: 2},
		{Text: "What is the value of x in 2x + 6 = 18?", OptionA: "12", OptionB: "9", OptionC: "6", OptionD: "3", CorrectOption: "C", Marks: 1, Position: 3},
		{Text: "A triangle has angles 65 and 55 degrees. The third angle is:", OptionA: "70", OptionB: "50", OptionC: "45", OptionD: "60", CorrectOption: "D", Marks: 1, Position: 4},
		{Text: "Express 0.25 as a fraction in its lowest terms.", OptionA: "25/100", OptionB: "2/5", OptionC: "1/4", OptionD: "5/20", CorrectOption: "C", Marks: 2, Position: 5},
	}
	for i := range questions {
		questions[i].ExamID = exam.ID
	}
	if err := questionRepo.ReplaceForExam(ctx, exam.ID, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to create questions")
	}

	if err := examService.Publish(ctx, exam.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}

	fmt.Printf("Exam: %s (id %s), published with %d questions\n", exam.Title, exam.ID, len(questions))
	fmt.Println("Done.")
}
