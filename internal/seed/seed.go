// Package seed loads the demo accounts and assessments used for local
// walkthroughs. Every demo account logs in with password123.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
)

const DemoPassword = "password123"

// Hasher turns a plaintext password into a stored hash.
type Hasher interface {
	HashPassword(pw string) (string, error)
}

var demoUsers = []account.User{
	{Name: "John Doe", Email: "student@example.com", Role: account.RoleStudent, InstituteCode: "INST001"},
	{Name: "Jane Smith", Email: "instructor@example.com", Role: account.RoleInstructor, InstituteCode: "INST001"},
	{Name: "Admin User", Email: "admin@example.com", Role: account.RoleAdmin, InstituteCode: "INST001"},
	{Name: "Alice Johnson", Email: "alice@student.com", Role: account.RoleStudent, InstituteCode: "INST001"},
	{Name: "Bob Wilson", Email: "bob@instructor.com", Role: account.RoleInstructor, InstituteCode: "INST001"},
}

// Demo inserts the demo data unless the first demo account already exists.
// It reports whether anything was written.
func Demo(ctx context.Context, users account.Store, store assessment.Store, h Hasher, log *zap.Logger) (bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := users.GetByEmail(ctx, demoUsers[0].Email); err == nil {
		return false, nil
	} else if !errors.Is(err, account.ErrNotFound) {
		return false, err
	}

	hash, err := h.HashPassword(DemoPassword)
	if err != nil {
		return false, err
	}
	ids := map[string]account.User{}
	for _, u := range demoUsers {
		u.PasswordHash = hash
		u.Active = true
		created, err := users.Create(ctx, u)
		if err != nil {
			return false, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		ids[u.Email] = created
	}

	jane, bob := ids["instructor@example.com"], ids["bob@instructor.com"]
	john, alice := ids["student@example.com"], ids["alice@student.com"]
	for _, a := range demoAssessments(jane, bob, []string{john.ID, alice.ID}, []string{john.ID}) {
		if err := a.Validate(); err != nil {
			return false, fmt.Errorf("seed assessment %q: %w", a.Title, err)
		}
		if _, err := store.CreateAssessment(ctx, a); err != nil {
			return false, fmt.Errorf("seed assessment %q: %w", a.Title, err)
		}
	}
	log.Info("demo data seeded", zap.Int("users", len(demoUsers)), zap.String("password", DemoPassword))
	return true, nil
}

func demoAssessments(jane, bob account.User, dsStudents, calcStudents []string) []assessment.Assessment {
	return []assessment.Assessment{
		{
			Title:            "Introduction to Data Structures",
			Description:      "Fundamental concepts of data structures including arrays, linked lists, and stacks.",
			Subject:          "Computer Science",
			InstructorID:     jane.ID,
			InstructorName:   jane.Name,
			Kind:             assessment.KindQuiz,
			DurationMinutes:  60,
			PassingScore:     70,
			Difficulty:       "intermediate",
			Status:           assessment.StatusActive,
			EnrolledStudents: dsStudents,
			Questions: []assessment.Question{
				{
					ID:        "q1",
					Type:      assessment.SingleChoice,
					Prompt:    "Which of the following is NOT a primitive data type in most programming languages?",
					Options:   []string{"Integer", "Float", "String", "Array"},
					AnswerKey: []string{"Array"},
					Points:    5,
				},
				{
					ID:        "q2",
					Type:      assessment.MultiChoice,
					Prompt:    "Which data structures are considered linear?",
					Options:   []string{"Stack", "Queue", "Linked List", "Tree"},
					AnswerKey: []string{"Stack", "Queue", "Linked List"},
					Points:    10,
				},
				{ID: "q3", Type: assessment.ShortText, Prompt: "Explain the difference between a stack and a queue with examples.", Points: 15},
				{ID: "q4", Type: assessment.LongText, Prompt: "Describe how a binary search tree works and provide a real-world application.", Points: 20},
			},
		},
		{
			Title:            "Calculus Fundamentals",
			Description:      "Basic concepts of differential and integral calculus.",
			Subject:          "Mathematics",
			InstructorID:     bob.ID,
			InstructorName:   bob.Name,
			Kind:             assessment.KindExam,
			DurationMinutes:  120,
			PassingScore:     75,
			Difficulty:       "advanced",
			Status:           assessment.StatusActive,
			EnrolledStudents: calcStudents,
			Questions: []assessment.Question{
				{ID: "q1", Type: assessment.SingleChoice, Prompt: "What is the derivative of x²?", Options: []string{"x", "2x", "x²", "2"}, AnswerKey: []string{"2x"}, Points: 4},
				{ID: "q2", Type: assessment.ShortText, Prompt: "Find the integral of 3x² dx.", Points: 6},
			},
		},
		{
			Title:           "Programming Basics Quiz",
			Description:     "Test your knowledge of basic programming concepts.",
			Subject:         "Computer Science",
			InstructorID:    jane.ID,
			InstructorName:  jane.Name,
			Kind:            assessment.KindQuiz,
			DurationMinutes: 45,
			PassingScore:    65,
			Difficulty:      "beginner",
			Status:          assessment.StatusDraft,
		},
		{
			Title:          "Database Design Principles",
			Description:    "Learn about relational database design and normalization.",
			Subject:        "Computer Science",
			InstructorID:   jane.ID,
			InstructorName: jane.Name,
			Kind:           assessment.KindAssignment,
			PassingScore:   80,
			Difficulty:     "intermediate",
			Status:         assessment.StatusActive,
			Questions: []assessment.Question{
				{ID: "q1", Type: assessment.LongText, Prompt: "Design a database schema for a university management system. Include entities for students, courses, instructors, and enrollments.", Points: 40},
			},
		},
	}
}
