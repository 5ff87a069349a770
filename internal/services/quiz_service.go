package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/cache"
	"github.com/cropsgg/ionia-stage2-sub000/internal/events"
	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	db        *gorm.DB
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewQuizService(deps Dependencies) QuizService {
	return &quizService{
		repo:      deps.Repo,
		db:        deps.DB,
		cache:     deps.Cache,
		publisher: deps.Events,
		logger:    deps.Logger,
		validator: deps.Validator,
		now:       deps.clock(),
	}
}

// ===== CORE QUIZ OPERATIONS =====

func (s *quizService) Create(ctx context.Context, req *validator.CreateQuizRequest, caller Caller) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "title", req.Title, "class_id", req.ClassID, "created_by", caller.UserID)

	if !caller.IsStaff() {
		return nil, &AuthzError{Resource: "quiz", Action: "create", Reason: "only teachers and admins author quizzes"}
	}

	if errs := s.validator.GetBusinessValidator().ValidateQuizCreate(req); len(errs) > 0 {
		return nil, errs
	}

	questions := buildQuestions(req.Questions)
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		SchoolID:     req.SchoolID,
		ClassID:      req.ClassID,
		SubjectID:    req.SubjectID,
		CreatedBy:    caller.UserID,
		Title:        sanitizePlain(req.Title),
		Description:  sanitizeRichPtr(req.Description),
		Instructions: sanitizeRichPtr(req.Instructions),
		StartDate:    req.StartDate.UTC(),
		EndDate:      req.EndDate.UTC(),
		Duration:     req.Duration,
		Questions:    questions,
		Status:       models.QuizStatusDraft,
	}
	if req.PassingMarks != nil {
		quiz.Grading.PassingMarks = *req.PassingMarks
	}

	settings, err := buildSettings(req.Settings, models.QuizSettings{})
	if err != nil {
		return nil, err
	}
	quiz.Settings = settings

	NormalizeQuestions(quiz.Questions)
	ComputeDerived(quiz)
	if errs := validateGrading(quiz); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Quiz().Create(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID, "total_marks", quiz.Grading.TotalMarks)
	return s.teacherView(quiz, false), nil
}

func (s *quizService) GetByID(ctx context.Context, id uint, caller Caller) (*QuizResponse, error) {
	quiz, err := s.loadQuiz(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if caller.IsStaff() {
		if err := authorizeQuizOwner(quiz, caller, "view"); err != nil {
			return nil, err
		}
		count, err := s.repo.Attempt().CountByQuiz(ctx, nil, quiz.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}
		return s.teacherView(quiz, count > 0), nil
	}

	// students never see drafts
	if quiz.Status == models.QuizStatusDraft {
		return nil, &NotFoundError{Resource: "quiz", ID: id}
	}
	if err := s.authorizeStudent(ctx, quiz, caller.UserID); err != nil {
		return nil, err
	}
	return s.studentView(quiz), nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *validator.UpdateQuizRequest, caller Caller) (*QuizResponse, error) {
	s.logger.Info("Updating quiz", "quiz_id", id, "user_id", caller.UserID)

	var (
		quiz        *models.Quiz
		hasAttempts bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		quiz, err = s.loadQuiz(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorizeQuizOwner(quiz, caller, "update"); err != nil {
			return err
		}
		if quiz.Status == models.QuizStatusCancelled {
			return &BusinessRuleError{Rule: "quiz_cancelled", Message: "cancelled quizzes cannot be edited"}
		}

		count, err := s.repo.Attempt().CountByQuiz(ctx, tx, quiz.ID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		hasAttempts = count > 0
		if hasAttempts {
			if fields := req.StructuralFields(); len(fields) > 0 {
				return &ImmutableStructureError{QuizID: quiz.ID, Fields: fields}
			}
		}

		if errs := s.validator.GetBusinessValidator().ValidateQuizUpdate(req, quiz); len(errs) > 0 {
			return errs
		}
		if err := applyPatch(quiz, req); err != nil {
			return err
		}
		if errs := validateGrading(quiz); len(errs) > 0 {
			return errs
		}

		return s.repo.Quiz().Save(ctx, tx, quiz)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateQuizCache(ctx, s.cache, quiz.ID)
	s.logger.Info("Quiz updated", "quiz_id", quiz.ID, "has_attempts", hasAttempts)
	return s.teacherView(quiz, hasAttempts), nil
}

func (s *quizService) Publish(ctx context.Context, id uint, caller Caller) (*QuizResponse, error) {
	s.logger.Info("Publishing quiz", "quiz_id", id, "user_id", caller.UserID)

	quiz, err := s.loadQuiz(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeQuizOwner(quiz, caller, "publish"); err != nil {
		return nil, err
	}

	switch quiz.Status {
	case models.QuizStatusPublished:
		return s.teacherView(quiz, false), nil
	case models.QuizStatusCancelled:
		return nil, &PublishError{QuizID: quiz.ID, Reason: "quiz is cancelled"}
	}

	now := s.now()
	if len(quiz.Questions) == 0 {
		return nil, &PublishError{QuizID: quiz.ID, Reason: "quiz has no questions"}
	}
	if quiz.EndDate.Before(now) {
		return nil, &PublishError{QuizID: quiz.ID, Reason: "end date is in the past"}
	}

	quiz.Status = models.QuizStatusPublished
	quiz.PublishedAt = &now
	if err := s.repo.Quiz().Save(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("failed to publish quiz: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.QuizPublished,
		QuizID:  quiz.ID,
		ActorID: caller.UserID,
		Data: map[string]any{
			"class_id":   quiz.ClassID,
			"start_date": quiz.StartDate,
			"end_date":   quiz.EndDate,
		},
	})

	s.logger.Info("Quiz published", "quiz_id", quiz.ID)
	return s.teacherView(quiz, false), nil
}

// Cancel blocks any further starts. It is refused once attempts exist.
func (s *quizService) Cancel(ctx context.Context, id uint, caller Caller) (*QuizResponse, error) {
	s.logger.Info("Cancelling quiz", "quiz_id", id, "user_id", caller.UserID)

	var quiz *models.Quiz
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		quiz, err = s.loadQuiz(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorizeQuizOwner(quiz, caller, "cancel"); err != nil {
			return err
		}
		if quiz.Status == models.QuizStatusCancelled {
			return nil
		}

		count, err := s.repo.Attempt().CountByQuiz(ctx, tx, quiz.ID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if count > 0 {
			return &BusinessRuleError{
				Rule:    "cancel_with_attempts",
				Message: "quizzes with attempts cannot be cancelled",
				Context: map[string]interface{}{"attempts": count},
			}
		}

		quiz.Status = models.QuizStatusCancelled
		return s.repo.Quiz().Save(ctx, tx, quiz)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateQuizCache(ctx, s.cache, quiz.ID)
	return s.teacherView(quiz, false), nil
}

func (s *quizService) List(ctx context.Context, filters repositories.QuizFilters, caller Caller) (*QuizListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	switch {
	case caller.IsAdmin():
	case caller.IsStaff():
		filters.CreatedBy = &caller.UserID
	default:
		if filters.ClassID == nil {
			return nil, ValidationErrors{*NewValidationError("class_id", "is required for students", nil)}
		}
		if err := s.authorizeStudentClass(ctx, *filters.ClassID, caller.UserID); err != nil {
			return nil, err
		}
		published := models.QuizStatusPublished
		filters.Status = &published
	}

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	resp := &QuizListResponse{
		Quizzes: make([]*QuizResponse, 0, len(quizzes)),
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}
	for _, quiz := range quizzes {
		if caller.IsStaff() {
			view := s.teacherView(quiz, false)
			view.Questions = nil
			resp.Quizzes = append(resp.Quizzes, view)
		} else {
			resp.Quizzes = append(resp.Quizzes, s.studentView(quiz))
		}
	}
	return resp, nil
}

// ===== HELPERS =====

func (s *quizService) loadQuiz(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	return findQuiz(ctx, s.repo, tx, id)
}

func (s *quizService) authorizeStudent(ctx context.Context, quiz *models.Quiz, studentID string) error {
	return s.authorizeStudentClass(ctx, quiz.ClassID, studentID)
}

func (s *quizService) authorizeStudentClass(ctx context.Context, classID, studentID string) error {
	return checkEnrollment(ctx, s.repo.Enrollment(), classID, studentID)
}

func (s *quizService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.publisher, s.logger, event, s.now())
}

func (s *quizService) teacherView(quiz *models.Quiz, hasAttempts bool) *QuizResponse {
	view := quizResponse(quiz, s.now())
	view.HasAttempts = hasAttempts
	view.Questions = make([]QuestionView, len(quiz.Questions))
	for i := range quiz.Questions {
		view.Questions[i] = questionView(&quiz.Questions[i], true)
	}
	return view
}

// studentView never carries questions; those come with an attempt.
func (s *quizService) studentView(quiz *models.Quiz) *QuizResponse {
	view := quizResponse(quiz, s.now())
	view.Grading.PassingMarks = 0
	return view
}
