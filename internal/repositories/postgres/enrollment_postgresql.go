package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/repositories"
)

type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db}
}

func (e *EnrollmentPostgreSQL) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).
		Model(&models.ClassEnrollment{}).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Count(&count).Error
	if err != nil {
		return false, translateError(err, "check enrollment")
	}
	return count > 0, nil
}

// Enroll adds a student to a class; re-enrolling is a no-op.
func (e *EnrollmentPostgreSQL) Enroll(ctx context.Context, classID, studentID string) error {
	enrolled, err := e.IsEnrolled(ctx, classID, studentID)
	if err != nil || enrolled {
		return err
	}
	enrollment := models.ClassEnrollment{ClassID: classID, StudentID: studentID}
	if err := e.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
		return translateError(err, "create enrollment")
	}
	return nil
}
