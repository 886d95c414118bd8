package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// SubjectsRepository 被监护对象仓库
type SubjectsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubjectsRepository 创建对象仓库
func NewSubjectsRepository(db *sql.DB, logger *zap.Logger) *SubjectsRepository {
	return &SubjectsRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveSubjects 列出所有处于监护中的对象（轮询评估用）
func (r *SubjectsRepository) ListActiveSubjects(ctx context.Context) ([]*models.Subject, error) {
	query := `
		SELECT
			subject_id,
			display_name,
			status,
			created_at,
			updated_at
		FROM subjects
		WHERE status = 'active'
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active subjects: %w", err)
	}
	defer rows.Close()

	subjects := []*models.Subject{}
	for rows.Next() {
		var subject models.Subject
		err := rows.Scan(
			&subject.SubjectID,
			&subject.DisplayName,
			&subject.Status,
			&subject.CreatedAt,
			&subject.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, &subject)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}

	return subjects, nil
}
