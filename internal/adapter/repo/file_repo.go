package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// FileRepositoryPG stores user_files rows.
type FileRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewFileRepository(sql infra.SQLExecutor) *FileRepositoryPG {
	return &FileRepositoryPG{sql: sql}
}

// Create inserts file and returns the new id.
func (r *FileRepositoryPG) Create(ctx context.Context, file *domain.GeneratedFile) (string, error) {
	var id string
	err := r.sql.QueryRow(ctx, sqlinline.QFileCreate,
		file.UserID,
		file.FileName,
		file.FilePath,
		file.FileSize,
		file.FileType,
		nullableJSON(file.ZipData),
		file.ModelID,
		nullableJSON(file.GeneratedInfo),
		file.ThumbnailURL,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	file.ID = id
	return id, nil
}

var _ domain.FileRepository = (*FileRepositoryPG)(nil)
