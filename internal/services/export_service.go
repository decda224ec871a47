package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
)

const (
	WaitlistSheet = "Waitlist"
	UsersSheet    = "Users"

	exportPageSize = 100
	exportTimeFmt  = "2006-01-02 15:04:05"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ExportWaitlist writes every entry, optionally of one program, newest first.
func (s *exportService) ExportWaitlist(ctx context.Context, programSlug *string, actor *models.User) ([]byte, error) {
	if err := requireAdmin(actor, "waitlist", "export"); err != nil {
		return nil, err
	}

	rows := [][]interface{}{{"ID", "Email", "Program", "Joined At"}}
	for offset := 0; ; offset += exportPageSize {
		entries, total, err := s.repo.Waitlist().List(ctx, nil, repositories.WaitlistFilters{
			ProgramSlug: programSlug,
			Limit:       exportPageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, upstream("list waitlist", err)
		}
		for _, e := range entries {
			rows = append(rows, []interface{}{e.ID, e.Email, e.ProgramSlug, e.CreatedAt.UTC().Format(exportTimeFmt)})
		}
		if len(entries) < exportPageSize || int64(offset+len(entries)) >= total {
			break
		}
	}

	s.logger.Info("Exporting waitlist", "actor_id", actor.ID, "rows", len(rows)-1)
	return writeWorkbook(WaitlistSheet, rows)
}

func (s *exportService) ExportUsers(ctx context.Context, actor *models.User) ([]byte, error) {
	if err := requireAdmin(actor, "user", "export"); err != nil {
		return nil, err
	}

	rows := [][]interface{}{{"ID", "Name", "Email", "Role", "Master Cohort", "Admin", "Created At"}}
	for offset := 0; ; offset += exportPageSize {
		users, total, err := s.repo.User().List(ctx, repositories.UserFilters{
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, upstream("list users", err)
		}
		for _, u := range users {
			rows = append(rows, []interface{}{u.ID, u.Name, u.Email, string(u.Role), u.Cohort(), u.IsAdmin, u.CreatedAt.UTC().Format(exportTimeFmt)})
		}
		if len(users) < exportPageSize || int64(offset+len(users)) >= total {
			break
		}
	}

	s.logger.Info("Exporting users", "actor_id", actor.ID, "rows", len(rows)-1)
	return writeWorkbook(UsersSheet, rows)
}

func writeWorkbook(sheet string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
