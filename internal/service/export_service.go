package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"lookmeal-admin/internal/domain"
	"lookmeal-admin/internal/storage"
	"lookmeal-admin/internal/userlist"
)

// ExportService renders the registered-user list to CSV and uploads it to
// object storage.
type ExportService interface {
	ExportUsers(ctx context.Context, users []domain.User, term string) (string, error)
	ListExports(ctx context.Context) ([]storage.ObjectInfo, error)
}

type exportService struct {
	storage   storage.Service
	bucket    string
	keyPrefix string
}

func NewExportService(store storage.Service, bucket, keyPrefix string) ExportService {
	return &exportService{
		storage:   store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}
}

// ExportUsers uploads the filtered and sorted user list as a CSV object and
// returns its location.
func (s *exportService) ExportUsers(ctx context.Context, users []domain.User, term string) (string, error) {
	if s.storage == nil || s.bucket == "" {
		return "", errors.New("storage service not configured")
	}

	matched := userlist.SortByRegistration(userlist.Filter(users, term))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "name", "email", "role", "status", "registered_at", "last_login_at", "gender", "prefecture"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range matched {
		lastLogin := ""
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format(time.RFC3339)
		}
		record := []string{
			u.ID,
			u.Name,
			u.Email,
			u.Role,
			string(u.Status),
			u.RegisteredAt.Format(time.RFC3339),
			lastLogin,
			u.Gender,
			u.Prefecture,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	key := fmt.Sprintf("users-%s.csv", time.Now().UTC().Format("20060102-150405"))
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}

	location, err := s.storage.PutObject(ctx, s.bucket, key, "text/csv", &buf)
	if err != nil {
		return "", err
	}
	return location, nil
}

// ListExports returns previously uploaded export objects.
func (s *exportService) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.storage == nil || s.bucket == "" {
		return nil, errors.New("storage service not configured")
	}
	return s.storage.ListObjects(ctx, s.bucket, s.keyPrefix)
}
