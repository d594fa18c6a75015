package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookmeal-admin/internal/domain"
	"lookmeal-admin/internal/storage"
)

type fakeStorage struct {
	bucket      string
	key         string
	contentType string
	body        string
	objects     []storage.ObjectInfo
}

func (f *fakeStorage) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.bucket = bucket
	f.key = key
	f.contentType = contentType
	f.body = string(data)
	return "s3://" + bucket + "/" + key, nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return f.objects, nil
}

func exportUsersFixture() []domain.User {
	base := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	return []domain.User{
		{ID: "01", Name: "Alice", Email: "alice@example.com", Role: "会員", Status: domain.UserStatusActive, RegisteredAt: base},
		{ID: "02", Name: "Bob", Email: "bob@example.com", Role: "管理者", Status: domain.UserStatusInactive, RegisteredAt: base.AddDate(1, 0, 0)},
	}
}

func TestExportUsersWritesCSV(t *testing.T) {
	fake := &fakeStorage{}
	svc := NewExportService(fake, "exports", "admin-exports")

	location, err := svc.ExportUsers(context.Background(), exportUsersFixture(), "")
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/"+fake.key, location)
	assert.True(t, strings.HasPrefix(fake.key, "admin-exports/users-"))
	assert.Equal(t, "text/csv", fake.contentType)

	records, err := csv.NewReader(strings.NewReader(fake.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "id", records[0][0])
	// most recent registration first
	assert.Equal(t, "Bob", records[1][1])
	assert.Equal(t, "Alice", records[2][1])
}

func TestExportUsersAppliesFilter(t *testing.T) {
	fake := &fakeStorage{}
	svc := NewExportService(fake, "exports", "")

	_, err := svc.ExportUsers(context.Background(), exportUsersFixture(), "alice")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(fake.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Alice", records[1][1])
}

func TestExportNotConfigured(t *testing.T) {
	svc := NewExportService(nil, "", "")

	_, err := svc.ExportUsers(context.Background(), exportUsersFixture(), "")
	assert.Error(t, err)

	_, err = svc.ListExports(context.Background())
	assert.Error(t, err)
}
