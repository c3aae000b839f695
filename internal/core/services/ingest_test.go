package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestRegistersAndEnqueues(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	path := writeUpload(t, "report.pdf", "%PDF-1.4 fake content")

	doc, err := svc.Ingest(ctx, path, domain.JobConfig{OCRMode: domain.OCRModeAuto})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, domain.FormatPDF, doc.Format)
	assert.Equal(t, domain.StatusPending, doc.Status)
	assert.True(t, doc.IsActive)
	assert.Len(t, doc.ContentHash, 64)

	qj, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, qj)
	assert.Equal(t, doc.ID, qj.Job.DocumentID)
	assert.Equal(t, domain.FormatPDF, qj.Job.Format)
	assert.Equal(t, domain.OCRModeAuto, qj.Job.Config.OCRMode)
}

func TestIngestDeduplicatesByContent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	first := writeUpload(t, "a.md", "# identical bytes")
	second := writeUpload(t, "b.md", "# identical bytes")

	doc, err := svc.Ingest(ctx, first, domain.JobConfig{})
	require.NoError(t, err)

	dup, err := svc.Ingest(ctx, second, domain.JobConfig{})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	require.NotNil(t, dup)
	assert.Equal(t, doc.ID, dup.ID)

	// Only the first upload produced a job.
	counts, err := queue.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Ready)
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	svc := NewIngest(memory.NewDocumentStore(), memory.NewJobQueue(time.Minute))
	path := writeUpload(t, "archive.zip", "PK")

	_, err := svc.Ingest(context.Background(), path, domain.JobConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestMissingFile(t *testing.T) {
	svc := NewIngest(memory.NewDocumentStore(), memory.NewJobQueue(time.Minute))

	_, err := svc.Ingest(context.Background(), "/nonexistent/file.pdf", domain.JobConfig{})
	assert.Error(t, err)
}

func TestRetryResetsFailedDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	path := writeUpload(t, "doc.docx", "word content")
	doc, err := svc.Ingest(ctx, path, domain.JobConfig{})
	require.NoError(t, err)

	// Drain the original job and fail the document.
	_, err = queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, doc.ID, 3))
	require.NoError(t, store.MarkFailed(ctx, doc.ID, "TIMEOUT: conversion timed out"))

	require.NoError(t, svc.Retry(ctx, doc.ID))

	fresh, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, fresh.Status)
	assert.Empty(t, fresh.FailReason)
	assert.Zero(t, fresh.RetryCount)
}

func TestRetryRejectsNonFailedDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	path := writeUpload(t, "doc.md", "# pending doc")
	doc, err := svc.Ingest(ctx, path, domain.JobConfig{})
	require.NoError(t, err)

	err = svc.Retry(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteForbiddenWhileProcessing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	path := writeUpload(t, "doc.md", "# busy doc")
	doc, err := svc.Ingest(ctx, path, domain.JobConfig{})
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, doc.ID, 1))

	err = svc.Delete(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentProcessing)
}

func TestStatusSummarisesPipeline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	queue := memory.NewJobQueue(time.Minute)
	svc := NewIngest(store, queue)

	path := writeUpload(t, "doc.md", "# some doc")
	_, err := svc.Ingest(ctx, path, domain.JobConfig{})
	require.NoError(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Documents[domain.StatusPending])
	assert.Equal(t, 1, status.QueueReady)
	assert.Zero(t, status.QueueLeased)
}
