// Package flow drives a single summarization interaction: list files,
// validate the selection, hand the job to the workflow trigger. It is a
// linear sequence with no retry logic and no cross-request state.
package flow

import (
	"context"
	"fmt"

	"github.com/kalambet/meetsum/internal/catalog"
	"github.com/kalambet/meetsum/internal/summary"
	"github.com/kalambet/meetsum/internal/workflow"
)

// Catalog is the slice of the file catalog the controller needs.
type Catalog interface {
	List(ctx context.Context, folderID string) ([]catalog.FileSummary, error)
	Get(ctx context.Context, fileID string) (catalog.FileSummary, error)
}

// Trigger runs one workflow job, blocking until the engine answers and
// the result is delivered.
type Trigger interface {
	Run(ctx context.Context, job workflow.JobRequest) error
}

// ErrorSink posts a failure message where the summary would have gone.
// The interaction that started a job may be long gone by the time the
// engine fails, so the channel is the only place guaranteed to still
// accept the report.
type ErrorSink interface {
	SendError(ctx context.Context, dc summary.DeliveryContext, message string)
}

// Requester identifies the user behind one interaction.
type Requester struct {
	ChannelID string
	UserID    string
	UserName  string
	AvatarURL string
}

// ErrFileTooLarge marks a selection rejected by the size policy.
type ErrFileTooLarge struct {
	File catalog.FileSummary
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file %q is %s, which exceeds the %s limit",
		e.File.Name, e.File.Size, catalog.FormatSize(catalog.MaxFileSize))
}

// Controller orchestrates one user flow.
type Controller struct {
	Catalog Catalog
	Trigger Trigger

	// Errors, when set, receives trigger failures for channel delivery.
	Errors ErrorSink
}

// ListFiles returns the current candidates from the default folder.
func (c *Controller) ListFiles(ctx context.Context) ([]catalog.FileSummary, error) {
	return c.Catalog.List(ctx, "")
}

// CheckFile fetches the selected file and re-validates its size.
func (c *Controller) CheckFile(ctx context.Context, fileID string) (catalog.FileSummary, error) {
	file, err := c.Catalog.Get(ctx, fileID)
	if err != nil {
		return catalog.FileSummary{}, err
	}
	if !catalog.IsSizeValid(file.SizeBytes) {
		return file, &ErrFileTooLarge{File: file}
	}
	return file, nil
}

// Summarize hands the file to the workflow engine and blocks until the
// job completes and its result is delivered to the channel. The returned
// error, if any, is the trigger's user-facing failure.
func (c *Controller) Summarize(ctx context.Context, file catalog.FileSummary, req Requester) error {
	err := c.Trigger.Run(ctx, workflow.JobRequest{
		FileID:        file.ID,
		FileName:      file.Name,
		MimeType:      file.MimeType,
		FileSizeBytes: file.SizeBytes,
		ChannelID:     req.ChannelID,
		UserID:        req.UserID,
		UserName:      req.UserName,
		UserAvatarURL: req.AvatarURL,
	})
	if err != nil && c.Errors != nil {
		c.Errors.SendError(ctx, summary.DeliveryContext{
			ChannelID:     req.ChannelID,
			FileName:      file.Name,
			UserID:        req.UserID,
			UserAvatarURL: req.AvatarURL,
		}, err.Error())
	}
	return err
}
