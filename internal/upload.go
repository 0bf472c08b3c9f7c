package internal

import (
	"context"
	"math"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// UploadStatus is the state of one file in an upload batch
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// Uploader sends one file to a vector store
type Uploader interface {
	UploadFile(ctx context.Context, storeID, path string) (string, error)
}

// UploadItem tracks one file of a batch
type UploadItem struct {
	Path   string
	Name   string
	Status UploadStatus
	Err    error
}

// UploadProgress reports a status change of the item at Index
type UploadProgress struct {
	Index   int
	Item    UploadItem
	Percent int
}

// UploadSummary is the outcome of a batch
type UploadSummary struct {
	Items     []UploadItem
	Succeeded int
	Failed    int
}

// UploadFiles uploads paths to storeID one request per file, with at most
// concurrency uploads in flight. A failed file does not stop the others.
// onChange, when set, is called serially for every status change.
func UploadFiles(ctx context.Context, up Uploader, storeID string, paths []string, concurrency int, onChange func(UploadProgress)) UploadSummary {
	if concurrency < 1 {
		concurrency = 1
	}

	items := make([]UploadItem, len(paths))
	for i, p := range paths {
		items[i] = UploadItem{Path: p, Name: filepath.Base(p), Status: UploadPending}
	}

	var (
		mu        sync.Mutex
		processed int
	)
	update := func(i int, status UploadStatus, err error) {
		mu.Lock()
		defer mu.Unlock()
		items[i].Status = status
		items[i].Err = err
		if status == UploadSuccess || status == UploadError {
			processed++
		}
		if onChange != nil {
			onChange(UploadProgress{Index: i, Item: items[i], Percent: percentOf(processed, len(items))})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				update(i, UploadError, err)
				return nil
			}
			update(i, UploadUploading, nil)
			if _, err := up.UploadFile(gctx, storeID, items[i].Path); err != nil {
				LogWarn("upload of %s failed: %v", items[i].Name, err)
				update(i, UploadError, err)
				return nil
			}
			LogDebug("uploaded %s to %s", items[i].Name, storeID)
			update(i, UploadSuccess, nil)
			return nil
		})
	}
	_ = g.Wait()

	summary := UploadSummary{Items: items}
	for _, it := range items {
		switch it.Status {
		case UploadSuccess:
			summary.Succeeded++
		case UploadError:
			summary.Failed++
		}
	}
	return summary
}

func percentOf(done, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
