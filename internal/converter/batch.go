package converter

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/emltools/eml2pdf/internal/history"
	"github.com/emltools/eml2pdf/internal/scanner"
)

// Per-message batch outcomes
const (
	statusConverted = iota
	statusSkipped
	statusFailed
)

// ProgressFunc receives progress updates as batch results arrive. done
// counts finished messages regardless of outcome.
type ProgressFunc func(done, total int, path string)

// BatchResult summarizes a batch run.
type BatchResult struct {
	TotalFound int
	Converted  int
	Skipped    int
	Failed     int
}

type batchJob struct {
	path string
	run  func() int
}

type jobResult struct {
	path   string
	status int
}

// ConvertDir converts every .eml file under rootPath, mirroring the source
// tree under the configured output directory. Individual failures are
// counted and logged, never aborting the batch. Mailbox files found during
// the scan are reported and left alone; they have their own entry point.
func (c *Converter) ConvertDir(ctx context.Context, rootPath string, progress ProgressFunc) (*BatchResult, error) {
	if err := c.Probe(); err != nil {
		return nil, err
	}

	scan, err := scanner.New(rootPath, c.logger).Scan()
	if err != nil {
		return nil, err
	}
	for _, mbox := range scan.Mailboxes {
		c.logger.Info("found mailbox, convert it with the mbox command", "path", mbox.Path)
	}

	batchID := c.beginBatch(rootPath, history.ModeDir)

	jobs := make([]batchJob, 0, len(scan.Messages))
	for _, entry := range scan.Messages {
		sourcePath := filepath.Join(rootPath, filepath.FromSlash(entry.Path))
		outputPath := filepath.Join(c.cfg.OutputDir, filepath.FromSlash(stem(entry.Path)+c.outputExt()))
		jobs = append(jobs, batchJob{path: sourcePath, run: func() int {
			data, err := os.ReadFile(sourcePath)
			if err != nil {
				c.logger.Error("conversion failed", "source", sourcePath, "error", err)
				return statusFailed
			}
			return c.convertJob(ctx, data, sourcePath, outputPath, batchID)
		}})
	}

	result := c.runBatch(jobs, progress)
	c.finishBatch(batchID, result)
	return result, nil
}

// convertJob runs one pre-read message through the converter, mapping the
// outcome to a batch status. Sources whose hash is already recorded as
// converted are skipped.
func (c *Converter) convertJob(ctx context.Context, data []byte, sourcePath, outputPath string, batchID sql.NullInt64) int {
	if ctx.Err() != nil {
		return statusFailed
	}

	if c.store != nil {
		exists, err := c.store.SourceExists(hashBytes(data))
		if err != nil {
			c.logger.Warn("failed to check conversion history", "source", sourcePath, "error", err)
		} else if exists {
			c.logger.Info("skipping already converted message", "source", sourcePath)
			return statusSkipped
		}
	}

	if _, err := c.convert(ctx, data, sourcePath, outputPath, batchID); err != nil {
		c.logger.Error("conversion failed", "source", sourcePath, "error", err)
		return statusFailed
	}
	return statusConverted
}

// runBatch drains the jobs through a fixed worker pool, counting outcomes
// and reporting progress as results arrive. Cancellation is the jobs'
// business: each one checks its context before doing work.
func (c *Converter) runBatch(jobs []batchJob, progress ProgressFunc) *BatchResult {
	result := &BatchResult{TotalFound: len(jobs)}
	if len(jobs) == 0 {
		return result
	}

	jobChan := make(chan batchJob, len(jobs))
	resultChan := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < c.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				resultChan <- jobResult{path: job.path, status: job.run()}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	// Close resultChan when all workers finish
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	done := 0
	for res := range resultChan {
		done++
		switch res.status {
		case statusConverted:
			result.Converted++
		case statusSkipped:
			result.Skipped++
		case statusFailed:
			result.Failed++
		}
		if progress != nil {
			progress(done, len(jobs), res.path)
		}
	}
	return result
}

func (c *Converter) workers() int {
	if c.cfg.Workers > 0 {
		return c.cfg.Workers
	}
	return 1
}

// beginBatch opens a history batch row. Without a store, or when the insert
// fails, the invalid id leaves conversions unattached.
func (c *Converter) beginBatch(rootPath, mode string) sql.NullInt64 {
	if c.store == nil {
		return sql.NullInt64{}
	}
	id, err := c.store.CreateBatch(rootPath, mode)
	if err != nil {
		c.logger.Warn("failed to create history batch", "root", rootPath, "error", err)
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func (c *Converter) finishBatch(batchID sql.NullInt64, result *BatchResult) {
	if c.store == nil || !batchID.Valid {
		return
	}
	err := c.store.FinishBatch(batchID.Int64, result.TotalFound, result.Converted, result.Skipped, result.Failed)
	if err != nil {
		c.logger.Warn("failed to finish history batch", "batch_id", batchID.Int64, "error", err)
	}
}
