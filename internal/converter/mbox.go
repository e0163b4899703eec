package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/emltools/eml2pdf/internal/history"
)

// ConvertMbox converts every message in an mbox mailbox. Outputs are named
// "<mailbox stem>-NNNN.pdf" (or .html) in mailbox order under the configured
// output directory.
func (c *Converter) ConvertMbox(ctx context.Context, mboxPath string, progress ProgressFunc) (*BatchResult, error) {
	if err := c.Probe(); err != nil {
		return nil, err
	}

	messages, err := readMboxMessages(mboxPath)
	if err != nil {
		return nil, err
	}

	batchID := c.beginBatch(mboxPath, history.ModeMbox)

	prefix := stem(filepath.Base(mboxPath))
	jobs := make([]batchJob, 0, len(messages))
	for i, data := range messages {
		// The pseudo-path pins the message to its mailbox position in the
		// history and the logs.
		sourcePath := fmt.Sprintf("%s:%d", mboxPath, i+1)
		outputPath := filepath.Join(c.cfg.OutputDir, fmt.Sprintf("%s-%04d%s", prefix, i+1, c.outputExt()))
		jobs = append(jobs, batchJob{path: sourcePath, run: func() int {
			return c.convertJob(ctx, data, sourcePath, outputPath, batchID)
		}})
	}

	result := c.runBatch(jobs, progress)
	c.finishBatch(batchID, result)
	return result, nil
}

// readMboxMessages reads the whole mailbox up front. The format is
// sequential, so messages have to be buffered before workers can take them
// concurrently.
func readMboxMessages(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mbox: %w", err)
	}
	defer f.Close()

	var messages [][]byte
	mr := mboxlib.NewReader(f)
	for {
		msg, err := mr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read mbox message %d: %w", len(messages)+1, err)
		}
		data, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to read mbox message %d: %w", len(messages)+1, err)
		}
		messages = append(messages, data)
	}
	return messages, nil
}
