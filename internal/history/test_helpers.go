package history

import (
	"crypto/sha256"
	"fmt"
	"testing"
	"time"
)

// SetupTestStore creates an in-memory history store for testing
func SetupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:", t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store
}

// CleanupTestStore closes the test store
func CleanupTestStore(t *testing.T, store *Store) {
	t.Helper()

	if err := store.Close(); err != nil {
		t.Errorf("Failed to close test store: %v", err)
	}
}

// CreateTestConversion creates a successful conversion record with default values
func CreateTestConversion(sourcePath, subject, sender string) *Conversion {
	sum := sha256.Sum256([]byte(sourcePath))
	return &Conversion{
		SourcePath:   sourcePath,
		SourceSHA256: fmt.Sprintf("%x", sum),
		OutputPath:   fmt.Sprintf("%s.pdf", subject),
		Subject:      subject,
		Sender:       sender,
		MessageDate:  NullTime{Time: time.Now(), Valid: true},
		Status:       StatusConverted,
		DurationMS:   42,
		OutputSize:   2048,
	}
}

// CreateTestConversionWithDate creates a conversion with a specific message date
func CreateTestConversionWithDate(sourcePath, subject, sender string, date time.Time) *Conversion {
	c := CreateTestConversion(sourcePath, subject, sender)
	c.MessageDate = NullTime{Time: date, Valid: true}
	return c
}

// RecordTestConversions records multiple conversions and fills in their IDs
func RecordTestConversions(t *testing.T, store *Store, conversions []*Conversion) []*Conversion {
	t.Helper()

	for i, c := range conversions {
		id, err := store.Record(c)
		if err != nil {
			t.Fatalf("Failed to record test conversion %d: %v", i, err)
		}
		conversions[i].ID = id
	}

	return conversions
}
