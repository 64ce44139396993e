package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("weekly template not found")
	ErrBlockNotFound    = errors.New("time block not found")
)

// Repository contains all DB interactions needed for schedule templates and
// time blocks.
type Repository interface {
	// Weekly template
	GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID, officeID *uuid.UUID) ([]WeekdayTemplate, error)
	UpsertWeekdayTemplate(ctx context.Context, day WeekdayTemplate) (*WeekdayTemplate, error)

	// Time blocks
	CreateBlock(ctx context.Context, block TimeBlock) (*TimeBlock, error)
	// ListActiveBlocks returns active blocks that may produce occurrences
	// inside [from, to), recurring ones included.
	ListActiveBlocks(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeBlock, error)
	// DeactivateBlock soft-deletes; block history is preserved.
	DeactivateBlock(ctx context.Context, id uuid.UUID) error
}
