package implementation

import (
	"context"
	"errors"

	"legal-discovery-be/internal/mapper"
	"legal-discovery-be/internal/model"
	"legal-discovery-be/internal/repository/specification"
	"legal-discovery-be/pkg/audit"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	auditScanPage         = 500
	pgUniqueViolationCode = "23505"
)

// AuditEventRepositoryImpl stores the ledger in postgres. It is insert-only.
type AuditEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AuditEventMapper
}

var _ audit.Backend = (*AuditEventRepositoryImpl)(nil)

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepositoryImpl {
	return &AuditEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewAuditEventMapper(),
	}
}

func (r *AuditEventRepositoryImpl) Append(ctx context.Context, e audit.Event) error {
	err := r.db.WithContext(ctx).Create(r.mapper.ToModel(e)).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
		return audit.ErrSequenceConflict
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return audit.ErrSequenceConflict
	}
	return err
}

func (r *AuditEventRepositoryImpl) Last(ctx context.Context) (*audit.Event, error) {
	var m model.AuditEvent
	err := r.db.WithContext(ctx).Order("sequence_no DESC").Limit(1).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ev := r.mapper.ToEvent(&m)
	return &ev, nil
}

// Scan pages through the table in sequence order.
func (r *AuditEventRepositoryImpl) Scan(ctx context.Context, from uint64, fn func(audit.Event) error) error {
	next := from
	for {
		var page []model.AuditEvent
		err := specification.Apply(r.db.WithContext(ctx),
			specification.FromSequence{Sequence: next},
			specification.OrderBy{Field: "sequence_no"},
			specification.Pagination{Limit: auditScanPage},
		).Find(&page).Error
		if err != nil {
			return err
		}
		for i := range page {
			if err := fn(r.mapper.ToEvent(&page[i])); err != nil {
				return err
			}
		}
		if len(page) < auditScanPage {
			return nil
		}
		next = page[len(page)-1].SequenceNo + 1
	}
}

func (r *AuditEventRepositoryImpl) Close() error {
	return nil
}
