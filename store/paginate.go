package store

import (
	"context"

	"github.com/ceyewan/discovery/xerrors"
)

// ScanFunc 按主键升序读取 startExclusive 之后最多 limit 行
type ScanFunc func(ctx context.Context, startExclusive string, limit int) ([]Row, error)

// Paginate 以 pageSize 为一页遍历整张表，对每一页调用 fn
//
// 每次请求 pageSize+1 行：拿满时只交付前 pageSize 行，并从第 pageSize 行的主键
// （不含）继续，丢弃多取的那一行；拿到的少于 pageSize+1 行说明已到末尾，全部交付后结束。
// 表在遍历期间不变时，每个主键恰好交付一次。
func Paginate(ctx context.Context, scan ScanFunc, pageSize int, fn func(page []Row) error) error {
	if pageSize < 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "page size %d", pageSize)
	}
	start := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := scan(ctx, start, pageSize+1)
		if err != nil {
			return err
		}
		if len(rows) <= pageSize {
			if len(rows) == 0 {
				return nil
			}
			return fn(rows)
		}
		page := rows[:pageSize]
		if err := fn(page); err != nil {
			return err
		}
		start = page[pageSize-1].Key
	}
}
