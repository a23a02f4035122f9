package runner

import (
	"context"
	"fmt"

	"stratlab/internal/logger"

	"golang.org/x/sync/errgroup"
)

// BatchItem 批量评测中单份提交的结果。
type BatchItem struct {
	Index      int     `json:"index"`
	Submission string  `json:"submission"`
	Outcome    Outcome `json:"outcome"`
	Err        error   `json:"-"`
	Error      string  `json:"error,omitempty"`
}

// EvaluateBatch 并发评测多份提交。单份失败不影响其他提交，
// 结果按输入顺序返回；只有 ctx 取消会整体中断。
func (r *Runner) EvaluateBatch(ctx context.Context, reqs []RunRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("批量评测至少需要一份提交")
	}
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(r.sem))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			items[i] = BatchItem{Index: i, Submission: req.Submission}
			outcome, err := r.Evaluate(gctx, req)
			if err != nil {
				logger.Warnf("[runner] 批量评测第 %d 份 (%s) 失败: %v", i, req.Submission, err)
				items[i].Err = err
				items[i].Error = err.Error()
				return nil
			}
			items[i].Outcome = outcome
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
