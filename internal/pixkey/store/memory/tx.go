package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/tx"
)

const (
	numShards        = 128
	defaultTxTimeout = 5 * time.Second
)

type inTxKey struct{}

// undoLog collects the inverse of every store write made inside one
// transaction.
type undoLog struct {
	mu    sync.Mutex
	steps []func()
}

func (l *undoLog) add(step func()) {
	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.steps) - 1; i >= 0; i-- {
		l.steps[i]()
	}
	l.steps = nil
}

// onRollback registers undo to run if the surrounding transaction fails.
// Writes made outside a transaction are final.
func onRollback(ctx context.Context, undo func()) {
	if l, ok := ctx.Value(inTxKey{}).(*undoLog); ok {
		l.add(undo)
	}
}

// ShardedTx serializes transactions on the same partition with one of 128
// mutexes. Stores apply writes immediately; when fn fails they are undone in
// reverse order, restoring the rows the transaction touched.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := selectShard(tx.Partition(ctx))
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, inTxKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

func selectShard(partition string) uint32 {
	if partition == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(partition))
	return h.Sum32() % numShards
}
