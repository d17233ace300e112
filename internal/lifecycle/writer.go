package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cocaineapp/balancer/internal/errs"
)

// GroupMetaClient is the storage-daemon boundary the meta writer talks
// through; the control plane never touches a daemon directly. The key is
// always SYMMETRIC_GROUPS_KEY; implementations resolve groupID to whichever
// backend address currently hosts that group's authoritative copy.
type GroupMetaClient interface {
	Write(ctx context.Context, groupID int, blob []byte) error
	Read(ctx context.Context, groupID int) ([]byte, error)
	Delete(ctx context.Context, groupID int) error
}

// Writer implements the quorum-with-rollback write path.
type Writer struct {
	client  GroupMetaClient
	log     zerolog.Logger
	retries int
}

// NewWriter builds a Writer. retries bounds the per-group write attempts;
// 3 is a reasonable default for a same-datacenter storage-daemon call.
func NewWriter(client GroupMetaClient, logger zerolog.Logger, retries int) *Writer {
	if retries <= 0 {
		retries = 3
	}
	return &Writer{client: client, log: logger.With().Str("component", "lifecycle.writer").Logger(), retries: retries}
}

// WriteQuorum writes meta to every group in groupIDs. If any write fails
// after retries, it removes the blob from the groups that succeeded; if
// that removal also fails, it returns InconsistentMeta and the caller must
// leave the couple BAD. A successful write is read back and parsed on every
// member; a parse failure surfaces CorruptMeta.
func (w *Writer) WriteQuorum(ctx context.Context, groupIDs []int, meta Meta) error {
	blob, err := Encode(meta)
	if err != nil {
		return errs.Wrap(errs.Internal, "lifecycle: encode meta: %v", err)
	}

	var succeeded []int
	var writeErr error
	for _, id := range groupIDs {
		if err := w.writeWithRetry(ctx, id, blob); err != nil {
			writeErr = err
			break
		}
		succeeded = append(succeeded, id)
	}

	if writeErr == nil {
		for _, id := range groupIDs {
			readBack, err := w.client.Read(ctx, id)
			if err != nil {
				return errs.Wrap(errs.CorruptMeta, "lifecycle: read back meta for group %d: %v", id, err)
			}
			if _, err := Decode(readBack); err != nil {
				return errs.Wrap(errs.CorruptMeta, "lifecycle: parse meta for group %d: %v", id, err)
			}
		}
		return nil
	}

	var rollbackFailed bool
	for _, id := range succeeded {
		if err := w.client.Delete(ctx, id); err != nil {
			w.log.Error().Err(err).Int("group", id).Msg("rollback delete failed")
			rollbackFailed = true
		}
	}
	if rollbackFailed {
		return errs.Wrap(errs.InconsistentMeta, "lifecycle: write failed (%v) and rollback also failed, couple left BAD", writeErr)
	}
	return errs.Wrap(errs.Internal, "lifecycle: meta write failed, rolled back cleanly: %v", writeErr)
}

// Remove deletes the meta blob from every group; used by break_couple. Any
// single failure is fatal.
func (w *Writer) Remove(ctx context.Context, groupIDs []int) error {
	for _, id := range groupIDs {
		if err := w.client.Delete(ctx, id); err != nil {
			return errs.Wrap(errs.Internal, "lifecycle: remove meta from group %d: %v", id, err)
		}
	}
	return nil
}

func (w *Writer) writeWithRetry(ctx context.Context, groupID int, blob []byte) error {
	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := w.client.Write(ctx, groupID, blob); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
