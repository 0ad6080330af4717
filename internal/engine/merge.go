package engine

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

// MergeResult describes what a merge did. A merge that imports nothing is
// still a successful merge.
type MergeResult struct {
	Imported int    // entries written to the destination
	Skipped  int    // keys with no usable code/text separator
	Repaired int    // keys whose missing space was restored
	Failed   int    // entries the destination refused to write
	Tick     uint64 // destination tick after the merge
}

// Merge folds every entry of src into dest.
//
// Each side's weight is first decayed forward to its own store's tick, then
// commits and weights are combined with max and stamped with the larger of
// the two ticks. After a merge that imported anything, dest takes that tick
// and becomes owned by localID. Entries already written stay written if the
// metadata update fails.
func Merge(dest, src *store.DB, localID string, decay store.DecayFunc) (MergeResult, error) {
	var res MergeResult
	if decay == nil {
		decay = store.ExponentialDecay(store.DefaultDecayScale)
	}

	tickLeft := dest.Tick()
	tickRight := src.Tick()
	tickMax := max(tickLeft, tickRight)

	c, err := src.Query("")
	if err != nil {
		return res, fmt.Errorf("query source: %w", err)
	}
	defer c.Close()
	if err := c.Jump(" "); err != nil {
		return res, fmt.Errorf("skip metadata: %w", err)
	}

	for c.Next() {
		key, repaired, err := store.RepairKey(c.Key())
		if err != nil {
			res.Skipped++
			logger.Log.Warn("merge_skip_key", zap.String("key", c.Key()))
			continue
		}
		if repaired {
			res.Repaired++
		}

		right := decodeValue(src.Name, key, c.Value())
		if right.Tick < tickRight {
			right.Dee = decay(0, float64(tickRight), right.Dee, float64(right.Tick))
		}

		merged := right
		if raw, ok := dest.Fetch(key); ok {
			left := decodeValue(dest.Name, key, raw)
			if left.Tick < tickLeft {
				left.Dee = decay(0, float64(tickLeft), left.Dee, float64(left.Tick))
			}
			merged.Commits = max(left.Commits, right.Commits)
			merged.Dee = max(left.Dee, right.Dee)
		}
		merged.Tick = tickMax

		if err := dest.Update(key, merged.Pack()); err != nil {
			res.Failed++
			logger.Log.Error("merge_update_failed", zap.String("db", dest.Name), zap.String("key", key), zap.Error(err))
			continue
		}
		res.Imported++
	}
	if err := c.Err(); err != nil {
		return res, fmt.Errorf("scan source: %w", err)
	}

	res.Tick = tickLeft
	if res.Imported > 0 {
		err := errors.Join(
			dest.MetaUpdate(store.MetaTick, strconv.FormatUint(tickMax, 10)),
			dest.MetaUpdate(store.MetaUserID, localID),
		)
		if err != nil {
			logger.Log.Warn("merge_tick_update_failed", zap.String("db", dest.Name), zap.Error(err))
		} else {
			res.Tick = tickMax
		}
	}

	logger.Log.Info("merge_done",
		zap.String("db", dest.Name),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("repaired", res.Repaired),
		zap.Uint64("tick", res.Tick),
	)
	mergedEntries.Add(float64(res.Imported))
	return res, nil
}

// decodeValue unpacks a stored record, treating a corrupt one as the zero
// value.
func decodeValue(db, key, raw string) store.Value {
	v, err := store.Unpack(raw)
	if err != nil {
		logger.Log.Warn("userdb_bad_value",
			zap.String("db", db),
			zap.String("key", key),
			zap.Error(err),
		)
		return store.Value{}
	}
	return v
}
