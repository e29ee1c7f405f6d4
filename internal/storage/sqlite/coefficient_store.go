package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/interface.report/internal/surface"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Key identifies a stored surface result.
type Key struct {
	Frame int
	QM    int
	N0    int
	Phi   float64
}

func (k Key) String() string {
	return fmt.Sprintf("frame=%d qm=%d n0=%d phi=%g", k.Frame, k.QM, k.N0, k.Phi)
}

// KeyFor returns the key of a result computed for frame.
func KeyFor(frame int, res *surface.Result) Key {
	return Key{Frame: frame, QM: res.QM, N0: res.N0, Phi: res.Phi}
}

// CoefficientStore persists surface.Result blobs.
type CoefficientStore struct {
	db *sql.DB
}

// NewCoefficientStore creates a new CoefficientStore.
func NewCoefficientStore(db *DB) *CoefficientStore {
	return &CoefficientStore{db: db.DB}
}

// Put stores res under its key, replacing any previous result. runID may
// be empty.
func (s *CoefficientStore) Put(ctx context.Context, frame int, runID string, res *surface.Result) error {
	blob, err := res.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode result for frame %d: %w", frame, err)
	}
	k := KeyFor(frame, res)

	var run interface{}
	if runID != "" {
		run = runID
	}
	converged := res.ReconConverged[surface.Lower] && res.ReconConverged[surface.Upper]

	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO surface_coefficients (
				frame, qm, n0, phi, run_id, recon_converged, has_recon, result_blob, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (frame, qm, n0, phi) DO UPDATE SET
				run_id = excluded.run_id,
				recon_converged = excluded.recon_converged,
				has_recon = excluded.has_recon,
				result_blob = excluded.result_blob,
				updated_at = excluded.updated_at`,
			k.Frame, k.QM, k.N0, k.Phi, run, converged, res.HasReconstruction(), blob, time.Now().UnixNano(),
		)
		return err
	})
}

// Get returns the result stored under k, or ErrNotFound.
func (s *CoefficientStore) Get(ctx context.Context, k Key) (*surface.Result, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT result_blob FROM surface_coefficients
		WHERE frame = ? AND qm = ? AND n0 = ? AND phi = ?`,
		k.Frame, k.QM, k.N0, k.Phi,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result %s: %w", k, ErrNotFound)
		}
		return nil, fmt.Errorf("query result %s: %w", k, err)
	}

	res := &surface.Result{}
	if err := res.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", k, err)
	}
	return res, nil
}

// Delete removes the result stored under k.
func (s *CoefficientStore) Delete(ctx context.Context, k Key) error {
	return retryOnBusy(func() error {
		result, err := s.db.ExecContext(ctx, `
			DELETE FROM surface_coefficients
			WHERE frame = ? AND qm = ? AND n0 = ? AND phi = ?`,
			k.Frame, k.QM, k.N0, k.Phi,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("result %s: %w", k, ErrNotFound)
		}
		return nil
	})
}

// Frames lists the frames with a stored result for the given parameters,
// in ascending order.
func (s *CoefficientStore) Frames(ctx context.Context, qm, n0 int, phi float64) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame FROM surface_coefficients
		WHERE qm = ? AND n0 = ? AND phi = ?
		ORDER BY frame`, qm, n0, phi)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []int
	for rows.Next() {
		var f int
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
