package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-triage/internal/resilience"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string]map[string]any
	err   error
}

func (r *recorder) Update(_ context.Context, leadID string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]map[string]any)
	}
	fields["touched"] = true
	r.calls[leadID] = fields
	return r.err
}

func (r *recorder) UpdateLeadStatus(ctx context.Context, leadID string, fields map[string]any) error {
	return r.Update(ctx, leadID, fields)
}

func TestFanout_Update(t *testing.T) {
	tests := []struct {
		name       string
		primaryErr error
		mirrorErr  error
		wantErr    bool
	}{
		{"all succeed", nil, nil, false},
		{"mirror failure is swallowed", nil, errors.New("notion down"), false},
		{"primary failure is returned", errors.New("db locked"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &recorder{err: tt.primaryErr}
			mirror := &recorder{err: tt.mirrorErr}
			f := NewFanout(Named{"store", primary}, nil, Named{"notion", mirror})

			fields := map[string]any{"status": "escalated"}
			err := f.Update(context.Background(), "lead-1", fields)
			if tt.wantErr {
				assert.ErrorContains(t, err, "status: update lead-1 via store")
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, "escalated", primary.calls["lead-1"]["status"])
			assert.Equal(t, "escalated", mirror.calls["lead-1"]["status"])
			_, leaked := fields["touched"]
			assert.False(t, leaked, "targets get their own copy")
		})
	}
}

func TestFanout_RetriesTransient(t *testing.T) {
	policy := resilience.NewPolicy(3, time.Millisecond, time.Millisecond, 10, time.Minute)
	calls := 0
	flaky := UpdaterFunc(func(context.Context, string, map[string]any) error {
		calls++
		if calls == 1 {
			return resilience.NewTransientError(errors.New("503"), 503)
		}
		return nil
	})

	f := NewFanout(Named{"salesforce", flaky}, policy)
	require.NoError(t, f.Update(context.Background(), "lead-1", map[string]any{"status": "replied"}))
	assert.Equal(t, 2, calls)
}

func TestFanout_Targets(t *testing.T) {
	f := NewFanout(Named{Name: "store"}, nil, Named{Name: "notion"}, Named{Name: "salesforce"})
	assert.Equal(t, []string{"store", "notion", "salesforce"}, f.Targets())
	assert.NoError(t, f.Update(context.Background(), "lead-1", nil), "nil updaters are skipped")
}

func TestStoreUpdater(t *testing.T) {
	rec := &recorder{}
	u := NewStoreUpdater(rec)

	require.NoError(t, u.Update(context.Background(), "lead-7", map[string]any{"status": "scored"}))
	assert.Equal(t, "scored", rec.calls["lead-7"]["status"])

	assert.ErrorContains(t, u.Update(context.Background(), "", nil), "lead id is required")

	rec.err = errors.New("disk full")
	assert.ErrorContains(t, u.Update(context.Background(), "lead-7", nil), "status: store update")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrLeadNotFound))
	assert.False(t, IsNotFound(errors.New("other")))
}
